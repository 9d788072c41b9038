//go:build nointeractive

package forecastplot

import "github.com/sirupsen/logrus"

func init() {
	logrus.WithField("tag", "Backend").Error("interactive backend not compiled in (nointeractive). Interactive plots will not work.")
}
