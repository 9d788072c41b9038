//go:build nostatic

package forecastplot

import "github.com/sirupsen/logrus"

func init() {
	logrus.WithField("tag", "Backend").Error("static backend not compiled in (nostatic). Static plots will not work.")
}
