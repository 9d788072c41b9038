package forecastplot

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/sirupsen/logrus"
)

// Displayer shows a rendered figure to the user.
type Displayer interface {
	Display(fig *Figure) error
}

// DisplayFunc adapts a function to the Displayer interface.
type DisplayFunc func(fig *Figure) error

func (f DisplayFunc) Display(fig *Figure) error {
	return f(fig)
}

// BrowserDisplayer writes the figure to a temporary file and opens it with
// the platform opener, which puts HTML in the browser and images in the
// default viewer.
type BrowserDisplayer struct {
	// Directory for the figure files. Defaults to os.TempDir().
	Dir string

	// Opens the written file. Defaults to OpenBrowser.
	Open func(target string) error
}

func (d *BrowserDisplayer) Display(fig *Figure) error {
	if len(fig.Content) == 0 {
		return fmt.Errorf("figure %q has not been rendered", fig.Title)
	}

	f, err := os.CreateTemp(d.Dir, "forecastplot-*."+fig.Format)
	if err != nil {
		return err
	}

	if _, err := fig.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"tag":  "BrowserDisplayer",
		"path": f.Name(),
	}).Info("figure written")

	open := d.Open
	if open == nil {
		open = OpenBrowser
	}
	return open(f.Name())
}

// OpenBrowser opens a URL or file path with the platform's default handler.
func OpenBrowser(target string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start"}
	case "darwin":
		cmd = "open"
	default: // "linux", "freebsd", "openbsd", "netbsd"
		cmd = "xdg-open"
	}
	args = append(args, target)
	err := exec.Command(cmd, args...).Start()
	if err != nil {
		logrus.WithError(err).Warn("failed to start web browser automatically")
	}
	return err
}
