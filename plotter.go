package forecastplot

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

var ErrBackendUnavailable = errors.New("plotting backend unavailable")

// backend turns a laid out Figure into bytes. Each backend is registered by
// an init function in a build-tagged file, so a binary built with
// -tags nointeractive or -tags nostatic simply has no backend for it.
type backend interface {
	Name() string
	Render(fig *Figure) error
}

var (
	interactiveBackend backend
	staticBackend      backend
)

func InteractiveEnabled() bool {
	return interactiveBackend != nil
}

func StaticEnabled() bool {
	return staticBackend != nil
}

type staticConfig struct {
	size   Size
	grid   bool
	format string
}

type StaticOption func(*staticConfig)

// WithFigsize sets the figure size in inches. Defaults to 16x6.
func WithFigsize(width, height float64) StaticOption {
	return func(c *staticConfig) {
		c.size = Size{Width: width, Height: height}
	}
}

func WithGrid(grid bool) StaticOption {
	return func(c *staticConfig) {
		c.grid = grid
	}
}

// WithFormat picks the image encoding, "png" (default) or "svg".
func WithFormat(format string) StaticOption {
	return func(c *staticConfig) {
		c.format = format
	}
}

// Plotter renders forecast figures and hands them to a Displayer. A nil
// displayer only renders.
type Plotter struct {
	displayer Displayer
	logger    logrus.FieldLogger
}

func NewPlotter(displayer Displayer) *Plotter {
	return &Plotter{
		displayer: displayer,
		logger:    logrus.WithField("tag", "Plotter"),
	}
}

// RenderInteractive draws the forecast as an interactive HTML figure and
// displays it with the default browser displayer.
func RenderInteractive(req Request) (*Figure, error) {
	return NewPlotter(&BrowserDisplayer{}).RenderInteractive(req)
}

// RenderStatic draws the forecast as a static image and displays it with the
// default browser displayer.
func RenderStatic(req Request, options ...StaticOption) (*Figure, error) {
	return NewPlotter(&BrowserDisplayer{}).RenderStatic(req, options...)
}

func (p *Plotter) RenderInteractive(req Request) (*Figure, error) {
	if !InteractiveEnabled() {
		return nil, fmt.Errorf("%w: interactive plots are disabled in this build", ErrBackendUnavailable)
	}

	series, err := prepare(req)
	if err != nil {
		return nil, err
	}

	fig := newFigure(series)
	if err := p.renderAndDisplay(interactiveBackend, fig); err != nil {
		return nil, err
	}
	return fig, nil
}

func (p *Plotter) RenderStatic(req Request, options ...StaticOption) (*Figure, error) {
	if !StaticEnabled() {
		return nil, fmt.Errorf("%w: static plots are disabled in this build", ErrBackendUnavailable)
	}

	config := staticConfig{
		size:   Size{Width: 16, Height: 6},
		grid:   true,
		format: "png",
	}
	for _, option := range options {
		option(&config)
	}

	series, err := prepare(req)
	if err != nil {
		return nil, err
	}

	fig := newFigure(series)
	fig.Size = config.size
	fig.Grid = config.grid
	fig.Format = config.format
	if err := p.renderAndDisplay(staticBackend, fig); err != nil {
		return nil, err
	}
	return fig, nil
}

func (p *Plotter) renderAndDisplay(b backend, fig *Figure) error {
	logger := p.logger.WithFields(logrus.Fields{
		"backend": b.Name(),
		"title":   fig.Title,
		"traces":  fig.TraceNames(),
	})

	if err := b.Render(fig); err != nil {
		logger.WithError(err).Error("failed to render figure")
		return err
	}
	logger.WithField("bytes", len(fig.Content)).Debug("rendered figure")

	if p.displayer == nil {
		return nil
	}

	if err := p.displayer.Display(fig); err != nil {
		logger.WithError(err).Warn("failed to display figure")
		return err
	}
	return nil
}
