//go:build !nostatic

package forecastplot

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgsvg"
)

func init() {
	staticBackend = gonumBackend{}
}

var (
	staticColorHistorical = color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}
	staticColorForecast   = color.NRGBA{R: 0x1e, G: 0x90, B: 0xff, A: 0xff}
	staticColorActual     = color.NRGBA{R: 0xff, A: 0x80}
	staticColorInterval   = color.NRGBA{R: 0xad, G: 0xd8, B: 0xe6, A: 0x80}
	staticColorGrid       = color.NRGBA{A: 0x4d}
)

const (
	staticTitleSize  = 16
	staticLegendSize = 12
	// Room to the right of the axes for the legend.
	staticLegendWidth = 1.8 * vg.Inch
	intervalLabel     = "Uncertainty Interval"
)

type gonumBackend struct{}

func (gonumBackend) Name() string {
	return "gonum"
}

func (gonumBackend) Render(fig *Figure) error {
	p, legend, err := buildGonumPlot(fig)
	if err != nil {
		return err
	}

	width := vg.Length(fig.Size.Width) * vg.Inch
	height := vg.Length(fig.Size.Height) * vg.Inch
	if width <= staticLegendWidth || height <= 0 {
		return fmt.Errorf("figure size %vx%v inches is too small", fig.Size.Width, fig.Size.Height)
	}

	var buf bytes.Buffer
	switch fig.Format {
	case "", "png":
		canvas := vgimg.New(width, height)
		drawWithLegend(draw.New(canvas), p, legend)
		if _, err := (vgimg.PngCanvas{Canvas: canvas}).WriteTo(&buf); err != nil {
			return err
		}
		fig.Format = "png"
	case "svg":
		canvas := vgsvg.New(width, height)
		drawWithLegend(draw.New(canvas), p, legend)
		if _, err := canvas.WriteTo(&buf); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported static format %q", fig.Format)
	}

	fig.Content = buf.Bytes()
	return nil
}

// drawWithLegend draws the plot on the left and the legend in a strip on the
// right, outside the axes.
func drawWithLegend(dc draw.Canvas, p *plot.Plot, legend plot.Legend) {
	p.Draw(draw.Crop(dc, 0, -staticLegendWidth, 0, 0))

	width := dc.Max.X - dc.Min.X
	legend.Draw(draw.Crop(dc, width-staticLegendWidth, 0, 0, 0))
}

func buildGonumPlot(fig *Figure) (*plot.Plot, plot.Legend, error) {
	p := plot.New()
	p.BackgroundColor = color.White
	p.Title.Text = fig.Title
	p.Title.TextStyle.Font.Size = vg.Points(staticTitleSize)
	p.X.Label.Text = fig.XLabel
	p.Y.Label.Text = fig.YLabel

	legend := plot.NewLegend()
	legend.Top = true
	legend.Left = true
	legend.XOffs = vg.Points(6)
	legend.TextStyle.Font.Size = vg.Points(staticLegendSize)

	if fig.Grid {
		grid := plotter.NewGrid()
		grid.Vertical.Color = staticColorGrid
		grid.Horizontal.Color = staticColorGrid
		p.Add(grid)
	}

	if forecast, ok := fig.Trace(TraceForecast); ok && forecast.X.Timed {
		p.X.Tick.Marker = plot.TimeTicks{Format: dateLayout}
	}

	if trace, ok := fig.Trace(TraceHistorical); ok {
		if err := addLine(p, &legend, trace, staticColorHistorical); err != nil {
			return nil, legend, err
		}
	}

	if trace, ok := fig.Trace(TraceForecast); ok {
		if err := addLine(p, &legend, trace, staticColorForecast); err != nil {
			return nil, legend, err
		}
	}

	if trace, ok := fig.Trace(TraceActual); ok {
		if err := addLine(p, &legend, trace, staticColorActual); err != nil {
			return nil, legend, err
		}
	}

	lower, hasLower := fig.Trace(TraceLowerBound)
	upper, hasUpper := fig.Trace(TraceUpperBound)
	if hasLower && hasUpper {
		band, err := plotter.NewPolygon(bandPolygon(upper, lower))
		if err != nil {
			return nil, legend, fmt.Errorf("interval band: %w", err)
		}
		band.Color = staticColorInterval
		band.LineStyle.Width = 0
		p.Add(band)
		legend.Add(intervalLabel, band)
	}

	return p, legend, nil
}

func addLine(p *plot.Plot, legend *plot.Legend, trace Trace, c color.Color) error {
	line, err := plotter.NewLine(traceXYs(trace.X, trace.Y))
	if err != nil {
		return fmt.Errorf("%s line: %w", trace.Name, err)
	}
	line.LineStyle.Color = c
	line.LineStyle.Width = vg.Points(1.5)
	p.Add(line)
	legend.Add(trace.Name, line)
	return nil
}

// traceXYs drops points gonum cannot draw (NaN and Inf).
func traceXYs(axis Axis, ys []float64) plotter.XYs {
	xys := make(plotter.XYs, 0, len(ys))
	for i, y := range ys {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}
		xys = append(xys, plotter.XY{X: axis.Float(i), Y: y})
	}
	return xys
}

// bandPolygon walks the upper bound forwards and the lower bound backwards.
func bandPolygon(upper, lower Trace) plotter.XYs {
	band := traceXYs(upper.X, upper.Y)
	lowerXYs := traceXYs(lower.X, lower.Y)
	for i := len(lowerXYs) - 1; i >= 0; i-- {
		band = append(band, lowerXYs[i])
	}
	return band
}
