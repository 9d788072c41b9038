//go:build !nointeractive

package forecastplot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

func init() {
	interactiveBackend = echartsBackend{}
}

const (
	colorIntervalLine = "rgba(0, 90, 181, 0.5)"
	// Bound lines only carry the band, so their strokes are fully transparent.
	colorIntervalHidden = "rgba(0, 90, 181, 0)"
	colorIntervalFill = "rgba(0, 90, 181, 0.2)"
	colorActual       = "rgba(250, 43, 20, 0.7)"
	colorForecast     = "rgba(31, 119, 180, 0.7)"
	colorHistorical   = "rgba(100, 100, 100, 0.7)"

	intervalStack = "interval"

	// echarts skips "-" points without breaking stacks.
	missingPoint = "-"
)

// upperTooltip replaces the stacked band height of the upper bound series
// with the real upper values, indexed by category.
const upperTooltip = `function (params) {
	var upper = %s;
	var lines = [params[0].axisValueLabel];
	params.forEach(function (p) {
		if (p.value === '%s' || p.value === undefined) { return; }
		var value = p.seriesName === %q ? upper[p.dataIndex] : p.value;
		lines.push(p.marker + p.seriesName + ': ' + value);
	});
	return lines.join('<br/>');
}`

// echartsBackend renders an HTML page. The x axis is a category axis over
// the labels of the history followed by the forecast, so the interval band
// can be drawn as a stack: the lower bound as an invisible base and the
// upper bound as the stacked difference with a filled area.
type echartsBackend struct{}

func (echartsBackend) Name() string {
	return "echarts"
}

func (echartsBackend) Render(fig *Figure) error {
	line := buildEChart(fig)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return fmt.Errorf("echarts render: %w", err)
	}

	fig.Format = "html"
	fig.Content = buf.Bytes()
	return nil
}

func buildEChart(fig *Figure) *charts.Line {
	labels, position := categoryLabels(fig)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: fig.Title,
			Width:     fmt.Sprintf("%dpx", interactiveWidthPx),
			Height:    "500px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title: fig.Title,
			Left:  "center",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: fig.XLabel,
			Type: "category",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: fig.YLabel,
		}),
		charts.WithTooltipOpts(tooltipOpts(fig, labels, position)),
		charts.WithLegendOpts(opts.Legend{
			Show:   opts.Bool(true),
			Data:   legendOrder(fig),
			Orient: "vertical",
			Right:  "0",
			Top:    "middle",
		}),
		charts.WithGridOpts(opts.Grid{
			Right: "140",
		}),
		charts.WithDataZoomOpts(opts.DataZoom{
			Type:       "slider",
			Start:      0,
			End:        100,
			XAxisIndex: []int{0},
		}),
	)
	line.SetXAxis(labels)

	var lower []float64
	for _, trace := range fig.Traces {
		switch trace.Kind {
		case TraceLowerBound:
			lower = trace.Y
			line.AddSeries(trace.Name, lineData(trace.X, trace.Y, labels, position),
				charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false), Stack: intervalStack}),
				charts.WithLineStyleOpts(opts.LineStyle{Color: colorIntervalHidden}),
				charts.WithItemStyleOpts(opts.ItemStyle{Color: colorIntervalLine}),
			)
		case TraceUpperBound:
			line.AddSeries(trace.Name, lineData(trace.X, bandHeight(trace.Y, lower), labels, position),
				charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false), Stack: intervalStack}),
				charts.WithLineStyleOpts(opts.LineStyle{Color: colorIntervalHidden}),
				charts.WithItemStyleOpts(opts.ItemStyle{Color: colorIntervalLine}),
				charts.WithAreaStyleOpts(opts.AreaStyle{Color: colorIntervalFill}),
			)
		default:
			series := []charts.SeriesOpts{
				charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
				charts.WithLineStyleOpts(opts.LineStyle{Color: traceColor(trace.Kind), Width: 2}),
				charts.WithItemStyleOpts(opts.ItemStyle{Color: traceColor(trace.Kind)}),
			}
			if trace.Kind == TraceHistorical && fig.Boundary != nil {
				series = append(series,
					charts.WithMarkLineNameXAxisItemOpts(opts.MarkLineNameXAxisItem{
						Name:  fig.Boundary.Label,
						XAxis: formatTime(fig.Boundary.At),
					}),
					charts.WithMarkLineStyleOpts(opts.MarkLineStyle{
						Symbol: []string{"none", "none"},
						Label: &opts.Label{
							Show:      opts.Bool(true),
							Position:  "insideEndTop",
							Formatter: BoundaryLabel,
						},
					}),
				)
			}
			line.AddSeries(trace.Name, lineData(trace.X, trace.Y, labels, position), series...)
		}
	}

	return line
}

func tooltipOpts(fig *Figure, labels []string, position map[string]int) opts.Tooltip {
	tooltip := opts.Tooltip{
		Show:    opts.Bool(true),
		Trigger: "axis",
	}

	upper, ok := fig.Trace(TraceUpperBound)
	if !ok {
		return tooltip
	}

	values, err := json.Marshal(categoryValues(upper.X, upper.Y, labels, position))
	if err != nil {
		return tooltip
	}
	tooltip.Formatter = opts.FuncOpts(fmt.Sprintf(upperTooltip, values, missingPoint, upper.Name))
	return tooltip
}

// categoryValues spreads ys over the category axis. Categories without a
// finite value are nil.
func categoryValues(axis Axis, ys []float64, labels []string, position map[string]int) []interface{} {
	values := make([]interface{}, len(labels))
	for i, y := range ys {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}
		values[position[axis.Label(i)]] = y
	}
	return values
}

func traceColor(kind TraceKind) string {
	switch kind {
	case TraceActual:
		return colorActual
	case TraceHistorical:
		return colorHistorical
	default:
		return colorForecast
	}
}

// legendOrder lists the traces top to bottom, the reverse of the draw order.
func legendOrder(fig *Figure) []string {
	names := fig.TraceNames()
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return names
}

// categoryLabels builds the shared x axis: history labels first, then any
// forecast labels not seen yet.
func categoryLabels(fig *Figure) ([]string, map[string]int) {
	labels := []string{}
	position := map[string]int{}

	add := func(axis Axis) {
		for i := 0; i < axis.Len(); i++ {
			label := axis.Label(i)
			if _, ok := position[label]; ok {
				continue
			}
			position[label] = len(labels)
			labels = append(labels, label)
		}
	}

	if trace, ok := fig.Trace(TraceHistorical); ok {
		add(trace.X)
	}
	if trace, ok := fig.Trace(TraceForecast); ok {
		add(trace.X)
	}
	return labels, position
}

func lineData(axis Axis, ys []float64, labels []string, position map[string]int) []opts.LineData {
	values := categoryValues(axis, ys, labels, position)
	data := make([]opts.LineData, len(values))
	for i, value := range values {
		if value == nil {
			value = missingPoint
		}
		data[i] = opts.LineData{Value: value}
	}
	return data
}

// bandHeight is the stacked part of the interval: upper minus lower.
func bandHeight(upper, lower []float64) []float64 {
	height := make([]float64, len(upper))
	n := Min(len(upper), len(lower))
	for i := range height {
		if i >= n {
			height[i] = math.NaN()
			continue
		}
		height[i] = upper[i] - lower[i]
	}
	return height
}
