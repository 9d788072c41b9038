package forecastplot

import (
	"io"
	"strconv"
	"time"
)

const (
	TitleWithActual    = "Actual vs Forecast"
	TitleForecastOnly  = "Forecast Curve"
	XAxisLabel         = "Date"
	BoundaryLabel      = "Observed End Date"
	dateLayout         = "2006-01-02"
	dateTimeLayout     = "2006-01-02 15:04:05"
	interactiveWidthPx = 1000
)

// Axis is either a series of times or a synthetic integer index, never both.
type Axis struct {
	Timed bool
	Times []time.Time
	Steps []int
}

func TimeAxis(times []time.Time) Axis {
	return Axis{Timed: true, Times: times}
}

func StepAxis(start, stop int) Axis {
	return Axis{Steps: Arange(start, stop)}
}

func (a Axis) Len() int {
	if a.Timed {
		return len(a.Times)
	}
	return len(a.Steps)
}

// Float returns the numeric position of point i: unix seconds for timed axes.
func (a Axis) Float(i int) float64 {
	if a.Timed {
		return float64(a.Times[i].UnixNano()) / 1e9
	}
	return float64(a.Steps[i])
}

// Label formats point i for display. Times at midnight print as dates.
func (a Axis) Label(i int) string {
	if a.Timed {
		return formatTime(a.Times[i])
	}
	return strconv.Itoa(a.Steps[i])
}

func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(dateLayout)
	}
	return t.Format(dateTimeLayout)
}

type TraceKind int

const (
	TraceLowerBound TraceKind = iota
	TraceUpperBound
	TraceActual
	TraceForecast
	TraceHistorical
)

func (k TraceKind) String() string {
	switch k {
	case TraceLowerBound:
		return "Lower Bound"
	case TraceUpperBound:
		return "Upper Bound"
	case TraceActual:
		return "Actual"
	case TraceForecast:
		return "Forecast"
	case TraceHistorical:
		return "Historical"
	default:
		return "Unknown"
	}
}

type Trace struct {
	Kind TraceKind
	Name string
	X    Axis
	Y    []float64
}

// Boundary marks the end of the observed history.
type Boundary struct {
	Label string
	At    time.Time
}

// Size is a figure size in inches.
type Size struct {
	Width  float64
	Height float64
}

// Figure is the backend-neutral result of a render call. Traces are stored
// bottom to top.
type Figure struct {
	Title    string
	XLabel   string
	YLabel   string
	Traces   []Trace
	Boundary *Boundary

	Size Size
	Grid bool

	// Filled in by the backend.
	Format  string
	Content []byte
}

// Trace returns the first trace of the given kind.
func (f *Figure) Trace(kind TraceKind) (Trace, bool) {
	for _, trace := range f.Traces {
		if trace.Kind == kind {
			return trace, true
		}
	}
	return Trace{}, false
}

// TraceNames lists the trace names bottom to top.
func (f *Figure) TraceNames() []string {
	names := make([]string, 0, len(f.Traces))
	for _, trace := range f.Traces {
		names = append(names, trace.Name)
	}
	return names
}

func (f *Figure) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(f.Content)
	return int64(n), err
}

// newFigure lays the prepared series out as traces, lower bound first and
// history last.
func newFigure(s *preparedSeries) *Figure {
	fig := &Figure{
		Title:  TitleForecastOnly,
		XLabel: XAxisLabel,
		YLabel: s.Target,
		Grid:   true,
	}

	if s.Lower != nil && s.Upper != nil {
		fig.Traces = append(fig.Traces,
			Trace{Kind: TraceLowerBound, Name: TraceLowerBound.String(), X: s.ForecastX, Y: s.Lower},
			Trace{Kind: TraceUpperBound, Name: TraceUpperBound.String(), X: s.ForecastX, Y: s.Upper},
		)
	}

	if s.ActualY != nil {
		fig.Title = TitleWithActual
		fig.Traces = append(fig.Traces, Trace{Kind: TraceActual, Name: TraceActual.String(), X: s.ForecastX, Y: s.ActualY})
	}

	fig.Traces = append(fig.Traces, Trace{Kind: TraceForecast, Name: TraceForecast.String(), X: s.ForecastX, Y: s.ForecastY})

	if s.HistoryY != nil {
		fig.Traces = append(fig.Traces, Trace{Kind: TraceHistorical, Name: TraceHistorical.String(), X: s.HistoryX, Y: s.HistoryY})

		if s.Boundary != nil {
			fig.Boundary = &Boundary{Label: BoundaryLabel, At: *s.Boundary}
		}
	}

	return fig
}
