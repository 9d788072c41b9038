package forecastplot

import "time"

// FigureMetadata describes a figure published on a FigureServer. It is
// served on /metadata and sent ahead of the trace data on /ws2.
type FigureMetadata struct {
	ID           uint32
	Title        string
	XLabel       string
	YLabel       string
	Format       string
	XIsTimestamp bool
	Series       []string
	Boundary     *float64 `json:",omitempty"` // unix seconds
	CreatedAt    time.Time
}

func newFigureMetadata(id uint32, fig *Figure, createdAt time.Time) FigureMetadata {
	meta := FigureMetadata{
		ID:        id,
		Title:     fig.Title,
		XLabel:    fig.XLabel,
		YLabel:    fig.YLabel,
		Format:    fig.Format,
		Series:    fig.TraceNames(),
		CreatedAt: createdAt,
	}

	if trace, ok := fig.Trace(TraceForecast); ok {
		meta.XIsTimestamp = trace.X.Timed
	}

	if fig.Boundary != nil {
		boundary := TimeAxis([]time.Time{fig.Boundary.At}).Float(0)
		meta.Boundary = &boundary
	}

	return meta
}
