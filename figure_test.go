package forecastplot

import (
	"reflect"
	"testing"
	"time"
)

func TestNewFigure(t *testing.T) {
	steps := StepAxis(0, 2)

	t.Run("forecast only", func(t *testing.T) {
		fig := newFigure(&preparedSeries{Target: "y", ForecastX: steps, ForecastY: []float64{1, 2}})

		if fig.Title != TitleForecastOnly {
			t.Fatalf("title = %q, want %q", fig.Title, TitleForecastOnly)
		}
		if fig.XLabel != XAxisLabel || fig.YLabel != "y" {
			t.Fatalf("labels = %q / %q", fig.XLabel, fig.YLabel)
		}
		if got, want := fig.TraceNames(), []string{"Forecast"}; !reflect.DeepEqual(got, want) {
			t.Fatalf("traces = %v, want %v", got, want)
		}
	})

	t.Run("all traces bottom to top", func(t *testing.T) {
		boundary := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
		fig := newFigure(&preparedSeries{
			Target:    "y",
			ForecastX: steps,
			ForecastY: []float64{1, 2},
			ActualY:   []float64{1, 2},
			HistoryX:  steps,
			HistoryY:  []float64{0, 0},
			Boundary:  &boundary,
			Upper:     []float64{2, 3},
			Lower:     []float64{0, 1},
		})

		if fig.Title != TitleWithActual {
			t.Fatalf("title = %q, want %q", fig.Title, TitleWithActual)
		}
		want := []string{"Lower Bound", "Upper Bound", "Actual", "Forecast", "Historical"}
		if got := fig.TraceNames(); !reflect.DeepEqual(got, want) {
			t.Fatalf("traces = %v, want %v", got, want)
		}
		if fig.Boundary == nil || fig.Boundary.Label != BoundaryLabel || !fig.Boundary.At.Equal(boundary) {
			t.Fatalf("boundary = %+v", fig.Boundary)
		}
	})

	t.Run("one sided interval is dropped", func(t *testing.T) {
		fig := newFigure(&preparedSeries{ForecastX: steps, ForecastY: []float64{1, 2}, Upper: []float64{2, 3}})
		if _, ok := fig.Trace(TraceUpperBound); ok {
			t.Fatal("upper bound drawn without lower bound")
		}
	})
}

func TestAxisLabel(t *testing.T) {
	axis := TimeAxis([]time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 6, 30, 0, 0, time.UTC),
	})

	if got := axis.Label(0); got != "2024-01-01" {
		t.Fatalf("Label(0) = %q", got)
	}
	if got := axis.Label(1); got != "2024-01-01 06:30:00" {
		t.Fatalf("Label(1) = %q", got)
	}
	if got := axis.Float(0); got != 1704067200 {
		t.Fatalf("Float(0) = %v, want 1704067200", got)
	}

	steps := StepAxis(3, 5)
	if steps.Len() != 2 || steps.Label(1) != "4" || steps.Float(0) != 3 {
		t.Fatalf("step axis %+v", steps)
	}
}
