//go:build !nointeractive && !nostatic

package forecastplot

import (
	"errors"
	"reflect"
	"testing"
)

type recordingDisplayer struct {
	figures []*Figure
	err     error
}

func (d *recordingDisplayer) Display(fig *Figure) error {
	d.figures = append(d.figures, fig)
	return d.err
}

func testRequest(t *testing.T) Request {
	t.Helper()
	return Request{
		Forecast:     newTestRecord(t, testColumn{"y", []float64{1, 2, 3, 4, 5}}),
		TimestampCol: Cols("ts"),
		TargetCol:    Cols("y"),
		History:      newTestRecord(t, testColumn{"y", []float64{0, 0.5, 1}}),
		Actual:       newTestRecord(t, testColumn{"y", []float64{1, 2, 3, 4, 5}}),
		Interval: &Interval{
			Upper: newTestRecord(t, testColumn{"y", []float64{2, 3, 4, 5, 6}}),
			Lower: newTestRecord(t, testColumn{"y", []float64{0, 1, 2, 3, 4}}),
		},
		ShowInterval:   true,
		IncludeHistory: true,
	}
}

func TestPlotterRenderInteractive(t *testing.T) {
	displayer := &recordingDisplayer{}
	fig, err := NewPlotter(displayer).RenderInteractive(testRequest(t))
	if err != nil {
		t.Fatal(err)
	}

	if len(displayer.figures) != 1 || displayer.figures[0] != fig {
		t.Fatalf("displayer got %d figures", len(displayer.figures))
	}
	if fig.Format != "html" || len(fig.Content) == 0 {
		t.Fatalf("figure not rendered: format %q, %d bytes", fig.Format, len(fig.Content))
	}

	forecast, _ := fig.Trace(TraceForecast)
	if want := []int{3, 4, 5, 6, 7}; !reflect.DeepEqual(forecast.X.Steps, want) {
		t.Fatalf("forecast x = %v, want %v", forecast.X.Steps, want)
	}
}

func TestPlotterRenderStatic(t *testing.T) {
	displayer := &recordingDisplayer{}
	fig, err := NewPlotter(displayer).RenderStatic(testRequest(t),
		WithFigsize(10, 4),
		WithGrid(false),
		WithFormat("svg"),
	)
	if err != nil {
		t.Fatal(err)
	}

	if len(displayer.figures) != 1 {
		t.Fatalf("displayer got %d figures", len(displayer.figures))
	}
	if fig.Size != (Size{Width: 10, Height: 4}) || fig.Grid || fig.Format != "svg" {
		t.Fatalf("options not applied: size %+v grid %v format %q", fig.Size, fig.Grid, fig.Format)
	}
}

func TestPlotterValidatesBeforeDrawing(t *testing.T) {
	req := testRequest(t)
	req.VarID = VarName("missing")

	displayer := &recordingDisplayer{}
	plotter := NewPlotter(displayer)

	if _, err := plotter.RenderInteractive(req); !errors.Is(err, ErrInvalidVarID) {
		t.Fatalf("interactive err = %v, want ErrInvalidVarID", err)
	}
	if _, err := plotter.RenderStatic(req); !errors.Is(err, ErrInvalidVarID) {
		t.Fatalf("static err = %v, want ErrInvalidVarID", err)
	}
	if len(displayer.figures) != 0 {
		t.Fatalf("displayer called %d times on invalid input", len(displayer.figures))
	}
}

func TestPlotterDisplayError(t *testing.T) {
	wantErr := errors.New("no display")
	fig, err := NewPlotter(&recordingDisplayer{err: wantErr}).RenderInteractive(testRequest(t))
	if !errors.Is(err, wantErr) || fig != nil {
		t.Fatalf("got %v, %v; want nil, %v", fig, err, wantErr)
	}
}

func TestPlotterWithoutDisplayer(t *testing.T) {
	fig, err := NewPlotter(nil).RenderStatic(testRequest(t))
	if err != nil {
		t.Fatal(err)
	}
	if fig.Format != "png" || fig.Size != (Size{Width: 16, Height: 6}) || !fig.Grid {
		t.Fatalf("defaults not applied: %+v", fig)
	}
}

func TestBackendsEnabled(t *testing.T) {
	if !InteractiveEnabled() || !StaticEnabled() {
		t.Fatalf("interactive %v static %v, want both enabled", InteractiveEnabled(), StaticEnabled())
	}
}
