package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cactusdynamics/forecastplot"
)

func freePort(t *testing.T) uint16 {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to get free port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()
	return uint16(port)
}

func testFigure(title string, ys ...float64) *forecastplot.Figure {
	return &forecastplot.Figure{
		Title:  title,
		XLabel: forecastplot.XAxisLabel,
		YLabel: "y",
		Traces: []forecastplot.Trace{
			{Kind: forecastplot.TraceActual, Name: "Actual", X: forecastplot.StepAxis(0, len(ys)), Y: ys},
			{Kind: forecastplot.TraceForecast, Name: "Forecast", X: forecastplot.StepAxis(0, len(ys)), Y: ys},
		},
		Format:  "html",
		Content: []byte("<html></html>"),
	}
}

// startServer runs a figure server until the test ends.
func startServer(t *testing.T) (*forecastplot.FigureServer, string) {
	t.Helper()

	port := freePort(t)
	server := forecastplot.NewFigureServer("127.0.0.1", port, 8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	serverURL := "http://127.0.0.1:" + strconv.Itoa(int(port))
	deadline := time.Now().Add(2 * time.Second)
	for {
		conn, err := net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(int(port)))
		if err == nil {
			conn.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not start: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	return server, serverURL
}

func connectWithTimeout(t *testing.T, reader *WSReader) {
	t.Helper()

	done := make(chan error, 1)
	go func() {
		done <- reader.Connect(context.Background())
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WSReader.Connect() failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("WSReader.Connect() timed out")
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// TestWSReaderFigures reads replayed figures and stops after MaxFigures.
func TestWSReaderFigures(t *testing.T) {
	server, serverURL := startServer(t)

	if err := server.Display(testFigure("first", 1.5, 2.5)); err != nil {
		t.Fatal(err)
	}
	if err := server.Display(testFigure("second", 3)); err != nil {
		t.Fatal(err)
	}

	var output bytes.Buffer
	reader := NewWSReader(Config{
		ServerURL:  serverURL,
		Output:     &output,
		Logger:     testLogger(),
		MaxFigures: 2,
	})
	connectWithTimeout(t, reader)

	want := strings.Join([]string{
		"figure_id,series,x,y",
		"1,Actual,0,1.5",
		"1,Actual,1,2.5",
		"1,Forecast,0,1.5",
		"1,Forecast,1,2.5",
		"2,Actual,0,3",
		"2,Forecast,0,3",
	}, "\n")
	if got := strings.TrimSpace(output.String()); got != want {
		t.Fatalf("CSV output:\n%s\nwant:\n%s", got, want)
	}
}

// TestWSReaderStreamEnd stops reading when the server closes the stream.
func TestWSReaderStreamEnd(t *testing.T) {
	server, serverURL := startServer(t)

	if err := server.Display(testFigure("only", 7)); err != nil {
		t.Fatal(err)
	}
	server.Close()

	var output bytes.Buffer
	reader := NewWSReader(Config{
		ServerURL: serverURL,
		Output:    &output,
		Logger:    testLogger(),
	})
	connectWithTimeout(t, reader)

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header and 2 rows: %q", len(lines), lines)
	}
	if lines[1] != "1,Actual,0,7" {
		t.Fatalf("first row = %q", lines[1])
	}
}

func TestWSReaderInvalidURL(t *testing.T) {
	reader := NewWSReader(Config{
		ServerURL: "://bad",
		Output:    io.Discard,
		Logger:    testLogger(),
	})
	if err := reader.Connect(context.Background()); err == nil {
		t.Fatal("expected an error for an invalid URL")
	}
}

func TestSeriesNameFallback(t *testing.T) {
	reader := NewWSReader(Config{Output: io.Discard, Logger: testLogger()})
	reader.series[1] = []string{"Forecast"}

	if got := reader.seriesName(1, 0); got != "Forecast" {
		t.Fatalf("seriesName(1, 0) = %q", got)
	}
	if got := reader.seriesName(1, 3); got != "3" {
		t.Fatalf("seriesName(1, 3) = %q", got)
	}
}
