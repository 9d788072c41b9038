package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strconv"

	"github.com/cactusdynamics/forecastplot"
	"nhooyr.io/websocket"
)

// Config holds the configuration for the WS reader
type Config struct {
	ServerURL string
	Output    io.Writer
	Logger    *slog.Logger

	// Stop after this many figures. Zero reads until the stream ends.
	MaxFigures int
}

// WSReader reads figures from the forecastplot /ws2 endpoint and writes their
// traces as CSV.
type WSReader struct {
	config    Config
	csvWriter *csv.Writer

	series      map[uint32][]string
	figuresSeen int
}

var errMaxFigures = errors.New("max figures reached")

func NewWSReader(config Config) *WSReader {
	return &WSReader{
		config:    config,
		csvWriter: csv.NewWriter(config.Output),
		series:    map[uint32][]string{},
	}
}

// Connect establishes the websocket connection and processes messages until
// the stream ends.
func (w *WSReader) Connect(ctx context.Context) error {
	u, err := url.Parse(w.config.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws2"

	w.config.Logger.Info("Connecting to websocket", "url", u.String())

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to websocket: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if err := w.csvWriter.Write([]string{"figure_id", "series", "x", "y"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for {
		_, messageData, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				w.config.Logger.Info("Connection closed normally")
				break
			}
			w.config.Logger.Error("Error reading message", "error", err)
			break
		}

		if err := w.processMessage(messageData); err != nil {
			if err == io.EOF {
				w.config.Logger.Info("Stream ended")
				break
			}
			if err == errMaxFigures {
				break
			}
			w.config.Logger.Error("Error processing message", "error", err)
		}
	}

	w.csvWriter.Flush()
	return w.csvWriter.Error()
}

func (w *WSReader) processMessage(messageData []byte) error {
	msg, err := forecastplot.DecodeWSMessage(messageData)
	if err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}

	switch msg.Header.Type {
	case forecastplot.MessageTypeTrace:
		trace, ok := msg.Payload.(forecastplot.TraceMessage)
		if !ok {
			return fmt.Errorf("invalid TRACE message payload type: %T", msg.Payload)
		}
		if err := w.processTraceMessage(trace); err != nil {
			return err
		}

		// The last trace of a figure completes it.
		if names := w.series[trace.FigureID]; int(trace.SeriesID) == len(names)-1 {
			w.figuresSeen++
			if w.config.MaxFigures > 0 && w.figuresSeen >= w.config.MaxFigures {
				return errMaxFigures
			}
		}

	case forecastplot.MessageTypeFigure:
		meta, ok := msg.Payload.(forecastplot.FigureMetadata)
		if !ok {
			return fmt.Errorf("invalid FIGURE message payload type: %T", msg.Payload)
		}
		w.series[meta.ID] = meta.Series
		w.config.Logger.Debug("Received figure", "id", meta.ID, "title", meta.Title, "series", meta.Series)

	case forecastplot.MessageTypeStreamEnd:
		streamEnd, ok := msg.Payload.(forecastplot.StreamEndMessage)
		if !ok {
			return fmt.Errorf("invalid STREAM_END message payload type: %T", msg.Payload)
		}
		if streamEnd.Error {
			w.config.Logger.Error("Stream ended with error", "message", streamEnd.Msg)
		} else {
			w.config.Logger.Info("Stream ended successfully", "message", streamEnd.Msg)
		}
		return io.EOF

	default:
		w.config.Logger.Warn("Unknown message type", "type", fmt.Sprintf("0x%02x", msg.Header.Type))
	}

	return nil
}

// seriesName falls back to the numeric id when the FIGURE message was missed.
func (w *WSReader) seriesName(figureID, seriesID uint32) string {
	names := w.series[figureID]
	if int(seriesID) < len(names) {
		return names[seriesID]
	}
	return strconv.FormatUint(uint64(seriesID), 10)
}

func (w *WSReader) processTraceMessage(trace forecastplot.TraceMessage) error {
	figureID := strconv.FormatUint(uint64(trace.FigureID), 10)
	series := w.seriesName(trace.FigureID, trace.SeriesID)

	for i := 0; i < len(trace.X); i++ {
		row := []string{
			figureID,
			series,
			strconv.FormatFloat(trace.X[i], 'g', -1, 64),
			strconv.FormatFloat(trace.Y[i], 'g', -1, 64),
		}
		if err := w.csvWriter.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.csvWriter.Flush()
	return w.csvWriter.Error()
}

func main() {
	var serverURL = flag.String("url", "http://localhost:5284", "URL of the forecastplot figure server")
	var maxFigures = flag.Int("n", 0, "stop after this many figures (0 = until the server closes)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	config := Config{
		ServerURL:  *serverURL,
		Output:     os.Stdout,
		Logger:     logger,
		MaxFigures: *maxFigures,
	}

	reader := NewWSReader(config)
	if err := reader.Connect(context.Background()); err != nil {
		config.Logger.Error("Failed to connect", "error", err)
		os.Exit(1)
	}
}
