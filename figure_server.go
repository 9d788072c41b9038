package forecastplot

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

//go:embed webui
var webuiFiles embed.FS

var ErrServerClosed = errors.New("figure server closed")

const channelBufferSize = 64

// FigureNotice is sent on /ws for every published figure.
type FigureNotice struct {
	ID     uint32
	Title  string
	Format string
	URL    string
}

type publishedFigure struct {
	meta   FigureMetadata
	figure *Figure
}

// serverEvent is either a published figure or the end of the stream.
type serverEvent struct {
	published *publishedFigure
	ended     bool
}

// FigureServer is a Displayer that publishes figures over HTTP. It keeps the
// most recent figures in a ring; websocket clients get the ring replayed on
// connect and every later figure live.
type FigureServer struct {
	host string
	port uint16
	mux  *http.ServeMux

	// OpenBrowser opens the viewer page once the server is listening.
	OpenBrowser bool

	// Guards everything below. Held while replaying to a new channel so the
	// client does not miss a figure published in between.
	mutex    sync.Mutex
	nextID   uint32
	figures  *ThreadUnsafeRing[publishedFigure]
	channels []chan<- serverEvent
	closed   bool

	now    func() time.Time
	logger logrus.FieldLogger
}

// NewFigureServer buffers the last capacity figures for replay. A capacity
// below one keeps only the latest figure.
func NewFigureServer(host string, port uint16, capacity int) *FigureServer {
	if capacity < 1 {
		capacity = 1
	}

	s := &FigureServer{
		host:     host,
		port:     port,
		mux:      http.NewServeMux(),
		figures:  NewRing[publishedFigure](capacity),
		channels: make([]chan<- serverEvent, 0),
		now:      time.Now,
		logger:   logrus.WithField("tag", "FigureServer"),
	}

	subFS, err := fs.Sub(webuiFiles, "webui")
	if err != nil {
		panic(err)
	}

	s.mux.Handle("GET /", http.FileServer(http.FS(subFS)))
	s.mux.HandleFunc("GET /metadata", s.handleMetadata)
	s.mux.HandleFunc("GET /figures/latest", s.handleLatestFigure)
	s.mux.HandleFunc("GET /figures/{id}", s.handleFigure)
	s.mux.HandleFunc("GET /ws", s.handleNotices)
	s.mux.HandleFunc("GET /ws2", s.handleBinary)

	return s
}

// Display publishes a rendered figure to all connected clients.
func (s *FigureServer) Display(fig *Figure) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return ErrServerClosed
	}

	s.nextID++
	published := publishedFigure{
		meta:   newFigureMetadata(s.nextID, fig, s.now()),
		figure: fig,
	}
	s.figures.Push(published)

	for _, c := range s.channels {
		s.send(c, serverEvent{published: &published})
	}

	s.logger.WithFields(logrus.Fields{
		"id":       published.meta.ID,
		"title":    fig.Title,
		"channels": len(s.channels),
	}).Info("published figure")
	return nil
}

// Close ends the stream for every connected client. Later Display calls fail
// with ErrServerClosed.
func (s *FigureServer) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	for _, c := range s.channels {
		s.send(c, serverEvent{ended: true})
	}
}

// send never blocks: a client too slow to drain its channel loses figures
// instead of stalling publishing.
func (s *FigureServer) send(c chan<- serverEvent, event serverEvent) {
	select {
	case c <- event:
	default:
		s.logger.Warn("channel full, dropping event")
	}
}

// RegisterChannel replays the buffered figures into c and subscribes it to
// live updates. c needs room for the whole ring plus some slack.
func (s *FigureServer) RegisterChannel(c chan<- serverEvent) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, published := range s.figures.ReadAllOrdered() {
		published := published
		s.send(c, serverEvent{published: &published})
	}

	if s.closed {
		s.send(c, serverEvent{ended: true})
		return
	}

	s.channels = append(s.channels, c)
	s.logger.WithField("channels", len(s.channels)).Info("registered channel")
}

func (s *FigureServer) DeregisterChannel(c chan<- serverEvent) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.channels = Filter(s.channels, func(channel chan<- serverEvent) bool {
		return channel != c
	})
	s.logger.WithField("channels", len(s.channels)).Info("deregistered channel")
}

func (s *FigureServer) snapshot() []publishedFigure {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.figures.ReadAllOrdered()
}

func (s *FigureServer) handleMetadata(w http.ResponseWriter, req *http.Request) {
	figures := s.snapshot()
	metas := make([]FigureMetadata, 0, len(figures))
	for _, published := range figures {
		metas = append(metas, published.meta)
	}

	w.Header().Add("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(metas); err != nil {
		s.logger.WithError(err).Warn("failed to write metadata")
	}
}

func (s *FigureServer) handleLatestFigure(w http.ResponseWriter, req *http.Request) {
	s.mutex.Lock()
	latest, ok := s.figures.Newest()
	s.mutex.Unlock()

	if !ok {
		http.Error(w, "no figure published yet", http.StatusNotFound)
		return
	}
	s.writeFigure(w, latest.figure)
}

func (s *FigureServer) handleFigure(w http.ResponseWriter, req *http.Request) {
	id, err := strconv.ParseUint(req.PathValue("id"), 10, 32)
	if err != nil {
		http.Error(w, "invalid figure id", http.StatusBadRequest)
		return
	}

	for _, published := range s.snapshot() {
		if published.meta.ID == uint32(id) {
			s.writeFigure(w, published.figure)
			return
		}
	}
	http.Error(w, "figure not found", http.StatusNotFound)
}

func (s *FigureServer) writeFigure(w http.ResponseWriter, fig *Figure) {
	switch fig.Format {
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	case "png":
		w.Header().Set("Content-Type", "image/png")
	case "svg":
		w.Header().Set("Content-Type", "image/svg+xml")
	}
	if _, err := fig.WriteTo(w); err != nil {
		s.logger.WithError(err).WithField("title", fig.Title).Warn("failed to write figure")
	}
}

func figureNotice(meta FigureMetadata) FigureNotice {
	return FigureNotice{
		ID:     meta.ID,
		Title:  meta.Title,
		Format: meta.Format,
		URL:    fmt.Sprintf("/figures/%d", meta.ID),
	}
}

func (s *FigureServer) handleNotices(w http.ResponseWriter, req *http.Request) {
	s.serveWebSocket(w, req, func(ctx context.Context, c *websocket.Conn, published *publishedFigure) error {
		return wsjson.Write(ctx, c, figureNotice(published.meta))
	})
}

func (s *FigureServer) handleBinary(w http.ResponseWriter, req *http.Request) {
	s.serveWebSocket(w, req, func(ctx context.Context, c *websocket.Conn, published *publishedFigure) error {
		messages, err := encodeFigureMessages(published.meta, published.figure)
		if err != nil {
			s.logger.WithError(err).WithField("id", published.meta.ID).Error("failed to encode figure")
			return nil
		}
		for _, msg := range messages {
			if err := c.Write(ctx, websocket.MessageBinary, msg); err != nil {
				return err
			}
		}
		return nil
	})
}

// serveWebSocket pumps server events into a write-only websocket until the
// client goes away or the stream ends.
func (s *FigureServer) serveWebSocket(w http.ResponseWriter, req *http.Request, send func(context.Context, *websocket.Conn, *publishedFigure) error) {
	c, err := websocket.Accept(w, req, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.WithError(err).Warn("failed to accept new websocket connection")
		return
	}

	ctx := c.CloseRead(req.Context())

	channel := make(chan serverEvent, s.figures.capacity+channelBufferSize)
	wg := sync.WaitGroup{}
	wg.Add(1)

	go func() {
		defer wg.Done()
		for {
			select {
			case event := <-channel:
				if event.ended {
					s.sendStreamEnd(ctx, c, req.URL.Path)
					c.Close(websocket.StatusNormalClosure, "stream ended")
					return
				}

				if err := send(ctx, c, event.published); err != nil {
					s.logger.WithError(err).Warn("websocket write failed and closed")
					return
				}
			case <-ctx.Done():
				s.logger.Info("client closed connection or context canceled")
				c.Close(websocket.StatusNormalClosure, "")
				return
			}
		}
	}()

	// The writer goroutine is already receiving, so registration can replay
	// the ring straight into the channel.
	s.RegisterChannel(channel)

	wg.Wait()
	s.DeregisterChannel(channel)
}

func (s *FigureServer) sendStreamEnd(ctx context.Context, c *websocket.Conn, path string) {
	if path != "/ws2" {
		return
	}

	msg, err := EncodeWSMessage(WSMessage{
		Header:  EnvelopeHeader{Version: ProtocolVersion, Type: MessageTypeStreamEnd},
		Payload: StreamEndMessage{Msg: "server closed"},
	})
	if err != nil {
		s.logger.WithError(err).Error("failed to encode stream end")
		return
	}
	if err := c.Write(ctx, websocket.MessageBinary, msg); err != nil {
		s.logger.WithError(err).Warn("failed to send stream end")
	}
}

// Run serves until ctx is canceled, then closes the stream and shuts down.
func (s *FigureServer) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", net.JoinHostPort(s.host, strconv.Itoa(int(s.port))))
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s", listener.Addr())
	s.logger.Infof("starting figure server at %s", url)
	if s.OpenBrowser {
		OpenBrowser(url)
	}

	srv := &http.Server{Handler: s.mux}
	go func() {
		<-ctx.Done()
		s.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	err = srv.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
