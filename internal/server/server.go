package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jpalmerr/remotedata/resource"
)

const (
	// streamWriteTimeout bounds a single SSE or WebSocket write so slow or
	// disconnected clients cannot pin a handler goroutine.
	// Must be <= shutdown timeout to ensure clean shutdown.
	streamWriteTimeout = 5 * time.Second

	// shutdownTimeout is how long in-flight requests get after ctx is cancelled.
	shutdownTimeout = 5 * time.Second

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "remotedata"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"
)

// Snapshot is the JSON shape served for one resource.
type Snapshot = resource.Snapshot[json.RawMessage]

// Source provides resource state to the server.
type Source interface {
	// Snapshots returns every resource, sorted by name.
	Snapshots() []Snapshot

	// Snapshot returns one resource by name.
	Snapshot(name string) (Snapshot, bool)

	// Subscribe returns a channel of changes. Slow readers may miss changes.
	Subscribe() <-chan Snapshot

	// Unsubscribe removes a subscription and closes its channel.
	Unsubscribe(ch <-chan Snapshot)
}

// Refresher triggers an out-of-schedule load of a resource.
type Refresher interface {
	// Refresh loads the named resource. It returns an error wrapping
	// [ErrUnknownResource] when the name is not registered.
	Refresh(ctx context.Context, name string) error
}

// ErrUnknownResource is matched by Refresher errors for unregistered names.
var ErrUnknownResource = errors.New("unknown resource")

// Server serves the dashboard and resource API.
//
// Routes:
//   - GET /: embedded dashboard HTML
//   - GET /api/resources: all snapshots as JSON
//   - GET /api/resources/{name}: one snapshot, 404 if unknown
//   - POST /api/resources/{name}/refresh: trigger a load, 202 Accepted
//   - GET /api/sse: Server-Sent Events stream of snapshots
//   - GET /api/ws: WebSocket stream of snapshots
type Server struct {
	source     Source
	refresher  Refresher
	port       int
	httpServer *http.Server
	assets     fs.FS
	title      string
	logger     *slog.Logger
	upgrader   websocket.Upgrader

	// refreshCtx parents background refreshes started by POST requests
	refreshCtx context.Context
}

// NewServer creates a new HTTP [Server].
//
// refresher may be nil, in which case the refresh route answers 501.
// assets may be nil, in which case "/" is not served.
func NewServer(source Source, refresher Refresher, port int, assets fs.FS, title string, logger *slog.Logger) *Server {
	return &Server{
		source:    source,
		refresher: refresher,
		port:      port,
		assets:    assets,
		title:     title,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		refreshCtx: context.Background(),
	}
}

// Handler returns the route multiplexer. Exposed for tests and embedding.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/resources", s.handleList)
	mux.HandleFunc("GET /api/resources/{name}", s.handleGet)
	mux.HandleFunc("POST /api/resources/{name}/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/sse", s.handleSSE)
	mux.HandleFunc("GET /api/ws", s.handleWebSocket)

	if s.assets != nil {
		mux.HandleFunc("GET /{$}", s.handleDashboard)
	}
	return mux
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start returns once the listener is bound. The server shuts down gracefully
// when ctx is cancelled. Returns an error if the port cannot be bound.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.refreshCtx = ctx
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts derive from ctx so streaming handlers end on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// handleDashboard serves the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	title := s.title
	if title == "" {
		title = defaultTitle
	}
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, html.EscapeString(title))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.source.Snapshots())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.source.Snapshot(r.PathValue("name"))
	if !ok {
		http.Error(w, "Resource not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// handleRefresh starts a load in the background and answers 202 immediately.
// Progress is visible through the snapshot's is_loading flag.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		http.Error(w, "Refresh not supported", http.StatusNotImplemented)
		return
	}

	name := r.PathValue("name")
	if _, ok := s.source.Snapshot(name); !ok {
		http.Error(w, "Resource not found", http.StatusNotFound)
		return
	}

	go func() {
		if err := s.refresher.Refresh(s.refreshCtx, name); err != nil {
			s.logger.Warn("refresh failed", "resource", name, "error", err.Error())
		}
	}()

	s.writeJSON(w, http.StatusAccepted, map[string]string{"resource": name, "status": "refreshing"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// handleSSE streams snapshots via Server-Sent Events.
//
// Writes carry deadlines so a slow or disconnected client cannot block the
// handler from noticing shutdown.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	s.stream(r.Context(), func(snap Snapshot) error {
		data, err := json.Marshal(snap)
		if err != nil {
			return nil
		}
		return writeAndFlush(data)
	})
}

// handleWebSocket streams snapshots as WebSocket text frames.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// the read loop only exists to notice the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	s.stream(ctx, func(snap Snapshot) error {
		if err := conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
			return err
		}
		return conn.WriteJSON(snap)
	})

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(time.Second))
}

// stream sends the current snapshots, then every change, until ctx is done,
// the subscription closes, or send fails.
func (s *Server) stream(ctx context.Context, send func(Snapshot) error) {
	ch := s.source.Subscribe()
	defer s.source.Unsubscribe(ch)

	for _, snap := range s.source.Snapshots() {
		if err := send(snap); err != nil {
			return
		}
	}

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if err := send(snap); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
