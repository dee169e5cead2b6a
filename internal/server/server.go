// Package server exposes one poller over HTTP: a JSON API for the CLI and
// browser add-ins, a WebSocket stream of statistics and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fakeyudi/typetrace/internal/metrics"
	"github.com/fakeyudi/typetrace/internal/poller"
	"github.com/fakeyudi/typetrace/internal/source"
)

const (
	// DefaultRefreshInterval is how often /ws pushes statistics.
	DefaultRefreshInterval = 2 * time.Second
	// DefaultCPSSamples is the /api/cps window when last is not given.
	DefaultCPSSamples = 10

	maxDocumentBytes = 16 << 20

	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Status is the logging state returned by the control routes.
type Status struct {
	IsLogging  bool       `json:"isLogging"`
	RunID      string     `json:"runId,omitempty"`
	Changes    int        `json:"changes"`
	LastPushAt *time.Time `json:"lastPushAt,omitempty"` // unset until an editor pushes
}

// Option configures a Server.
type Option func(*Server)

// WithPush enables PUT/POST /api/document, feeding pushed text to p.
func WithPush(p *source.Push) Option {
	return func(s *Server) { s.push = p }
}

// WithMetrics mounts the recorder's handler on /metrics.
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Server) { s.metrics = m }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRefreshInterval sets the /ws push period.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.refresh = d
		}
	}
}

// WithAuthor stamps exports with the given author.
func WithAuthor(name string) Option {
	return func(s *Server) { s.author = name }
}

// WithClock replaces time.Now for export timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// Server serves the API for a single poller.
type Server struct {
	poller  *poller.Poller
	push    *source.Push
	metrics *metrics.Recorder
	logger  *zap.SugaredLogger
	refresh time.Duration
	author  string
	now     func() time.Time

	upgrader websocket.Upgrader
}

// New returns a Server around p.
func New(p *poller.Poller, opts ...Option) *Server {
	s := &Server{
		poller:  p,
		logger:  zap.NewNop().Sugar(),
		refresh: DefaultRefreshInterval,
		now:     time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The API binds to loopback by default and add-ins are served
			// from their host's origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/changes", s.handleChanges)
	mux.HandleFunc("GET /api/cps", s.handleCPS)
	mux.HandleFunc("POST /api/start", s.handleStart)
	mux.HandleFunc("POST /api/stop", s.handleStop)
	mux.HandleFunc("POST /api/clear", s.handleClear)
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("GET /api/text", s.handleText)
	mux.HandleFunc("PUT /api/document", s.handleDocument)
	mux.HandleFunc("POST /api/document", s.handleDocument)
	mux.HandleFunc("GET /ws", s.handleWS)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return s.logRequests(mux)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully. Request contexts derive from ctx so open streams end with it.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Infow("api listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	s.logger.Infow("api stopped")
	return nil
}

func (s *Server) status() Status {
	st := Status{
		IsLogging: s.poller.IsActive(),
		RunID:     s.poller.RunID(),
		Changes:   s.poller.History().Len(),
	}
	if s.push != nil {
		if at := s.push.PushedAt(); !at.IsZero() {
			st.LastPushAt = &at
		}
	}
	return st
}
