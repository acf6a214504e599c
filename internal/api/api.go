// Package api exposes the treatment engine over HTTP.
//
// It is a thin harness: every request maps onto one engine operation and the
// engine's TurnResult is returned inside the standard APIResponse envelope.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/shiftengine/internal/models"
	"github.com/BTreeMap/shiftengine/internal/util"
)

// DefaultServerAddress is used when no address is configured.
const DefaultServerAddress = ":8080"

const shutdownTimeout = 10 * time.Second

// Engine is the subset of the treatment engine the server drives.
type Engine interface {
	StartSession(ctx context.Context, sessionID string) (models.TurnResult, error)
	ContinueSession(ctx context.Context, sessionID, input string) (models.TurnResult, error)
	Snapshot(ctx context.Context, sessionID string) (*models.SessionContext, error)
	History(ctx context.Context, sessionID string) ([]models.Interaction, error)
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr           string       // address to listen on
	MetricsHandler http.Handler // served on /metrics when set
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithMetricsHandler mounts h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(o *Opts) {
		o.MetricsHandler = h
	}
}

// Server holds the HTTP routes and their dependencies.
type Server struct {
	engine  Engine
	addr    string
	mux     *http.ServeMux
	handler http.Handler
}

// NewServer creates a server over engine.
func NewServer(engine Engine, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultServerAddress}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{engine: engine, addr: cfg.Addr, mux: http.NewServeMux()}
	s.mux.HandleFunc("/sessions", s.sessionsHandler)
	s.mux.HandleFunc("/sessions/", s.sessionsHandler)
	s.mux.HandleFunc("/health", s.healthHandler)
	if cfg.MetricsHandler != nil {
		s.mux.Handle("/metrics", cfg.MetricsHandler)
	}
	s.handler = withRequestID(s.mux)
	slog.Debug("api.NewServer: routes registered", "addr", s.addr, "metrics", cfg.MetricsHandler != nil)
	return s
}

// withRequestID tags every request with an X-Request-ID (kept when the
// caller sends one) and logs it with the status and duration.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = util.GenerateRequestID()
		}
		w.Header().Set(requestIDHeader, id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		slog.Debug("Server.request: handled", "request_id", id, "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration", time.Since(start))
	})
}

const requestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Handler returns the root handler, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: API listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("Server.Run: listener failed", "addr", s.addr, "error", err)
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	slog.Info("Server.Run: shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server.Run: shutdown failed", "error", err)
		return err
	}
	return <-errCh
}
