// Package server exposes a forest over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/treestore/pkg/config"
	"github.com/Sumatoshi-tech/treestore/pkg/forest"
	"github.com/Sumatoshi-tech/treestore/pkg/observability"
)

// Options configures a Server.
type Options struct {
	Logger         *slog.Logger
	Tracer         trace.Tracer
	RED            *observability.REDMetrics
	MetricsHandler http.Handler

	// Snapshot, when set, backs POST /api/snapshot.
	Snapshot Snapshotter

	// MaxImportBytes caps import request bodies. Zero disables the cap.
	MaxImportBytes int64
}

// Snapshotter persists the forest on demand.
type Snapshotter interface {
	Save(store *forest.Store) error
}

// Server serves one guarded forest.
type Server struct {
	forest    *forest.Guarded
	logger    *slog.Logger
	tracer    trace.Tracer
	red       *observability.REDMetrics
	metrics   http.Handler
	snapshot  Snapshotter
	maxImport int64
}

// New creates a Server over guarded.
func New(guarded *forest.Guarded, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("")
	}

	return &Server{
		forest:    guarded,
		logger:    opts.Logger,
		tracer:    opts.Tracer,
		red:       opts.RED,
		metrics:   opts.MetricsHandler,
		snapshot:  opts.Snapshot,
		maxImport: opts.MaxImportBytes,
	}
}

// Handler returns the routed API wrapped in tracing and RED middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/page", s.handlePage)
	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("POST /api/nodes", s.handleInsert)
	mux.HandleFunc("GET /api/nodes/{id}", s.handleGet)
	mux.HandleFunc("PATCH /api/nodes/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /api/nodes/{id}", s.handleRemove)
	mux.HandleFunc("POST /api/nodes/{id}/move", s.handleMove)
	mux.HandleFunc("POST /api/nodes/{id}/toggle", s.handleToggle)
	mux.HandleFunc("GET /api/selection", s.handleSelection)
	mux.HandleFunc("DELETE /api/selection", s.handleClearSelection)
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("PUT /api/import", s.handleImport)
	mux.HandleFunc("POST /api/snapshot", s.handleSnapshot)

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	return observability.HTTPMiddleware(s.tracer, s.red, mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
// within cfg.ShutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, cfg config.ServerConfig) error {
	listener, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Addr(), err)
	}

	return s.Serve(ctx, listener, cfg)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener, cfg config.ServerConfig) error {
	httpServer := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	serveErr := make(chan error, 1)

	go func() {
		s.logger.InfoContext(ctx, "treestore API listening", "addr", listener.Addr().String())
		serveErr <- httpServer.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	s.logger.InfoContext(ctx, "treestore API shutting down")

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}
