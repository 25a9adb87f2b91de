// Package httpapi implements the HTTP façade: a thin, stateless JSON
// layer in front of the process-wide retrieval.Engine. Every handler is a
// direct translation of one Engine method; no retrieval logic lives here.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fsnotify/fsnotify"

	"github.com/domwxyz/marxist-search/internal/retrieval"
)

// Server wraps an http.Server bound to a chi router over a retrieval.Engine.
type Server struct {
	http    *http.Server
	engine  *retrieval.Engine
	log     *slog.Logger
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
}

// Options configures the façade.
type Options struct {
	Addr           string
	RequestTimeout time.Duration
	Logger         *slog.Logger

	// WatchIndexPath, if non-empty, starts an fsnotify watcher on the index
	// file's directory that triggers engine.ReloadIndex when ingestion
	// renames a new index into place, complementing the explicit
	// POST /reload-index.
	WatchIndexPath string
}

// New builds the router and wraps it in an http.Server, but does not start
// listening; call ListenAndServe.
func New(engine *retrieval.Engine, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}

	s := &Server{engine: engine, log: opts.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.RequestTimeout))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/search", s.handleSearch)
		r.Get("/sources", s.handleSources)
		r.Get("/top-authors", s.handleTopAuthors)
		r.Get("/stats", s.handleStats)
		r.Post("/reload-index", s.handleReloadIndex)
	})

	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if opts.WatchIndexPath != "" {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		watcher, err := watchIndex(ctx, opts.WatchIndexPath, s.engine.ReloadIndex, s.log)
		if err != nil {
			s.log.Warn("index_watcher_unavailable", slog.String("path", opts.WatchIndexPath), slog.Any("error", err))
			cancel()
		} else {
			s.watcher = watcher
		}
	}

	return s
}

// ListenAndServe blocks serving HTTP until the server is shut down or fails.
func (s *Server) ListenAndServe() error {
	s.log.Info("http_server_starting", slog.String("addr", s.http.Addr))
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests before returning, and stops
// the index watcher if one was started.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
	return s.http.Shutdown(ctx)
}
