// Package api serves stored memories over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/metrics"
	"github.com/sandevgo/tuskmem/pkg/log"
)

// Target is a poller the capture endpoint can trigger.
type Target interface {
	Name() string
	Trigger()
}

type Server struct {
	router  *chi.Mux
	port    int
	repo    core.MemoriesRepository
	metrics *metrics.Metrics
	targets []Target
	http    *http.Server
}

type Option func(*Server)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

func WithTargets(targets ...Target) Option {
	return func(s *Server) {
		s.targets = append(s.targets, targets...)
	}
}

func NewServer(port int, repo core.MemoriesRepository, opts ...Option) *Server {
	s := &Server{
		router: chi.NewRouter(),
		port:   port,
		repo:   repo,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.observe)

	s.router.Get("/health", s.health)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/memories", s.listMemories)
		r.Get("/memories/{id}", s.getMemory)
		r.Get("/search", s.search)
		r.Get("/stats", s.stats)
		r.Post("/capture", s.capture)
	})

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks until the server is shut down.
func (s *Server) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return log.WithComponent(ctx, "api")
		},
	}

	logger.Info().Str("addr", s.http.Addr).Msg("API server starting")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		s.metrics.RecordHTTP(r.Method, route, status, elapsed)
		log.FromCtx(r.Context()).Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}
