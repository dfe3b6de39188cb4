// ABOUTME: HTTP backend serving the feed tables, anonymous sessions, and a realtime feed.
// ABOUTME: Wires the chi router, auth, rate limiting, metrics, and websocket fan-out.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/2389-research/laulau/internal/assist"
	"github.com/2389-research/laulau/internal/models"
	"github.com/2389-research/laulau/internal/storage"
)

// Config holds server tunables.
type Config struct {
	JWTSecret  []byte
	TokenTTL   time.Duration
	RatePerSec float64
	Burst      int
}

// DefaultTokenTTL is how long an anonymous session token stays valid.
const DefaultTokenTTL = 30 * 24 * time.Hour

// Server is the laulau backend.
type Server struct {
	tables   storage.Tables
	cfg      Config
	logger   *slog.Logger
	enhancer assist.Enhancer
	validate *validator.Validate
	limiter  *ipLimiter
	upgrader websocket.Upgrader
	router   chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithEnhancer enables POST /v1/assist.
func WithEnhancer(e assist.Enhancer) Option {
	return func(s *Server) {
		s.enhancer = e
	}
}

// New creates a server over tables.
func New(tables storage.Tables, cfg Config, opts ...Option) (*Server, error) {
	if len(cfg.JWTSecret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	s := &Server{
		tables:   tables,
		cfg:      cfg,
		logger:   slog.Default(),
		validate: models.NewValidator(),
		limiter:  newIPLimiter(cfg.RatePerSec, cfg.Burst),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	tables.Broker().OnOverflow = func(table models.Table) {
		realtimeOverflows.WithLabelValues(string(table)).Inc()
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/posts", s.handleListPosts)
		r.Get("/reactions", s.handleListReactions)
		r.Get("/comments", s.handleListComments)
		r.Get("/realtime", s.handleRealtime)

		r.Group(func(r chi.Router) {
			r.Use(s.limiter.middleware)
			r.Post("/auth/anonymous", s.handleAnonymous)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)
			r.Get("/auth/me", s.handleMe)

			r.Group(func(r chi.Router) {
				r.Use(s.limiter.middleware)
				r.Post("/posts", s.handleCreatePost)
				r.Delete("/posts/{id}", s.handleDeletePost)
				r.Post("/reactions/toggle", s.handleToggleReaction)
				r.Post("/comments", s.handleCreateComment)
				r.Post("/assist", s.handleAssist)
			})
		})
	})

	s.router = r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	// Realtime connections are hijacked; closing the broker ends their loops.
	s.tables.Broker().Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
