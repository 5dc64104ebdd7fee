// Package web exposes the recommendation service over HTTP.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/justestif/go-mood-recommender/internal/logging"
)

// DefaultAddr is the default server address.
const DefaultAddr = "127.0.0.1:8080"

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr               string
	RateLimitPerMinute int // 0 disables rate limiting
	ShutdownTimeout    time.Duration
	Service            Recommender
	Trends             TrendsService         // nil when no database is configured
	History            RecommendationHistory // nil when no database is configured
	Detector           HealthChecker         // optional; reported by /healthz
}

// Server is the HTTP server for the API.
type Server struct {
	router          chi.Router
	server          *http.Server
	handlers        *Handlers
	rateLimit       int
	shutdownTimeout time.Duration
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("recommendation service is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		router:          chi.NewRouter(),
		handlers:        NewHandlers(cfg),
		rateLimit:       cfg.RateLimitPerMinute,
		shutdownTimeout: cfg.ShutdownTimeout,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
	if s.rateLimit > 0 {
		s.router.Use(httprate.Limit(
			s.rateLimit,
			time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			}),
		))
	}
}

// setupRoutes configures routes for the API.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handlers.Health)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Post("/mood/analyze", s.handlers.AnalyzePhoto)
	s.router.Post("/mood/analyze/text", s.handlers.AnalyzeText)
	s.router.Post("/recommendations", s.handlers.Recommend)
	s.router.Post("/emotions/from-text", s.handlers.EmotionFromText)
	s.router.Get("/users/{userID}/moods/trends", s.handlers.MoodTrends)
	s.router.Get("/users/{userID}/recommendations", s.handlers.RecommendationHistory)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.Info().Str("addr", s.server.Addr).Msg("starting server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run starts the server and handles graceful shutdown on interrupt signals.
func (s *Server) Run() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
		logging.Info().Msg("shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logging.Info().Msg("server stopped")
	return nil
}
