// Package api serves the scene transform over HTTP: a metadata document goes in,
// a STAC Item comes out.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/satstac/stac-sentinel/internal/api/middleware"
	"github.com/satstac/stac-sentinel/internal/collections"
	"github.com/satstac/stac-sentinel/internal/sentinel"
	"github.com/satstac/stac-sentinel/internal/sink"
	"github.com/satstac/stac-sentinel/internal/stac"
)

type (
	// Converter turns one scene's metadata document into an Item.
	Converter interface {
		Convert(ctx context.Context, col *collections.Collection, doc []byte, base sentinel.Base) (*stac.Item, error)
	}

	// HealthChecker reports whether a backing store is reachable.
	HealthChecker interface {
		HealthCheck(ctx context.Context) error
	}

	// Server represents the HTTP API server.
	Server struct {
		httpServer  *http.Server
		handler     http.Handler
		logger      *slog.Logger
		config      *ServerConfig
		startTime   time.Time
		registry    *collections.Registry
		converter   Converter
		sink        sink.Sink
		health      HealthChecker
		rateLimiter middleware.RateLimiter
	}

	// Option configures optional Server dependencies.
	Option func(*Server)
)

var _ Converter = (*sentinel.Converter)(nil)

// WithSink forwards every converted Item to s in addition to returning it.
func WithSink(s sink.Sink) Option {
	return func(srv *Server) {
		srv.sink = s
	}
}

// WithHealthCheck makes /ready report the state of h.
func WithHealthCheck(h HealthChecker) Option {
	return func(srv *Server) {
		srv.health = h
	}
}

// WithRateLimiter enables request rate limiting.
func WithRateLimiter(l middleware.RateLimiter) Option {
	return func(srv *Server) {
		srv.rateLimiter = l
	}
}

// WithLogger replaces the default JSON logger.
func WithLogger(l *slog.Logger) Option {
	return func(srv *Server) {
		srv.logger = l
	}
}

// NewServer creates a new HTTP server instance with structured logging and middleware stack.
//
// Configuration (what) is kept apart from dependencies (how): registry and converter are
// required, everything else is an Option.
func NewServer(cfg *ServerConfig, registry *collections.Registry, converter Converter, opts ...Option) *Server {
	server := &Server{
		logger:    slog.Default(),
		config:    cfg,
		registry:  registry,
		converter: converter,
	}

	for _, opt := range opts {
		opt(server)
	}

	mux := http.NewServeMux()
	server.setupRoutes(mux)

	if server.rateLimiter != nil {
		server.logger.Info("Rate limiting middleware enabled")
	} else {
		server.logger.Warn("RateLimiter not configured - rate limiting middleware disabled")
	}

	// Middleware executes in the order listed (top-to-bottom):
	//   1. CorrelationID - generate correlation ID for all responses
	//   2. Recovery - catch panics in all downstream middleware
	//   3. RateLimit - block requests before expensive operations (optional)
	//   4. RequestLogger - log only legitimate requests (not rate-limited spam)
	//   5. MaxBodySize - cap metadata documents
	server.handler = middleware.Apply(mux,
		middleware.WithCorrelationID(),
		middleware.WithRecovery(server.logger),
		middleware.WithRateLimit(server.rateLimiter, server.logger),
		middleware.WithRequestLogger(server.logger),
		middleware.WithMaxBodySize(cfg.MaxRequestSize),
	)

	server.httpServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      server.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return server
}

// Handler returns the fully wrapped handler. Useful in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server and blocks until ctx is done or the listener fails.
// Cancelling ctx triggers a graceful shutdown bounded by ShutdownTimeout.
func (s *Server) Start(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	s.startTime = time.Now()

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("Starting transform API server",
			slog.String("address", s.config.Address()),
			slog.Duration("read_timeout", s.config.ReadTimeout),
			slog.Duration("write_timeout", s.config.WriteTimeout),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server failed to start",
				slog.String("address", s.config.Address()),
				slog.String("error", err.Error()),
			)

			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		s.logger.Info("Received shutdown signal", slog.String("cause", context.Cause(ctx).Error()))

		return s.shutdown()
	}
}

// shutdown gracefully shuts down the server.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Initiating server shutdown",
		slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
	)

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Server shutdown failed",
			slog.String("error", err.Error()),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// Close rate limiter to stop (InMemoryRateLimiter) background cleanup goroutines
	if limiter, ok := s.rateLimiter.(io.Closer); ok {
		if err := limiter.Close(); err != nil {
			s.logger.Error("Failed to close rate limiter", slog.String("error", err.Error()))
		}
	}

	s.logger.Info("Server shutdown completed successfully")

	return nil
}
