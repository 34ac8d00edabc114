// Package gateway serves the generation API over HTTP.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"slidecoffee/internal/infra/config"
	"slidecoffee/internal/infra/middleware"
)

const streamRateLimitMessage = "Too many generation requests. Please wait before trying again."

// Server is the HTTP gateway for generation and retrieval.
type Server struct {
	cfg     config.ServerConfig
	deps    HandlerDeps
	auth    Authenticator
	logger  *slog.Logger
	started time.Time

	mu        sync.Mutex
	httpSrv   *http.Server
	boundAddr string
}

// NewServer creates a gateway server.
func NewServer(cfg config.ServerConfig, deps HandlerDeps, auth Authenticator, logger *slog.Logger) *Server {
	if deps.Metrics == nil {
		deps.Metrics = &Metrics{}
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}
	if deps.Limits.MaxTopicLength <= 0 {
		deps.Limits.MaxTopicLength = cfg.MaxTopicLength
	}
	if deps.Limits.MaxPlanBytes <= 0 {
		deps.Limits.MaxPlanBytes = cfg.MaxPlanBytes
	}
	return &Server{
		cfg:     cfg,
		deps:    deps,
		auth:    auth,
		logger:  logger,
		started: time.Now(),
	}
}

// Handler builds the route tree. Rate limiter cleanup stops when ctx is done.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()

	var generate http.Handler = RequireAuth(s.auth, generateHandler(s.deps))
	if rl := s.cfg.RateLimit; rl.Enabled {
		generate = middleware.RateLimit(ctx, middleware.RateLimitConfig{
			Requests:       rl.Requests,
			Window:         rl.Window,
			TrustedProxies: s.cfg.TrustedProxies,
			Message:        streamRateLimitMessage,
			Logger:         s.logger,
		})(generate)
	}
	mux.Handle("POST /api/generate-slides-stream", generate)
	mux.Handle("GET /api/presentations/{id}", RequireAuth(s.auth, getPresentationHandler(s.deps)))
	mux.HandleFunc("GET /healthz", healthHandler(s.started, s.deps.Metrics))
	mux.HandleFunc("GET /metrics", metricsHandler(s.started, s.deps.Metrics))

	var h http.Handler = mux
	if rl := s.cfg.GeneralRateLimit; rl.Enabled {
		h = middleware.RateLimit(ctx, middleware.RateLimitConfig{
			Requests:       rl.Requests,
			Window:         rl.Window,
			TrustedProxies: s.cfg.TrustedProxies,
			Logger:         s.logger,
		})(h)
	}
	return middleware.SecurityHeaders(h)
}

// Start begins serving. Blocks until ctx is cancelled or the server fails.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}

	readHeader := s.cfg.ReadHeaderTimeout
	if readHeader <= 0 {
		readHeader = 10 * time.Second
	}
	srv := &http.Server{
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: readHeader,
	}

	s.mu.Lock()
	s.httpSrv = srv
	s.boundAddr = listener.Addr().String()
	s.mu.Unlock()

	s.logger.Info("gateway started", "addr", listener.Addr().String())

	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
	}()

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway serve: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server, waiting for open streams up to the
// configured shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.logger.Info("gateway stopped")
	return err
}

// BoundAddr returns the actual address the server bound to. Only valid after Start.
func (s *Server) BoundAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundAddr
}
