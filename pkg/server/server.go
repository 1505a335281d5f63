package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"meridian-hq/feedwatch/pkg/api"
	"meridian-hq/feedwatch/pkg/api/middleware"
	"meridian-hq/feedwatch/pkg/config"
	"meridian-hq/feedwatch/pkg/telemetry/health"
)

// Routes are the handlers mounted by the server. Nil fields are skipped.
type Routes struct {
	Failover *api.Handlers
	Health   *health.Checker
	Version  health.VersionInfo

	// Metrics is served on MetricsPath (default "/metrics").
	Metrics     http.Handler
	MetricsPath string

	// Recorder receives per-route request measurements.
	Recorder middleware.RequestRecorder
}

// Server is the feedwatch HTTP server.
type Server struct {
	config       *config.ServerConfig
	routes       Routes
	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	stopOnce     sync.Once
	mu           sync.RWMutex
	isRunning    bool
	addr         net.Addr
}

// NewServer creates a new server.
func NewServer(cfg *config.ServerConfig, routes Routes) *Server {
	if routes.MetricsPath == "" {
		routes.MetricsPath = config.DefaultMetricsPath
	}
	return &Server{
		config:       cfg,
		routes:       routes,
		shutdownChan: make(chan struct{}),
	}
}

// Start listens on the configured address and serves until ctx is cancelled
// or Stop is called, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	listener, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listen on %s: %w", s.config.ListenAddress, err)
	}

	s.httpServer = &http.Server{
		Handler:        s.Handler(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}
	s.addr = listener.Addr()
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting HTTP server", "address", listener.Addr().String())

		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	case <-s.shutdownChan:
		slog.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Stop asks a running Start to shut down.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.shutdownChan) })
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		slog.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("HTTP server stopped")
		s.Stop()
	})

	return shutdownErr
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	if s.routes.Failover != nil {
		s.routes.Failover.Register(mux)
	}
	if s.routes.Health != nil {
		health.Register(mux, s.routes.Health, s.routes.Version)
	}
	if s.routes.Metrics != nil {
		mux.Handle("GET "+s.routes.MetricsPath, s.routes.Metrics)
	}

	var handler http.Handler = mux

	// Logging must wrap the mux directly to see the matched route.
	handler = middleware.Logging(s.routes.Recorder)(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.RequestID(handler)

	// Recovery middleware (outermost)
	handler = middleware.Recovery(handler)

	return handler
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}
