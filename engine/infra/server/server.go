package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sequentry/sequentry/pkg/config"
	"github.com/sequentry/sequentry/pkg/logger"
)

const (
	httpReadTimeout       = 15 * time.Second
	httpWriteTimeout      = 15 * time.Second
	httpIdleTimeout       = 60 * time.Second
	serverShutdownTimeout = 10 * time.Second
	cleanupTimeout        = 5 * time.Second
)

// Server owns the HTTP API process. Construction is cheap; Run wires the
// dependency graph, mounts the routes, and blocks until a shutdown signal
// arrives or the listener fails.
type Server struct {
	config *config.Config
	router *gin.Engine
	ctx    context.Context
	cancel context.CancelFunc
}

func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		config: cfg,
		ctx:    serverCtx,
		cancel: cancel,
	}, nil
}

func (s *Server) Run() error {
	deps, cleanupFuncs, err := s.setupDependencies()
	if err != nil {
		s.cleanup(cleanupFuncs)
		return err
	}
	defer s.cleanup(cleanupFuncs)

	if err := s.buildRouter(deps); err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	return s.startAndRunServer()
}

// cleanup releases resources in reverse registration order so consumers shut
// down before the stores they depend on.
func (s *Server) cleanup(cleanupFuncs []func()) {
	for i := len(cleanupFuncs) - 1; i >= 0; i-- {
		cleanupFuncs[i]()
	}
}

func (s *Server) startAndRunServer() error {
	srv := s.createHTTPServer()

	serverErr := make(chan error, 1)
	go s.startServer(srv, serverErr)

	return s.handleGracefulShutdown(srv, serverErr)
}

func (s *Server) createHTTPServer() *http.Server {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	log := logger.FromContext(s.ctx)
	log.Info("Starting HTTP server",
		"address", fmt.Sprintf("http://%s", addr),
		"environment", s.config.Runtime.Environment,
	)
	return &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  httpReadTimeout,
		WriteTimeout: httpWriteTimeout,
		IdleTimeout:  httpIdleTimeout,
	}
}

func (s *Server) startServer(srv *http.Server, serverErr chan<- error) {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		serverErr <- err
	}
}

func (s *Server) handleGracefulShutdown(srv *http.Server, serverErr <-chan error) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	log := logger.FromContext(s.ctx)

	select {
	case err := <-serverErr:
		s.cancel()
		return fmt.Errorf("http server failed: %w", err)
	case <-quit:
		log.Info("Received shutdown signal, initiating graceful shutdown")
	case <-s.ctx.Done():
		log.Info("Server context canceled, initiating graceful shutdown")
	}

	// Cancel first so background workers stop producing while in-flight
	// requests drain.
	s.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server shutdown completed successfully")
	return nil
}
