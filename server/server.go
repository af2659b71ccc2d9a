// Package server exposes the digest engine over a JSON HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ChineseLsh/x-feed-digest/config"
	"github.com/ChineseLsh/x-feed-digest/digest"
	"github.com/ChineseLsh/x-feed-digest/digest/schedule"
)

// Server serves the digest API
type Server struct {
	executor   *digest.Executor
	scheduler  *schedule.Scheduler
	cfg        config.ServerConfig
	digestCfg  config.DigestConfig
	port       int
	mux        *http.ServeMux
	httpServer *http.Server
	logger     *zap.SugaredLogger
}

// NewServer wires the API around an executor and scheduler
func NewServer(executor *digest.Executor, scheduler *schedule.Scheduler, cfg *config.Config, logger *zap.SugaredLogger) *Server {
	s := &Server{
		executor:  executor,
		scheduler: scheduler,
		cfg:       cfg.Server,
		digestCfg: cfg.Digest,
		port:      cfg.ResolvedPort(),
		mux:       http.NewServeMux(),
		logger:    logger.Named("server"),
	}
	s.setupRoutes()
	return s
}

// Handler returns the routed handler, used directly by httptest.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start begins serving. Blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.mux,
	}
	s.logger.Infow("HTTP server listening", "port", s.port)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the listener
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// handleHealth reports liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
