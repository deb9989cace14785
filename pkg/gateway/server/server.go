// Package server assembles the gateway HTTP server.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/medabroad/consult/pkg/gateway/config"
	"github.com/medabroad/consult/pkg/gateway/handlers"
	"github.com/medabroad/consult/pkg/gateway/mw"
	"github.com/medabroad/consult/pkg/gateway/ratelimit"
)

// Server is the gateway HTTP server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New builds the server with the full middleware chain.
func New(cfg config.Config, h *handlers.Handlers, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	h.Register(mux)

	limiter := ratelimit.New(ratelimit.Config{
		RPS:                  cfg.RateRPS,
		Burst:                cfg.RateBurst,
		MaxConcurrentStreams: cfg.MaxConcurrentStreams,
	})

	var root http.Handler = mux
	root = mw.RateLimit(limiter, root)
	root = mw.CORS(cfg.AllowedOrigins, root)
	root = mw.Recover(logger, root)
	root = mw.AccessLog(logger, root)
	root = mw.RequestID(root)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           root,
			ReadHeaderTimeout: 10 * time.Second,
			// No WriteTimeout: SSE responses stay open for the whole turn.
		},
		logger: logger,
	}
}

// ListenAndServe blocks serving requests until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("gateway listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
