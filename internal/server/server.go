// File: internal/server/server.go
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agent-browser/internal/command"
	"github.com/xkilldash9x/agent-browser/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server exposes the command dispatcher over HTTP and WebSocket. It owns the
// listener lifecycle; session and engine lifecycle belong to the manager.
type Server struct {
	cfg        *config.Config
	log        *zap.Logger
	dispatcher *command.Dispatcher
	httpServer *http.Server
}

// New wires a server to its dispatcher. Nothing is listening until Start.
func New(cfg *config.Config, dispatcher *command.Dispatcher, log *zap.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		log:        log.Named("server"),
		dispatcher: dispatcher,
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      s.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

// Handler returns the routed handler, mainly for tests driving the API
// through httptest without a listener.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// The WebSocket route stays outside the timeout middleware; connections
	// are long-lived and manage their own deadlines.
	r.Get("/ws/v1/commands", s.handleCommandSocket)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

		r.Get("/healthz", s.handleHealth)

		r.Route("/api/v1", func(r chi.Router) {
			r.Post("/command", s.handleCommand)
			r.Get("/sessions", s.handleListSessions)
			r.Delete("/sessions/{sessionID}", s.handleCloseSession)
		})
	})

	return r
}

// Start serves until the context is cancelled, then drains connections within
// the configured shutdown timeout. It blocks for the lifetime of the server.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Command server listening.", zap.String("address", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down command server.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error("HTTP server shutdown error.", zap.Error(err))
		return err
	}
	return <-errCh
}
