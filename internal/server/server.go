// Package server hosts training sessions over a JSON HTTP API with a
// WebSocket watch stream. It owns no game logic; every operation is a
// thin translation onto the session layer.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"gtotrainer/internal/session"
)

const shutdownGrace = 5 * time.Second

// Server is the HTTP hosting layer.
type Server struct {
	logger   *log.Logger
	sessions *session.Manager
	hub      *Hub
	http     *http.Server
}

// New assembles a server around a session manager.
func New(cfg *Config, logger *log.Logger, sessions *session.Manager) *Server {
	s := &Server{
		logger:   logger.WithPrefix("server"),
		sessions: sessions,
		hub:      NewHub(logger),
	}
	s.http = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until ctx is canceled, then shuts down in-flight
// requests with a bounded grace period and closes every session.
func (s *Server) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.hub.Run(ctx)
		return nil
	})

	g.Go(func() error {
		s.logger.Info("listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		err := s.http.Shutdown(shutdownCtx)

		s.sessions.Shutdown()
		return err
	})

	return g.Wait()
}
