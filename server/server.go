// Package server exposes a storage.Backend over HTTP. It is the peer that
// storage/remote talks to, so any backend can be shared between
// processes.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/teranos/atomdb/errors"
	"github.com/teranos/atomdb/storage"
)

// ShutdownTimeout bounds how long ListenAndServe waits for in-flight
// requests once its context is cancelled.
const ShutdownTimeout = 10 * time.Second

// Server routes HTTP requests to a backend.
type Server struct {
	backend storage.Backend
	logger  *zap.SugaredLogger
	router  chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. A nil logger keeps the server silent.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Server) { s.logger = l }
}

// New builds a server around backend. The backend is not closed by the
// server.
func New(backend storage.Backend, opts ...Option) *Server {
	s := &Server{backend: backend}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop().Sugar()
	}
	s.router = s.setupRoutes()
	return s
}

// Handler returns the routed http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", addr)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("HTTP server listening", "address", ln.Addr().String())
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server failed")
	case <-ctx.Done():
	}

	s.logger.Infow("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "http server shutdown")
	}
	<-errCh
	return nil
}
