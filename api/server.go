package api

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// Server runs the API on one address until Shutdown.
type Server struct {
	srv *http.Server
}

// NewServer returns a server for handler on addr, in host:port form.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       time.Minute,
	}}
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// ListenAndServe blocks until the server fails or is shut down. A shutdown
// isn't reported as an error.
func (s *Server) ListenAndServe() error {
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return errors.Wrapf(err, "serving on %s", s.srv.Addr)
}

// Shutdown stops accepting connections and waits for in-flight requests until
// ctx is done. Snapshot streams are hijacked connections and end with the
// process or their peer.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
