package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
	readHeaderTimeout       = 10 * time.Second
)

// Server serves the upload and polling pages
type Server struct {
	address string
	handler http.Handler
	logger  *logrus.Entry
}

// NewServer returns a server listening on address once Run is called
func NewServer(address string, handler http.Handler) *Server {
	return &Server{
		address: address,
		handler: handler,
		logger:  logrus.WithField("component", "web"),
	}
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
// Jobs already started keep running in the background.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		s.logger.WithField("reason", ctx.Err()).Info("Shutdown signal received")
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		if err := srv.Shutdown(ctxTimeout); err != nil {
			s.logger.WithError(err).Warn("Web server shutdown incomplete")
		}
		s.logger.Info("Web server terminated")
	}()

	s.logger.WithField("address", listener.Addr().String()).Info("Listening")
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
