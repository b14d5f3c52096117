package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/teranos/phylo/errors"
	"github.com/teranos/phylo/logger"
)

// State is the server lifecycle state
type State int32

const (
	StateRunning  State = iota // Normal operation
	StateDraining              // Graceful shutdown in progress
	StateStopped               // Shutdown complete
)

// HTTP server timeouts
const (
	ReadHeaderTimeout = 10 * time.Second
	WriteTimeout      = 30 * time.Second
	IdleTimeout       = 120 * time.Second

	// ShutdownTimeout bounds draining in-flight requests and goroutines
	ShutdownTimeout = 15 * time.Second
)

func (st State) String() string {
	switch st {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// State returns the current lifecycle state
func (s *Server) State() State {
	return State(s.state.Load())
}

func (s *Server) setState(st State) {
	s.state.Store(int32(st))
	s.log.Infow("Server state changed", "new_state", st.String())
}

// Listen binds port without serving. Port 0 picks a free port.
func Listen(port int) (net.Listener, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, errors.WithHintf(
			errors.Wrapf(err, "listen on port %d", port),
			"set server.port in am.toml or pass --port")
	}
	return ln, nil
}

// Serve serves HTTP on ln until Stop is called.
// It returns nil after a clean shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Infow("HTTP server listening",
		logger.FieldAddress, ln.Addr().String(),
	)

	// Warm the cache so the first request does not pay for the build
	if err := s.phylo.Refresh(s.ctx); err != nil {
		s.log.Warnw("Initial phylogeny load failed", logger.FieldError, err)
	}

	err := s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return errors.Wrap(err, "http server")
}

// Start listens on port and serves until Stop is called.
func (s *Server) Start(port int) error {
	ln, err := Listen(port)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Stop drains in-flight requests, closes websocket clients and waits for
// server goroutines.
func (s *Server) Stop() error {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateDraining)) {
		return nil
	}
	s.log.Infow("Initiating server shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	var shutdownErr error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		shutdownErr = errors.Wrap(err, "http shutdown")
	}

	// Stops the hub, which closes every client send channel
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Infow("All goroutines stopped cleanly")
	case <-ctx.Done():
		s.log.Warnw("Goroutine shutdown timed out, forcing exit",
			"timeout", ShutdownTimeout,
		)
	}

	s.setState(StateStopped)
	s.log.Infow("Server shutdown complete")
	return shutdownErr
}
