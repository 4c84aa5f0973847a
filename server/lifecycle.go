package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/teranos/skytrace/errors"
	"github.com/teranos/skytrace/logger"
)

// defaultShutdownTimeout applies when server.shutdown_timeout_seconds is unset
const defaultShutdownTimeout = 5 * time.Second

// getState returns the current server state
func (s *Server) getState() ServerState {
	return ServerState(s.state.Load())
}

// setState atomically updates the server state
func (s *Server) setState(newState ServerState) {
	s.state.Store(int32(newState))
	s.logger.Infow("Server state changed", "new_state", stateString(newState))
}

// stateString returns human-readable state name
func stateString(state ServerState) string {
	switch state {
	case ServerStateRunning:
		return "running"
	case ServerStateDraining:
		return "draining"
	case ServerStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
}

// ListenAndServe binds the configured address and serves until Stop.
// It returns nil after a clean shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.Addr())
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Stop
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	if logger.ShouldOutput(int(s.verbosity.Load()), logger.OutputStartup) {
		s.logger.Infow("Listening", logger.FieldAddress, ln.Addr().String())
	}

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "HTTP server failed")
	}
	return nil
}

// Stop drains the server: refuse new work, close live sessions, then wait
// for session goroutines and the hub. Stop does not stop the query actor.
func (s *Server) Stop(ctx context.Context) error {
	if s.getState() == ServerStateStopped {
		return nil
	}
	s.logger.Infow("Initiating server shutdown")
	s.setState(ServerStateDraining)

	var shutdownErr error
	s.mu.RLock()
	srv := s.httpServer
	s.mu.RUnlock()
	if srv != nil {
		// Shutdown does not wait for hijacked connections; sessions are
		// closed below
		if err := srv.Shutdown(ctx); err != nil {
			shutdownErr = errors.Wrap(err, "HTTP shutdown")
		}
	}

	// Close all session connections BEFORE cancelling context so readPump
	// exits on a closed conn rather than racing the cancellation
	s.mu.Lock()
	toClose := make([]*Session, 0, len(s.sessions))
	for sess := range s.sessions {
		toClose = append(toClose, sess)
		delete(s.sessions, sess)
	}
	s.mu.Unlock()
	sessionsActive.Set(0)

	if len(toClose) > 0 {
		s.logger.Infow("Closing session connections", logger.FieldCount, len(toClose))
		for _, sess := range toClose {
			s.logger.Debugw("Closing session", "session", shortID(sess.id))
			sess.writeCloseNow(s.cfg.WriteWait())
			sess.conn.Close()
		}
	}

	s.cancel()

	timeout := s.cfg.ShutdownTimeout()
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Infow("All goroutines stopped cleanly")
	case <-time.After(timeout):
		s.logger.Warnw("Goroutine shutdown timed out, forcing exit", "timeout", timeout)
	case <-ctx.Done():
		s.logger.Warnw("Shutdown context ended before goroutines stopped", logger.FieldError, ctx.Err())
	}

	s.setState(ServerStateStopped)
	s.logger.Infow("Server shutdown complete")
	return shutdownErr
}
