// Package server is the HTTP and WebSocket front of skytrace.
//
// Each /ws connection gets its own Session; the hub goroutine tracks live
// sessions. Query routes forward to the shared query actor and write the
// result set back to the caller.
package server

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/skytrace/config"
	"github.com/teranos/skytrace/errors"
	"github.com/teranos/skytrace/logger"
	"github.com/teranos/skytrace/store"
)

// registration asks the hub to admit a session
type registration struct {
	session *Session
	ok      chan bool
}

// Server serves the streaming endpoint and the query routes
type Server struct {
	cfg      config.ServerConfig
	queryCfg config.QueryConfig
	probeCfg config.StoreConfig
	querier  Querier
	probe    store.Client // used only by session liveness probes
	logger   *zap.SugaredLogger

	sessions   map[*Session]bool
	register   chan registration
	unregister chan *Session
	mu         sync.RWMutex

	limiter    *rate.Limiter // nil when rate limiting is disabled
	mux        *http.ServeMux
	httpServer *http.Server
	verbosity  atomic.Int32

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	state  atomic.Int32
}

// New creates a server. querier serves the query routes and probe serves
// the per-session liveness probes; both are usually backed by the same
// store client.
func New(cfg *config.Config, querier Querier, probe store.Client, log *zap.SugaredLogger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if querier == nil {
		return nil, errors.New("querier cannot be nil")
	}
	if probe == nil {
		return nil, errors.New("probe store client cannot be nil")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:        cfg.Server,
		queryCfg:   cfg.Query,
		probeCfg:   cfg.Store,
		querier:    querier,
		probe:      probe,
		logger:     log.With(logger.FieldComponent, "server"),
		sessions:   make(map[*Session]bool),
		register:   make(chan registration),
		unregister: make(chan *Session),
		ctx:        ctx,
		cancel:     cancel,
	}
	if cfg.Query.RatePerSecond > 0 {
		burst := cfg.Query.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.Query.RatePerSecond), burst)
	}
	s.verbosity.Store(int32(cfg.Log.Verbosity))
	s.mux = s.routes()
	s.state.Store(int32(ServerStateRunning))

	// The hub runs from construction so handlers work under httptest too
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run()
	}()

	return s, nil
}

// Handler returns the HTTP handler with all routes
func (s *Server) Handler() http.Handler {
	return s.mux
}

// SetVerbosity changes output verbosity at runtime
func (s *Server) SetVerbosity(v int) {
	s.verbosity.Store(int32(v))
}

// SessionCount returns the number of registered sessions
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Run is the hub loop; it owns additions to and removals from the session set
func (s *Server) Run() {
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debugw("Server hub stopping due to context cancellation")
			return
		case reg := <-s.register:
			reg.ok <- s.handleSessionRegister(reg.session)
		case sess := <-s.unregister:
			s.handleSessionUnregister(sess)
		}
	}
}

// handleSessionRegister admits a session unless the cap is reached
func (s *Server) handleSessionRegister(sess *Session) bool {
	s.mu.Lock()
	if s.cfg.MaxSessions > 0 && len(s.sessions) >= s.cfg.MaxSessions {
		s.mu.Unlock()
		sessionsRejected.Inc()
		s.logger.Warnw("Max sessions reached, rejecting connection",
			logger.FieldSessionID, sess.id,
			"max_sessions", s.cfg.MaxSessions,
		)
		return false
	}
	s.sessions[sess] = true
	total := len(s.sessions)
	s.mu.Unlock()

	sessionsActive.Set(float64(total))
	s.logger.Infow("Session connected",
		logger.FieldSessionID, sess.id,
		logger.FieldRemote, sess.remote,
		logger.FieldSessions, total,
	)
	return true
}

// handleSessionUnregister forgets a session
func (s *Server) handleSessionUnregister(sess *Session) {
	s.mu.Lock()
	if _, ok := s.sessions[sess]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, sess)
	total := len(s.sessions)
	s.mu.Unlock()

	sessionsActive.Set(float64(total))
	s.logger.Infow("Session disconnected",
		logger.FieldSessionID, sess.id,
		logger.FieldState, sess.State().String(),
		logger.FieldSessions, total,
	)
}

// admit registers sess with the hub and reports whether it was accepted
func (s *Server) admit(sess *Session) bool {
	reg := registration{session: sess, ok: make(chan bool, 1)}
	select {
	case s.register <- reg:
	case <-s.ctx.Done():
		return false
	}
	select {
	case ok := <-reg.ok:
		return ok
	case <-s.ctx.Done():
		return false
	}
}

// release removes sess from the hub; a stopped hub has already let go
func (s *Server) release(sess *Session) {
	select {
	case s.unregister <- sess:
	case <-s.ctx.Done():
	}
}
