package server

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/teranos/skytrace/logger"
)

// SessionState is the lifecycle of one streaming connection.
// Closed and Errored are terminal.
type SessionState int32

const (
	SessionCreated SessionState = iota
	SessionActive
	SessionClosed
	SessionErrored
)

func (s SessionState) String() string {
	switch s {
	case SessionCreated:
		return "created"
	case SessionActive:
		return "active"
	case SessionClosed:
		return "closed"
	case SessionErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible
func (s SessionState) Terminal() bool {
	return s == SessionClosed || s == SessionErrored
}

// defaultProbeTimeout applies when store.probe_timeout_seconds is unset
const defaultProbeTimeout = 5 * time.Second

// Session owns one WebSocket connection. readPump is the only reader and
// run is the only writer, so frames are answered in arrival order.
type Session struct {
	id        string
	remote    string
	server    *Server
	conn      *websocket.Conn
	events    chan Frame
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *zap.SugaredLogger
	createdAt time.Time

	state      atomic.Int32
	framesIn   atomic.Int64
	errorsSeen atomic.Int64
}

func newSession(srv *Server, conn *websocket.Conn, remote string) *Session {
	id := uuid.New().String()
	ctx, cancel := context.WithCancel(srv.ctx)
	return &Session{
		id:        id,
		remote:    remote,
		server:    srv,
		conn:      conn,
		events:    make(chan Frame, MaxSessionEventQueueSize),
		ctx:       logger.WithSessionID(ctx, id),
		cancel:    cancel,
		logger:    srv.logger.With(logger.FieldSessionID, id),
		createdAt: time.Now(),
	}
}

// ID returns the session's unique id
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state
func (s *Session) State() SessionState { return SessionState(s.state.Load()) }

// FramesReceived counts inbound frames handled so far
func (s *Session) FramesReceived() int64 { return s.framesIn.Load() }

// transition moves to the given state unless the session is already terminal
func (s *Session) transition(to SessionState) bool {
	for {
		cur := s.State()
		if cur.Terminal() || cur == to {
			return false
		}
		if s.state.CompareAndSwap(int32(cur), int32(to)) {
			return true
		}
	}
}

// start activates the session: probe the store, then run both pumps.
// The greeting is the first frame run writes.
func (s *Session) start() {
	s.transition(SessionActive)
	s.startProbe()

	s.server.wg.Add(2)
	go func() {
		defer s.server.wg.Done()
		s.readPump()
	}()
	go func() {
		defer s.server.wg.Done()
		s.run()
	}()
}

// startProbe checks store liveness in the background. The probe has its own
// timeout instead of the session's context and never affects the session:
// errors and panics are logged and counted.
func (s *Session) startProbe() {
	srv := s.server
	timeout := srv.probeCfg.ProbeTimeout()
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}

	srv.wg.Add(1)
	go func() {
		defer srv.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				probeFailures.Inc()
				s.logger.Errorw("Liveness probe panicked", "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		started := time.Now()
		if err := srv.probe.Ping(ctx); err != nil {
			probeFailures.Inc()
			s.logger.Warnw("Liveness probe failed",
				logger.FieldBackend, srv.probe.Backend(),
				logger.FieldError, err,
			)
			return
		}
		if logger.ShouldOutput(int(srv.verbosity.Load()), logger.OutputTiming) {
			s.logger.Debugw("Liveness probe ok",
				logger.FieldDurationMS, time.Since(started).Milliseconds(),
			)
		}
	}()
}

// readPump turns inbound traffic into Frames. Control frames arrive through
// the ping and pong handlers, which gorilla calls from inside ReadMessage, so
// they stay in order with data frames.
func (s *Session) readPump() {
	defer close(s.events)

	pongWait := s.server.cfg.PongWait()
	extend := func() {
		if pongWait > 0 {
			s.conn.SetReadDeadline(time.Now().Add(pongWait))
		}
	}

	if limit := s.server.cfg.MaxMessageBytes; limit > 0 {
		s.conn.SetReadLimit(limit)
	}
	extend()
	s.conn.SetPingHandler(func(appData string) error {
		extend()
		s.push(Frame{Kind: FramePing, Data: []byte(appData)})
		return nil
	})
	s.conn.SetPongHandler(func(appData string) error {
		extend()
		s.push(Frame{Kind: FrameOther, Data: []byte(appData)})
		return nil
	})

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			s.handleReadError(err)
			return
		}
		extend()
		if !s.push(frameFromMessage(messageType, data)) {
			return
		}
	}
}

// handleReadError reports a transport failure as an Error frame.
// Orderly closes and our own teardown are not errors.
func (s *Session) handleReadError(err error) {
	if s.ctx.Err() != nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		s.logger.Debugw("Peer closed connection", logger.FieldError, err)
		return
	}
	s.push(Frame{Kind: FrameError, Err: err})
}

func (s *Session) push(f Frame) bool {
	select {
	case s.events <- f:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// run writes the greeting, then handles frames until the read side ends or
// the server shuts down
func (s *Session) run() {
	defer s.finish()

	var keepalive <-chan time.Time
	if period := s.server.cfg.PingPeriod(); period > 0 {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		keepalive = ticker.C
	}

	if err := s.write(outbound{messageType: websocket.TextMessage, data: []byte(Greeting)}); err != nil {
		s.recordError(err)
		return
	}

	for {
		select {
		case <-s.ctx.Done():
			s.writeClose(websocket.CloseGoingAway, "server shutting down")
			return
		case f, ok := <-s.events:
			if !ok {
				return
			}
			if err := s.onFrame(f); err != nil {
				s.recordError(err)
				return
			}
		case <-keepalive:
			if err := s.write(outbound{messageType: websocket.PingMessage}); err != nil {
				s.recordError(err)
				return
			}
		}
	}
}

// onFrame handles one inbound frame; the error is a failed reply write
func (s *Session) onFrame(f Frame) error {
	s.framesIn.Add(1)
	framesReceived.WithLabelValues(f.Kind.String()).Inc()

	verbosity := int(s.server.verbosity.Load())
	if logger.ShouldOutput(verbosity, logger.OutputFrames) {
		fields := []interface{}{logger.FieldFrameKind, f.Kind.String(), logger.FieldSize, len(f.Data)}
		if logger.ShouldOutput(verbosity, logger.OutputFramePayload) && f.Kind == FrameText {
			fields = append(fields, logger.FieldMessage, string(f.Data))
		}
		s.logger.Debugw("Frame received", fields...)
	}

	switch f.Kind {
	case FrameError:
		s.recordError(f.Err)
		return nil
	case FrameBinary:
		s.logger.Debugw("Binary frame ignored", logger.FieldSize, len(f.Data))
		return nil
	}

	out, ok := reply(f)
	if !ok {
		return nil
	}
	return s.write(out)
}

func (s *Session) write(out outbound) error {
	deadline := time.Now().Add(s.server.cfg.WriteWait())
	switch out.messageType {
	case websocket.PingMessage, websocket.PongMessage, websocket.CloseMessage:
		return s.conn.WriteControl(out.messageType, out.data, deadline)
	default:
		s.conn.SetWriteDeadline(deadline)
		return s.conn.WriteMessage(out.messageType, out.data)
	}
}

func (s *Session) writeClose(code int, text string) {
	_ = s.write(outbound{
		messageType: websocket.CloseMessage,
		data:        websocket.FormatCloseMessage(code, text),
	}) // best effort: the connection is closed right after
}

// writeCloseNow sends a going-away close from outside run. gorilla allows
// WriteControl concurrently with the writer.
func (s *Session) writeCloseNow(wait time.Duration) {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wait))
}

// recordError marks the session Errored; transport errors are permanent
func (s *Session) recordError(err error) {
	s.errorsSeen.Add(1)
	s.transition(SessionErrored)
	s.logger.Warnw("Session error",
		logger.FieldError, err,
		logger.FieldState, s.State().String(),
	)
}

// finish tears the session down; the probe, if still running, is left alone
func (s *Session) finish() {
	s.transition(SessionClosed)
	s.cancel()
	s.conn.Close()
	s.server.release(s)

	if logger.ShouldOutput(int(s.server.verbosity.Load()), logger.OutputSessions) {
		s.logger.Infow("Session ended",
			logger.FieldState, s.State().String(),
			"frames", s.framesIn.Load(),
			"errors", s.errorsSeen.Load(),
			logger.FieldDurationMS, time.Since(s.createdAt).Milliseconds(),
		)
	}
}
