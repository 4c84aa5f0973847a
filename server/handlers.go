package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/teranos/skytrace/errors"
	"github.com/teranos/skytrace/logger"
	"github.com/teranos/skytrace/version"
)

// healthProbeTimeout bounds the store ping made by /health
const healthProbeTimeout = 3 * time.Second

// HandleWebSocket upgrades the connection and starts a Session
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.getState() != ServerStateRunning {
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}
	if s.cfg.MaxSessions > 0 && s.SessionCount() >= s.cfg.MaxSessions {
		sessionsRejected.Inc()
		w.Header().Set("Retry-After", "5")
		writeError(w, http.StatusServiceUnavailable, "too many sessions")
		return
	}

	upgrader := s.newUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		s.logger.Warnw("WebSocket upgrade failed",
			logger.FieldRemote, r.RemoteAddr,
			logger.FieldError, err,
		)
		return
	}

	sess := newSession(s, conn, r.RemoteAddr)
	if !s.admit(sess) {
		deadline := time.Now().Add(s.cfg.WriteWait())
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many sessions"),
			deadline)
		conn.Close()
		sess.cancel()
		return
	}

	sess.start()
}

// HandleQuery serves GET /api/query?start=RFC3339&end=RFC3339
func (s *Server) HandleQuery(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	params := r.URL.Query()
	s.serveRange(w, r, params.Get("start"), params.Get("end"))
}

// HandleTest serves the fixed 2022-11-03 window on /test
func (s *Server) HandleTest(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	s.serveRange(w, r, TestRangeStart, TestRangeEnd)
}

// serveRange submits a time range query to the actor and writes the records
func (s *Server) serveRange(w http.ResponseWriter, r *http.Request, start, end string) {
	ctx := r.Context()
	if timeout := s.queryCfg.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := time.Now()
	records, err := s.querier.Query(ctx, start, end)
	if err != nil {
		writeWrappedError(w, s.logger, err, "time range query failed")
		return
	}

	if logger.ShouldOutput(int(s.verbosity.Load()), logger.OutputQueryInfo) {
		s.logger.Infow("Time range query",
			logger.FieldRangeStart, start,
			logger.FieldRangeEnd, end,
			logger.FieldCount, len(records),
			logger.FieldDurationMS, time.Since(started).Milliseconds(),
		)
	}

	resp := QueryResponse{
		Start:   start,
		End:     end,
		Count:   len(records),
		Records: records,
	}
	if err := writeNegotiated(w, r, http.StatusOK, resp); err != nil {
		s.logger.Warnw("Failed to write query response", logger.FieldError, err)
	}
}

// HandleHealth reports store liveness, sessions, memory and version.
// A store that does not answer degrades the status to 503.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	info := version.Get()
	health := HealthResponse{
		Status:       "ok",
		State:        stateString(s.getState()),
		Store:        "ok",
		Backend:      s.probe.Backend(),
		Sessions:     s.SessionCount(),
		MailboxDepth: s.querier.MailboxDepth(),
		Version:      info.Version,
		Commit:       info.Short(),
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		health.MemoryUsedMB = vm.Used / (1024 * 1024)
		health.MemoryPct = vm.UsedPercent
	} else {
		s.logger.Debugw("Memory stats unavailable", logger.FieldError, err)
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	status := http.StatusOK
	if err := s.querier.Ping(ctx); err != nil {
		health.Status = "degraded"
		health.Store = "unavailable"
		health.StoreError = err.Error()
		status = http.StatusServiceUnavailable
	}
	if s.getState() != ServerStateRunning {
		health.Status = "draining"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, health)
}

// notFound answers unknown paths with a JSON error
func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	writeWrappedError(w, s.logger, errors.Wrapf(errors.ErrNotFound, "no route for %s", r.URL.Path), "unknown route")
}
