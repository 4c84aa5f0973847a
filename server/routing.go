package server

import (
	"bufio"
	"net"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teranos/skytrace/errors"
)

// routes builds the server's mux. Each server gets its own mux so several
// can coexist in one process (tests do this).
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.instrument("ws", s.HandleWebSocket)) // Streaming sessions (greeting, echo, ping/pong)
	mux.HandleFunc("/api/query", s.instrument("query", s.corsMiddleware(s.rateLimit(s.HandleQuery))))
	mux.HandleFunc("/test", s.instrument("test", s.corsMiddleware(s.rateLimit(s.HandleTest)))) // Fixed window kept for older clients
	mux.HandleFunc("/health", s.instrument("health", s.corsMiddleware(s.HandleHealth)))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/", s.instrument("unknown", s.notFound))

	return mux
}

// corsMiddleware adds CORS headers using the same origin rules as the
// WebSocket upgrader (server.allowed_origins)
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" && s.checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// rateLimit rejects requests beyond query.rate_per_second with 429.
// Without a limiter it passes everything through.
func (s *Server) rateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			rateLimited.Inc()
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "query rate limit exceeded")
			return
		}
		next(w, r)
	}
}

// statusRecorder remembers the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

// Hijack hands the connection to the WebSocket upgrader
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	conn, rw, err := h.Hijack()
	if err == nil && r.status == 0 {
		r.status = http.StatusSwitchingProtocols
	}
	return conn, rw, err
}

// instrument counts requests per route and status code
func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w}
		next(rec, r)
		code := rec.status
		if code == 0 {
			code = http.StatusOK
		}
		httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	}
}
