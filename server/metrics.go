package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skytrace_sessions_active",
		Help: "Streaming sessions currently registered",
	})

	sessionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skytrace_sessions_rejected_total",
		Help: "Streaming connections refused because max_sessions was reached",
	})

	framesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skytrace_session_frames_total",
		Help: "Inbound frames handled by sessions, by kind",
	}, []string{"kind"})

	probeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skytrace_session_probe_failures_total",
		Help: "Session start liveness probes that failed or panicked",
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skytrace_http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"route", "code"})

	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skytrace_http_rate_limited_total",
		Help: "Query requests rejected by the rate limiter",
	})
)
