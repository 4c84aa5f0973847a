package query

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels
const (
	outcomeOK        = "ok"
	outcomeInvalid   = "invalid"
	outcomeFailed    = "failed"
	outcomeTimeout   = "timeout"
	outcomeCancelled = "cancelled"
	outcomeStopped   = "stopped"
	outcomePanic     = "panic"
)

var (
	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skytrace_query_messages_total",
		Help: "Messages processed by the query actor by kind and outcome",
	}, []string{"kind", "outcome"})

	messageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skytrace_query_duration_seconds",
		Help:    "Time the query actor spent handling a message",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}, []string{"kind"})

	recordsReturned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skytrace_query_records_returned_total",
		Help: "Records returned by time range queries",
	})

	mailboxDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skytrace_query_mailbox_depth",
		Help: "Messages waiting in the query actor mailbox",
	})
)
