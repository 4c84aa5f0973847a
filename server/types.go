package server

import (
	"context"

	"github.com/teranos/skytrace/telemetry"
)

const (
	// Greeting is the first text frame every session sends
	Greeting = "welcome"

	// EchoPrefix is prepended to every echoed text frame
	EchoPrefix = "echoing the following: "

	// MaxSessionEventQueueSize bounds frames read but not yet handled
	MaxSessionEventQueueSize = 64

	// TestRangeStart and TestRangeEnd are the fixed window served by /test
	TestRangeStart = "2022-11-03T12:57:18.123Z"
	TestRangeEnd   = "2022-11-03T12:57:20.123Z"
)

// ServerState represents the server lifecycle state
type ServerState int

const (
	ServerStateRunning  ServerState = iota // Normal operation
	ServerStateDraining                    // Graceful shutdown in progress
	ServerStateStopped                     // Shutdown complete
)

// Querier is the query path the HTTP handlers use (a *query.Actor)
type Querier interface {
	Query(ctx context.Context, start, end string) ([]telemetry.Record, error)
	Ping(ctx context.Context) error
	MailboxDepth() int
}

// QueryResponse is the body of /api/query and /test
type QueryResponse struct {
	Start   string             `json:"start" cbor:"start"`
	End     string             `json:"end" cbor:"end"`
	Count   int                `json:"count" cbor:"count"`
	Records []telemetry.Record `json:"records" cbor:"records"`
}

// HealthResponse is the body of /health
type HealthResponse struct {
	Status       string  `json:"status"`
	State        string  `json:"state"`
	Store        string  `json:"store"`
	StoreError   string  `json:"store_error,omitempty"`
	Backend      string  `json:"backend"`
	Sessions     int     `json:"sessions"`
	MailboxDepth int     `json:"mailbox_depth"`
	Version      string  `json:"version"`
	Commit       string  `json:"commit"`
	MemoryUsedMB uint64  `json:"memory_used_mb,omitempty"`
	MemoryPct    float64 `json:"memory_used_percent,omitempty"`
}
