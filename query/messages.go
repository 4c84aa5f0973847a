package query

import "github.com/teranos/skytrace/telemetry"

// Message is a request the Actor understands. The set is closed: only the
// types in this file implement it.
type Message interface {
	kind() string
}

// TimeRangeQuery asks for every record with Start <= timestamp < End.
// Start and End are RFC3339 text and are parsed by the actor, so malformed
// input is reported to the caller as errors.ErrInvalidArgument.
type TimeRangeQuery struct {
	Start string
	End   string
}

// Ping checks store liveness through the serialized path
type Ping struct{}

// ListDatabases asks the store for its database names
type ListDatabases struct{}

func (TimeRangeQuery) kind() string { return "time_range" }
func (Ping) kind() string           { return "ping" }
func (ListDatabases) kind() string  { return "list_databases" }

// Kind names a message for logs and metrics
func Kind(m Message) string {
	if m == nil {
		return "nil"
	}
	return m.kind()
}

// Reply carries the result of one message. Only the field matching the
// message kind is set.
type Reply struct {
	Records   []telemetry.Record
	Databases []string
}
