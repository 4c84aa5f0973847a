package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across skytrace.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldSessionID = "session_id"
	FieldRequestID = "request_id"
	FieldRemote    = "remote_addr"

	// Components
	FieldComponent = "component"
	FieldBackend   = "backend"

	// Operations
	FieldOperation = "operation"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldMessage   = "message"

	// Query
	FieldRangeStart = "start"
	FieldRangeEnd   = "end"
	FieldDatabase   = "database"
	FieldCollection = "collection"

	// Frames
	FieldFrameKind = "frame_kind"
	FieldSize      = "size_bytes"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError = "error"

	// Counts
	FieldCount        = "count"
	FieldMailboxDepth = "mailbox_depth"
	FieldSessions     = "sessions"

	// Status
	FieldStatus = "status"
	FieldState  = "state"

	// Network
	FieldAddress = "address"
)

type contextKey string

const (
	sessionIDKey contextKey = "logger_session_id"
	requestIDKey contextKey = "logger_request_id"
	componentKey contextKey = "logger_component"
)

// WithSessionID adds a session ID to the context for logging
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// WithRequestID adds a request ID to the context for logging
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithComponent adds a component name to the context for logging
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if id, ok := ctx.Value(sessionIDKey).(string); ok && id != "" {
		fields = append(fields, FieldSessionID, id)
	}
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		fields = append(fields, FieldRequestID, id)
	}
	if component, ok := ctx.Value(componentKey).(string); ok && component != "" {
		fields = append(fields, FieldComponent, component)
	}

	return fields
}

// FromContext returns base decorated with the fields carried by ctx.
// A nil base falls back to the global Logger.
func FromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if base == nil {
		base = Logger
	}
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	actor := query.New(client, cfg, logger.ComponentLogger("query"))
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
