// Package errors provides error handling for skytrace.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Hints and details for user-facing messages
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Classify with a sentinel
//	return errors.Mark(err, errors.ErrInvalidArgument)
//
//	// Check errors
//	if errors.Is(err, errors.ErrInvalidArgument) {
//	    // report 400 to the caller
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSecondaryError = crdb.WithSecondaryError
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// GetStack returns the reportable stack trace attached to an error, if any.
var GetStack = crdb.GetReportableStackTrace

// AssertionFailedf reports a broken internal invariant.
var AssertionFailedf = crdb.AssertionFailedf

// Sentinel errors shared across skytrace.
// Attach them with Mark (keeps the original message) or Wrap (adds context)
// and test with Is.
var (
	// ErrInvalidArgument indicates caller-supplied input was malformed
	// (e.g. a timestamp that is not RFC3339).
	ErrInvalidArgument = New("invalid argument")

	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrStoreUnavailable indicates the document store could not be reached
	ErrStoreUnavailable = New("store unavailable")

	// ErrQueryFailed indicates the store accepted a query but executing or
	// draining it failed
	ErrQueryFailed = New("query failed")

	// ErrActorStopped indicates a message was sent to an actor that is no
	// longer processing its mailbox
	ErrActorStopped = New("actor stopped")

	// ErrServiceUnavailable indicates a required service is not available
	ErrServiceUnavailable = New("service unavailable")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = New("operation timed out")
)

// IsInvalidArgument checks if an error is or wraps ErrInvalidArgument
func IsInvalidArgument(err error) bool {
	return err != nil && Is(err, ErrInvalidArgument)
}

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsStoreUnavailable checks if an error is or wraps ErrStoreUnavailable
func IsStoreUnavailable(err error) bool {
	return err != nil && Is(err, ErrStoreUnavailable)
}

// IsQueryFailed checks if an error is or wraps ErrQueryFailed
func IsQueryFailed(err error) bool {
	return err != nil && Is(err, ErrQueryFailed)
}

// IsActorStopped checks if an error is or wraps ErrActorStopped
func IsActorStopped(err error) bool {
	return err != nil && Is(err, ErrActorStopped)
}

// NewInvalidArgumentf creates an invalid-argument error with a formatted message
func NewInvalidArgumentf(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrInvalidArgument)
}

// WrapInvalidArgument marks err as an invalid-argument error and adds context
func WrapInvalidArgument(err error, context string) error {
	return Wrap(Mark(err, ErrInvalidArgument), context)
}

// WrapQueryFailed marks err as a query failure and adds context
func WrapQueryFailed(err error, context string) error {
	return Wrap(Mark(err, ErrQueryFailed), context)
}

// WrapStoreUnavailable marks err as a store connectivity failure and adds context
func WrapStoreUnavailable(err error, context string) error {
	return Wrap(Mark(err, ErrStoreUnavailable), context)
}
