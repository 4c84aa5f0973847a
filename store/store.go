// Package store defines the document store capability used by the query
// actor and the session liveness probe. Backends register themselves by URI
// scheme (see mongostore and sqlitestore) in the style of database/sql drivers.
package store

import (
	"context"

	"github.com/teranos/skytrace/errors"
	"github.com/teranos/skytrace/telemetry"
)

// Client is a handle to a telemetry document store.
// Implementations must be safe for concurrent use.
type Client interface {
	// Backend names the implementation ("mongodb", "sqlite", ...)
	Backend() string

	// Ping checks liveness with a cheap administrative round trip
	Ping(ctx context.Context) error

	// ListDatabases returns the names of databases visible to the client
	ListDatabases(ctx context.Context) ([]string, error)

	// FindRange opens a cursor over records with Start <= timestamp < End,
	// ordered by timestamp
	FindRange(ctx context.Context, r telemetry.TimeRange) (Cursor, error)

	// Close releases the underlying connection pool
	Close(ctx context.Context) error
}

// Cursor iterates a result set. Next must be called before the first Decode.
type Cursor interface {
	Next(ctx context.Context) bool
	Decode(rec *telemetry.Record) error
	Err() error
	Close(ctx context.Context) error
}

// Drain reads every remaining record from cur in order and closes it.
// Iteration and decode failures are marked with errors.ErrQueryFailed.
func Drain(ctx context.Context, cur Cursor) (records []telemetry.Record, err error) {
	defer func() {
		if cerr := cur.Close(ctx); cerr != nil && err == nil {
			err = errors.WrapQueryFailed(cerr, "close cursor")
		}
	}()

	records = []telemetry.Record{}
	for cur.Next(ctx) {
		var rec telemetry.Record
		if err := cur.Decode(&rec); err != nil {
			return nil, errors.WrapQueryFailed(err, "decode record")
		}
		records = append(records, rec)
	}
	if err := cur.Err(); err != nil {
		return nil, errors.WrapQueryFailed(err, "iterate cursor")
	}
	return records, nil
}

// SliceCursor serves records from memory. Backends that materialize results
// and test doubles use it.
type SliceCursor struct {
	records []telemetry.Record
	pos     int
	err     error
	closed  bool
}

// NewSliceCursor returns a cursor over records. If err is non-nil it is
// reported by Err once the records are exhausted.
func NewSliceCursor(records []telemetry.Record, err error) *SliceCursor {
	return &SliceCursor{records: records, pos: -1, err: err}
}

func (c *SliceCursor) Next(ctx context.Context) bool {
	if c.closed {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		c.pos = len(c.records)
		return false
	}
	if c.pos+1 >= len(c.records) {
		c.pos = len(c.records)
		return false
	}
	c.pos++
	return true
}

func (c *SliceCursor) Decode(rec *telemetry.Record) error {
	if c.pos < 0 || c.pos >= len(c.records) {
		return errors.New("decode called without a current record")
	}
	*rec = c.records[c.pos]
	return nil
}

func (c *SliceCursor) Err() error {
	if c.closed {
		return nil
	}
	if c.pos >= len(c.records) {
		return c.err
	}
	return nil
}

func (c *SliceCursor) Close(context.Context) error {
	c.closed = true
	return nil
}

// Closed reports whether Close has been called
func (c *SliceCursor) Closed() bool {
	return c.closed
}
