// Package storetest provides an in-memory store.Client for tests.
package storetest

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teranos/skytrace/store"
	"github.com/teranos/skytrace/telemetry"
)

// Memory is a store.Client over a slice of records. Zero value is usable.
//
// Every operation counts itself as in flight for its whole duration, so
// MaxInFlight reveals whether callers ever overlapped operations.
type Memory struct {
	mu      sync.Mutex
	records []telemetry.Record

	// Databases is returned by ListDatabases
	Databases []string

	// Fault injection. Set before the client is shared.
	PingErr   error
	PingPanic interface{}
	FindErr   error
	CursorErr error         // reported by the cursor after the last record
	Delay     time.Duration // applied to Ping and FindRange
	Hold      chan struct{} // if set, operations wait for it to close

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	pings       atomic.Int32
	finds       atomic.Int32
	closed      atomic.Bool
}

var _ store.Client = (*Memory)(nil)

// NewMemory returns a Memory holding records
func NewMemory(records ...telemetry.Record) *Memory {
	m := &Memory{Databases: []string{"admin", "romeo5"}}
	m.Add(records...)
	return m
}

// Add appends records
func (m *Memory) Add(records ...telemetry.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		rec.Timestamp = telemetry.Normalize(rec.Timestamp)
		m.records = append(m.records, rec)
	}
}

func (m *Memory) Backend() string { return "memory" }

func (m *Memory) Ping(ctx context.Context) error {
	m.pings.Add(1)
	done := m.enter()
	defer done()

	if err := m.wait(ctx); err != nil {
		return err
	}
	if m.PingPanic != nil {
		panic(m.PingPanic)
	}
	return m.PingErr
}

func (m *Memory) ListDatabases(ctx context.Context) ([]string, error) {
	done := m.enter()
	defer done()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]string(nil), m.Databases...), nil
}

func (m *Memory) FindRange(ctx context.Context, r telemetry.TimeRange) (store.Cursor, error) {
	m.finds.Add(1)
	done := m.enter()
	defer done()

	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.FindErr != nil {
		return nil, m.FindErr
	}

	m.mu.Lock()
	var matched []telemetry.Record
	for _, rec := range m.records {
		if r.Contains(rec.Timestamp) {
			matched = append(matched, rec)
		}
	}
	m.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})
	return store.NewSliceCursor(matched, m.CursorErr), nil
}

func (m *Memory) Close(context.Context) error {
	m.closed.Store(true)
	return nil
}

// MaxInFlight is the highest number of concurrently running operations seen
func (m *Memory) MaxInFlight() int { return int(m.maxInFlight.Load()) }

// Pings counts Ping calls
func (m *Memory) Pings() int { return int(m.pings.Load()) }

// Finds counts FindRange calls
func (m *Memory) Finds() int { return int(m.finds.Load()) }

// Closed reports whether Close was called
func (m *Memory) Closed() bool { return m.closed.Load() }

func (m *Memory) enter() func() {
	n := m.inFlight.Add(1)
	for {
		seen := m.maxInFlight.Load()
		if n <= seen || m.maxInFlight.CompareAndSwap(seen, n) {
			break
		}
	}
	return func() { m.inFlight.Add(-1) }
}

func (m *Memory) wait(ctx context.Context) error {
	if m.Delay > 0 {
		timer := time.NewTimer(m.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.Hold != nil {
		select {
		case <-m.Hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}
