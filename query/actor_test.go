package query

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/skytrace/config"
	"github.com/teranos/skytrace/errors"
	"github.com/teranos/skytrace/store/storetest"
	"github.com/teranos/skytrace/telemetry"
)

var base = time.Date(2022, 11, 3, 12, 57, 18, 123e6, time.UTC)

func fixtures() []telemetry.Record {
	return []telemetry.Record{
		{Timestamp: base, FlightLevel: 1},
		{Timestamp: base.Add(877 * time.Millisecond), FlightLevel: 2},
		{Timestamp: base.Add(2 * time.Second), FlightLevel: 3},
	}
}

func newActor(t *testing.T, m *storetest.Memory, mutate ...func(*config.QueryConfig)) *Actor {
	t.Helper()
	cfg := config.Default().Query
	for _, fn := range mutate {
		fn(&cfg)
	}
	a := New(m, cfg, zaptest.NewLogger(t).Sugar())
	a.Start()
	t.Cleanup(a.Stop)
	return a
}

func TestQueryReturnsHalfOpenRange(t *testing.T) {
	a := newActor(t, storetest.NewMemory(fixtures()...))

	records, err := a.Query(context.Background(), "2022-11-03T12:57:18.123Z", "2022-11-03T12:57:20.123Z")
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, base, records[0].Timestamp)
	assert.Equal(t, 1.0, records[0].FlightLevel)
	assert.Equal(t, 2.0, records[1].FlightLevel)
}

func TestQueryEmptyResult(t *testing.T) {
	a := newActor(t, storetest.NewMemory(fixtures()...))

	records, err := a.Query(context.Background(), "2023-01-01T00:00:00Z", "2023-01-02T00:00:00Z")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMalformedTimestampIsInvalidArgument(t *testing.T) {
	m := storetest.NewMemory(fixtures()...)
	a := newActor(t, m)

	tests := []struct {
		name, start, end string
	}{
		{"bad start", "yesterday", "2022-11-03T12:57:20.123Z"},
		{"bad end", "2022-11-03T12:57:18.123Z", "2022-13-03T12:57:20Z"},
		{"both empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Query(context.Background(), tt.start, tt.end)
			require.Error(t, err)
			assert.True(t, errors.IsInvalidArgument(err))
		})
	}

	assert.Zero(t, m.Finds(), "malformed input never reaches the store")

	// Actor keeps serving after rejecting input
	records, err := a.Query(context.Background(), "2022-11-03T12:57:18.123Z", "2022-11-03T12:57:20.123Z")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestStoreOperationsNeverOverlap(t *testing.T) {
	m := storetest.NewMemory(fixtures()...)
	m.Delay = 5 * time.Millisecond
	a := newActor(t, m)

	const callers = 20
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = a.Query(context.Background(), "2022-11-03T12:57:18.123Z", "2022-11-03T12:57:20.123Z")
			} else {
				err = a.Ping(context.Background())
			}
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, m.MaxInFlight())
	assert.Equal(t, callers/2, m.Finds())
	assert.Equal(t, callers/2, m.Pings())
}

func TestPingAndListDatabases(t *testing.T) {
	m := storetest.NewMemory()
	a := newActor(t, m)

	require.NoError(t, a.Ping(context.Background()))

	names, err := a.ListDatabases(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "romeo5"}, names)
}

func TestPingFailureIsReported(t *testing.T) {
	m := storetest.NewMemory()
	m.PingErr = errors.WrapStoreUnavailable(errors.New("connection refused"), "ping")
	a := newActor(t, m)

	err := a.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsStoreUnavailable(err))
}

func TestFindFailureIsQueryFailed(t *testing.T) {
	m := storetest.NewMemory()
	m.FindErr = errors.New("cursor killed")
	a := newActor(t, m)

	_, err := a.Query(context.Background(), "2022-11-03T12:57:18Z", "2022-11-03T12:57:20Z")
	require.Error(t, err)
	assert.True(t, errors.IsQueryFailed(err))
}

func TestPerMessageTimeout(t *testing.T) {
	m := storetest.NewMemory()
	m.Hold = make(chan struct{})
	defer close(m.Hold)

	a := New(m, config.QueryConfig{MailboxSize: 4}, zaptest.NewLogger(t).Sugar())
	a.timeout = 20 * time.Millisecond
	a.Start()
	defer a.Stop()

	err := a.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTimeout))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPanicIsRecovered(t *testing.T) {
	m := storetest.NewMemory(fixtures()...)
	m.PingPanic = "driver exploded"
	a := newActor(t, m)

	err := a.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "driver exploded")

	records, err := a.Query(context.Background(), "2022-11-03T12:57:18.123Z", "2022-11-03T12:57:20.123Z")
	require.NoError(t, err, "actor survives a handler panic")
	assert.Len(t, records, 2)
}

func TestCallerCancellation(t *testing.T) {
	m := storetest.NewMemory()
	m.Hold = make(chan struct{})
	a := newActor(t, m)

	// Occupy the actor
	first := make(chan error, 1)
	go func() { first <- a.Ping(context.Background()) }()
	require.Eventually(t, func() bool { return m.Pings() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := a.Query(ctx, "2022-11-03T12:57:18Z", "2022-11-03T12:57:20Z")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(m.Hold)
	require.NoError(t, <-first)

	// The abandoned query is skipped rather than run
	require.NoError(t, a.Ping(context.Background()))
	assert.Zero(t, m.Finds())
}

func TestStopFailsQueuedMessages(t *testing.T) {
	m := storetest.NewMemory()
	m.Hold = make(chan struct{})
	a := New(m, config.Default().Query, zaptest.NewLogger(t).Sugar())
	a.Start()

	first := make(chan error, 1)
	go func() { first <- a.Ping(context.Background()) }()
	require.Eventually(t, func() bool { return m.Pings() == 1 }, time.Second, time.Millisecond)

	const queued = 3
	results := make(chan error, queued)
	for i := 0; i < queued; i++ {
		go func() {
			_, err := a.ListDatabases(context.Background())
			results <- err
		}()
	}
	require.Eventually(t, func() bool { return a.MailboxDepth() == queued }, time.Second, time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		a.Stop()
		close(stopped)
	}()
	require.Eventually(t, a.Stopping, time.Second, time.Millisecond)

	close(m.Hold)
	require.NoError(t, <-first, "in-flight message completes")
	<-stopped

	for i := 0; i < queued; i++ {
		err := <-results
		assert.True(t, errors.IsActorStopped(err), "queued message: %v", err)
	}

	_, err := a.Submit(context.Background(), Ping{})
	assert.True(t, errors.IsActorStopped(err))
	assert.Equal(t, 1, m.Pings())
}

func TestStopWithoutStart(t *testing.T) {
	a := New(storetest.NewMemory(), config.Default().Query, nil)
	a.Stop()
	a.Stop()

	select {
	case <-a.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
	assert.True(t, errors.IsActorStopped(a.Ping(context.Background())))
}

func TestSubmitNilMessage(t *testing.T) {
	a := newActor(t, storetest.NewMemory())

	_, err := a.Submit(context.Background(), nil)
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestKind(t *testing.T) {
	assert.Equal(t, "time_range", Kind(TimeRangeQuery{}))
	assert.Equal(t, "ping", Kind(Ping{}))
	assert.Equal(t, "list_databases", Kind(ListDatabases{}))
	assert.Equal(t, "nil", Kind(nil))
}
