package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/skytrace/config"
	"github.com/teranos/skytrace/errors"
	testdb "github.com/teranos/skytrace/internal/testing"
	"github.com/teranos/skytrace/store"
	"github.com/teranos/skytrace/telemetry"
)

func at(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := telemetry.ParseTimestamp(value)
	require.NoError(t, err)
	return ts
}

// seed stores records the way a loader would
func seed(t *testing.T, conn *sql.DB, collection string, records ...telemetry.Record) {
	t.Helper()
	for _, rec := range records {
		doc, err := json.Marshal(rec)
		require.NoError(t, err)
		_, err = conn.Exec("INSERT INTO telemetry (collection, ts_ms, document) VALUES (?, ?, ?)",
			collection, rec.Timestamp.UnixMilli(), string(doc))
		require.NoError(t, err)
	}
}

func findAll(t *testing.T, c store.Client, start, end string) []telemetry.Record {
	t.Helper()
	r, err := telemetry.ParseTimeRange(start, end)
	require.NoError(t, err)

	ctx := context.Background()
	cur, err := c.FindRange(ctx, r)
	require.NoError(t, err)
	records, err := store.Drain(ctx, cur)
	require.NoError(t, err)
	return records
}

func TestFindRangeIsHalfOpen(t *testing.T) {
	conn := testdb.CreateTestDB(t)
	seed(t, conn, "asterix",
		telemetry.Record{Timestamp: at(t, "2022-11-03T12:57:20.123Z"), FlightLevel: 3},
		telemetry.Record{Timestamp: at(t, "2022-11-03T12:57:18.123Z"), FlightLevel: 1},
		telemetry.Record{Timestamp: at(t, "2022-11-03T12:57:19.000Z"), FlightLevel: 2},
	)
	c := New(conn, "asterix", zaptest.NewLogger(t).Sugar())

	records := findAll(t, c, "2022-11-03T12:57:18.123Z", "2022-11-03T12:57:20.123Z")

	require.Len(t, records, 2)
	assert.Equal(t, at(t, "2022-11-03T12:57:18.123Z"), records[0].Timestamp)
	assert.Equal(t, 1.0, records[0].FlightLevel)
	assert.Equal(t, 2.0, records[1].FlightLevel)
}

func TestFindRangeEmptyAndInverted(t *testing.T) {
	conn := testdb.CreateTestDB(t)
	seed(t, conn, "asterix", telemetry.Record{Timestamp: at(t, "2022-11-03T12:57:19Z")})
	c := New(conn, "asterix", nil)

	records := findAll(t, c, "2022-11-04T00:00:00Z", "2022-11-05T00:00:00Z")
	assert.NotNil(t, records)
	assert.Empty(t, records)

	assert.Empty(t, findAll(t, c, "2022-11-03T12:57:20Z", "2022-11-03T12:57:18Z"))
}

func TestFindRangeScopedToCollection(t *testing.T) {
	conn := testdb.CreateTestDB(t)
	ts := at(t, "2022-11-03T12:57:19Z")
	seed(t, conn, "asterix", telemetry.Record{Timestamp: ts, GeoAltFt: 100})
	seed(t, conn, "adsb", telemetry.Record{Timestamp: ts, GeoAltFt: 200})

	records := findAll(t, New(conn, "adsb", nil), "2022-11-03T00:00:00Z", "2022-11-04T00:00:00Z")

	require.Len(t, records, 1)
	assert.Equal(t, 200.0, records[0].GeoAltFt)
}

func TestPingAndListDatabases(t *testing.T) {
	c := New(testdb.CreateTestDB(t), "asterix", nil)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))

	names, err := c.ListDatabases(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "main")
}

func TestPingClosedDatabase(t *testing.T) {
	c := New(testdb.CreateTestDB(t), "asterix", nil)
	require.NoError(t, c.Close(context.Background()))

	err := c.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsStoreUnavailable(err))
}

func TestOpenThroughRegistry(t *testing.T) {
	cfg := config.Default().Store
	cfg.URI = "sqlite://" + filepath.Join(t.TempDir(), "telemetry.db")

	c, err := store.Open(context.Background(), cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer c.Close(context.Background())

	assert.Equal(t, Backend, c.Backend())
	assert.NoError(t, c.Ping(context.Background()))
}

func TestOpenRequiresPath(t *testing.T) {
	cfg := config.Default().Store
	cfg.URI = "sqlite://"

	_, err := Open(context.Background(), cfg, zaptest.NewLogger(t).Sugar())
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestFindRange_Sqlmock(t *testing.T) {
	r, err := telemetry.ParseTimeRange("2022-11-03T12:57:18.123Z", "2022-11-03T12:57:20.123Z")
	require.NoError(t, err)
	good := `{"timestamp":"2022-11-03T12:57:18.123Z","I145_fl":31}`

	t.Run("query error is a query failure", func(t *testing.T) {
		conn, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer conn.Close()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT document FROM telemetry")).
			WithArgs("asterix", r.Start.UnixMilli(), r.End.UnixMilli()).
			WillReturnError(errors.New("disk I/O error"))

		_, err = New(conn, "asterix", nil).FindRange(context.Background(), r)
		require.Error(t, err)
		assert.True(t, errors.IsQueryFailed(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("row error mid-cursor fails the drain", func(t *testing.T) {
		conn, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer conn.Close()

		rows := sqlmock.NewRows([]string{"document"}).
			AddRow(good).
			AddRow(good).
			RowError(1, errors.New("connection reset"))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT document FROM telemetry")).WillReturnRows(rows)

		cur, err := New(conn, "asterix", nil).FindRange(context.Background(), r)
		require.NoError(t, err)

		_, err = store.Drain(context.Background(), cur)
		require.Error(t, err)
		assert.True(t, errors.IsQueryFailed(err))
		assert.Contains(t, err.Error(), "connection reset")
	})

	t.Run("malformed document fails the drain", func(t *testing.T) {
		conn, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer conn.Close()

		rows := sqlmock.NewRows([]string{"document"}).AddRow(`{"timestamp": 12}`)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT document FROM telemetry")).WillReturnRows(rows)

		cur, err := New(conn, "asterix", nil).FindRange(context.Background(), r)
		require.NoError(t, err)

		_, err = store.Drain(context.Background(), cur)
		require.Error(t, err)
		assert.True(t, errors.IsQueryFailed(err))
	})
}
