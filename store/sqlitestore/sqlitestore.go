// Package sqlitestore is the embedded SQLite backend of store.Client.
//
// Documents are kept as JSON text next to their timestamp in Unix
// milliseconds, which the range scan uses. Importing the package registers it
// for sqlite:// URIs, e.g. sqlite:///var/lib/skytrace/telemetry.db or
// sqlite://:memory:.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/teranos/skytrace/config"
	"github.com/teranos/skytrace/db"
	"github.com/teranos/skytrace/errors"
	"github.com/teranos/skytrace/logger"
	"github.com/teranos/skytrace/store"
	"github.com/teranos/skytrace/telemetry"
)

// Backend is the name reported by Client.Backend
const Backend = "sqlite"

const findRangeSQL = `SELECT document FROM telemetry
WHERE collection = ? AND ts_ms >= ? AND ts_ms < ?
ORDER BY ts_ms, id`

func init() {
	store.MustRegister("sqlite", Open)
	store.MustRegister("sqlite3", Open)
}

// Client serves telemetry documents from a SQLite database
type Client struct {
	db         *sql.DB
	collection string
	logger     *zap.SugaredLogger
}

// Open opens (creating if needed) the database named by the URI location
func Open(ctx context.Context, cfg config.StoreConfig, log *zap.SugaredLogger) (store.Client, error) {
	path := store.Location(cfg.URI)
	if path == "" {
		return nil, errors.NewInvalidArgumentf("sqlite uri %q has no path", cfg.URI)
	}

	conn, err := db.OpenWithMigrations(path, log)
	if err != nil {
		return nil, errors.WrapStoreUnavailable(err, "open sqlite store")
	}

	log.Infow("SQLite store opened",
		logger.FieldBackend, Backend,
		logger.FieldAddress, path,
		logger.FieldCollection, cfg.Collection,
	)
	return New(conn, cfg.Collection, log), nil
}

// New wraps an already opened and migrated database
func New(conn *sql.DB, collection string, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{db: conn, collection: collection, logger: log}
}

func (c *Client) Backend() string { return Backend }

func (c *Client) Ping(ctx context.Context) error {
	var one int
	if err := c.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return errors.WrapStoreUnavailable(err, "ping sqlite")
	}
	return nil
}

// ListDatabases returns the schema names attached to the connection
func (c *Client) ListDatabases(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, "PRAGMA database_list")
	if err != nil {
		return nil, errors.WrapStoreUnavailable(err, "list databases")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var (
			seq        int
			name, file string
		)
		if err := rows.Scan(&seq, &name, &file); err != nil {
			return nil, errors.Wrap(err, "scan database_list")
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate database_list")
	}
	return names, nil
}

func (c *Client) FindRange(ctx context.Context, r telemetry.TimeRange) (store.Cursor, error) {
	rows, err := c.db.QueryContext(ctx, findRangeSQL, c.collection, r.Start.UnixMilli(), r.End.UnixMilli())
	if err != nil {
		if db.IsDatabaseClosed(err) {
			return nil, errors.WrapStoreUnavailable(err, "find range")
		}
		return nil, errors.WrapQueryFailed(err, "find range in "+c.collection)
	}
	return &rowsCursor{rows: rows}, nil
}

func (c *Client) Close(context.Context) error {
	return c.db.Close()
}

// rowsCursor decodes one JSON document per row
type rowsCursor struct {
	rows *sql.Rows
	doc  []byte
	err  error
}

func (c *rowsCursor) Next(ctx context.Context) bool {
	if c.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	if !c.rows.Next() {
		return false
	}
	if err := c.rows.Scan(&c.doc); err != nil {
		c.err = errors.Wrap(err, "scan document")
		return false
	}
	return true
}

func (c *rowsCursor) Decode(rec *telemetry.Record) error {
	if err := json.Unmarshal(c.doc, rec); err != nil {
		return errors.Wrap(err, "unmarshal document")
	}
	rec.Timestamp = telemetry.Normalize(rec.Timestamp)
	return nil
}

func (c *rowsCursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.rows.Err()
}

func (c *rowsCursor) Close(context.Context) error {
	return c.rows.Close()
}
