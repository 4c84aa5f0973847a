// Package mongostore is the MongoDB backend of store.Client.
//
// Importing the package registers it for the mongodb:// and mongodb+srv://
// schemes.
package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/teranos/skytrace/config"
	"github.com/teranos/skytrace/errors"
	"github.com/teranos/skytrace/logger"
	"github.com/teranos/skytrace/store"
	"github.com/teranos/skytrace/telemetry"
)

// Backend is the name reported by Client.Backend
const Backend = "mongodb"

// TimestampKey is the document field range queries filter on
const TimestampKey = "timestamp"

func init() {
	store.MustRegister("mongodb", Open)
	store.MustRegister("mongodb+srv", Open)
}

// Client wraps a mongo.Client bound to one database and collection
type Client struct {
	client     *mongo.Client
	database   string
	collection *mongo.Collection
	logger     *zap.SugaredLogger
}

// Open connects to MongoDB. The driver connects lazily, so Open only fails
// on malformed options; use Ping to check the server is reachable.
func Open(ctx context.Context, cfg config.StoreConfig, log *zap.SugaredLogger) (store.Client, error) {
	opts := options.Client().ApplyURI(cfg.URI).SetAppName("skytrace")
	if timeout := cfg.ConnectTimeout(); timeout > 0 {
		opts.SetConnectTimeout(timeout)
	}
	if err := opts.Validate(); err != nil {
		return nil, errors.WrapInvalidArgument(err, "mongodb options")
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.WrapStoreUnavailable(err, "connect to mongodb")
	}

	log.Infow("MongoDB client created",
		logger.FieldBackend, Backend,
		logger.FieldAddress, store.Redact(cfg.URI),
		logger.FieldDatabase, cfg.Database,
		logger.FieldCollection, cfg.Collection,
	)

	return &Client{
		client:     client,
		database:   cfg.Database,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		logger:     log,
	}, nil
}

func (c *Client) Backend() string { return Backend }

// Ping runs the admin ping command
func (c *Client) Ping(ctx context.Context) error {
	cmd := bson.D{{Key: "ping", Value: 1}}
	if err := c.client.Database("admin").RunCommand(ctx, cmd).Err(); err != nil {
		return errors.WrapStoreUnavailable(err, "ping mongodb")
	}
	return nil
}

func (c *Client) ListDatabases(ctx context.Context) ([]string, error) {
	names, err := c.client.ListDatabaseNames(ctx, bson.D{})
	if err != nil {
		return nil, errors.WrapStoreUnavailable(err, "list databases")
	}
	return names, nil
}

func (c *Client) FindRange(ctx context.Context, r telemetry.TimeRange) (store.Cursor, error) {
	opts := options.Find().SetSort(bson.D{{Key: TimestampKey, Value: 1}})
	cur, err := c.collection.Find(ctx, RangeFilter(r), opts)
	if err != nil {
		return nil, errors.WrapQueryFailed(err, "find "+c.database+"."+c.collection.Name())
	}
	return &Cursor{cur: cur}, nil
}

func (c *Client) Close(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		return errors.Wrap(err, "disconnect mongodb")
	}
	return nil
}

// RangeFilter selects documents with start <= timestamp < end
func RangeFilter(r telemetry.TimeRange) bson.D {
	return bson.D{{Key: TimestampKey, Value: bson.D{
		{Key: "$gte", Value: r.Start},
		{Key: "$lt", Value: r.End},
	}}}
}

// Cursor adapts *mongo.Cursor to store.Cursor
type Cursor struct {
	cur *mongo.Cursor
}

// NewCursor wraps an existing driver cursor
func NewCursor(cur *mongo.Cursor) *Cursor {
	return &Cursor{cur: cur}
}

func (c *Cursor) Next(ctx context.Context) bool { return c.cur.Next(ctx) }

func (c *Cursor) Decode(rec *telemetry.Record) error {
	if err := c.cur.Decode(rec); err != nil {
		return err
	}
	rec.Timestamp = telemetry.Normalize(rec.Timestamp)
	return nil
}

func (c *Cursor) Err() error { return c.cur.Err() }

func (c *Cursor) Close(ctx context.Context) error { return c.cur.Close(ctx) }
