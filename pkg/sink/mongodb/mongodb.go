// Package mongodb implements the document sink. Each table becomes a
// collection in one fixed database; no schema is required.
package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/ajitpratap0/polyload/pkg/adapter"
	"github.com/ajitpratap0/polyload/pkg/config"
	"github.com/ajitpratap0/polyload/pkg/errors"
	"github.com/ajitpratap0/polyload/pkg/models"
	"github.com/ajitpratap0/polyload/pkg/sink"
)

// Kind is the sink type name.
const Kind = "mongodb"

// DefaultDatabase is used when the descriptor does not name one.
const DefaultDatabase = "data-hw1"

func init() {
	sink.MustRegister(Kind, func(cfg config.SinkConfig) (sink.Sink, error) {
		return New(cfg), nil
	})
}

// Sink writes batches as documents.
type Sink struct {
	*sink.Base
	uri      string
	database string
	client   *mongo.Client
}

// New creates a sink. Nothing is dialed until Connect.
func New(cfg config.SinkConfig) *Sink {
	db := cfg.Database
	if db == "" {
		db = DefaultDatabase
	}
	return &Sink{
		Base:     sink.NewBase(cfg.Name, Kind),
		uri:      cfg.URI,
		database: db,
	}
}

// NewWithClient creates a sink over an existing client, already connected.
func NewWithClient(cfg config.SinkConfig, client *mongo.Client) *Sink {
	s := New(cfg)
	s.client = client
	s.MarkConnected()
	return s
}

// Database returns the database documents are written to.
func (s *Sink) Database() string {
	return s.database
}

// Connect creates the client and pings the primary.
func (s *Sink) Connect(ctx context.Context) error {
	if s.IsConnected() {
		return nil
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.uri))
	if err != nil {
		return s.ConnectionError("", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return s.ConnectionError("", err)
	}
	s.client = client
	s.MarkConnected()
	return nil
}

// InsertBatch inserts one document per record into the collection named
// table. The insert is unordered; there is no cross-document atomicity.
func (s *Sink) InsertBatch(ctx context.Context, table string, records []*models.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.Ensure(ctx, table, s.Connect); err != nil {
		return err
	}

	docs := adapter.Documents(&models.Batch{Table: table, Records: records})
	res, err := s.client.Database(s.database).Collection(table).
		InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		return s.InsertError(table, err)
	}
	s.Logger().Debug("batch inserted", zap.String("collection", table), zap.Int("documents", len(res.InsertedIDs)))
	return nil
}

// TestConnection pings the admin database.
func (s *Sink) TestConnection(ctx context.Context) bool {
	return s.Probe(ctx, s.Connect, func(ctx context.Context) error {
		return s.client.Ping(ctx, readpref.Primary())
	})
}

// Close disconnects the client.
func (s *Sink) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	err := s.client.Disconnect(ctx)
	s.client = nil
	s.MarkDisconnected()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to disconnect "+s.Name())
	}
	return nil
}
