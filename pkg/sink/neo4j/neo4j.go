// Package neo4j implements the graph sink: every record becomes one node
// whose label is derived from the table name.
package neo4j

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/polyload/pkg/adapter"
	"github.com/ajitpratap0/polyload/pkg/config"
	"github.com/ajitpratap0/polyload/pkg/errors"
	"github.com/ajitpratap0/polyload/pkg/models"
	"github.com/ajitpratap0/polyload/pkg/sink"
)

// Kind is the sink type name.
const Kind = "neo4j"

func init() {
	sink.MustRegister(Kind, func(cfg config.SinkConfig) (sink.Sink, error) {
		return New(cfg), nil
	})
}

// Sink writes nodes to Neo4j.
type Sink struct {
	*sink.Base
	uri      string
	username string
	password string
	database string
	dial     DialFunc
	driver   Driver
}

// New creates a sink. Nothing is dialed until Connect.
func New(cfg config.SinkConfig) *Sink {
	return NewWithDialer(cfg, Dial)
}

// NewWithDialer is New with a custom dialer.
func NewWithDialer(cfg config.SinkConfig, dial DialFunc) *Sink {
	return &Sink{
		Base:     sink.NewBase(cfg.Name, Kind),
		uri:      cfg.URI,
		username: cfg.Username,
		password: cfg.Password,
		database: cfg.Database,
		dial:     dial,
	}
}

// Target returns the node label for table.
func (s *Sink) Target(table string) string {
	return adapter.Label(table)
}

// CreateNode returns the Cypher statement creating one node under label.
func CreateNode(label string) string {
	return fmt.Sprintf("CREATE (n:`%s` $props)", strings.ReplaceAll(label, "`", "``"))
}

// Connect creates the driver and verifies connectivity.
func (s *Sink) Connect(ctx context.Context) error {
	if s.IsConnected() {
		return nil
	}
	driver, err := s.dial(s.uri, s.username, s.password)
	if err != nil {
		return s.ConnectionError("", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return s.ConnectionError("", err)
	}
	s.driver = driver
	s.MarkConnected()
	return nil
}

// InsertBatch creates one node per record under label, all inside one
// write session. A failing record stops the batch; nodes created before it
// remain.
func (s *Sink) InsertBatch(ctx context.Context, label string, records []*models.Record) (err error) {
	if len(records) == 0 {
		return nil
	}
	if err := s.Ensure(ctx, label, s.Connect); err != nil {
		return err
	}

	session := s.driver.NewWriteSession(ctx, s.database)
	defer func() {
		if cerr := session.Close(ctx); cerr != nil && err == nil {
			err = s.InsertError(label, cerr)
		}
	}()

	cypher := CreateNode(label)
	for i, r := range records {
		if err := session.Run(ctx, cypher, map[string]any{"props": adapter.Sanitize(r)}); err != nil {
			return s.InsertError(label, fmt.Errorf("record %d: %w", i, err))
		}
	}
	s.Logger().Debug("nodes created", zap.String("label", label), zap.Int("nodes", len(records)))
	return nil
}

// TestConnection verifies connectivity.
func (s *Sink) TestConnection(ctx context.Context) bool {
	return s.Probe(ctx, s.Connect, func(ctx context.Context) error {
		return s.driver.VerifyConnectivity(ctx)
	})
}

// Close closes the driver.
func (s *Sink) Close(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	err := s.driver.Close(ctx)
	s.driver = nil
	s.MarkDisconnected()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to close "+s.Name())
	}
	return nil
}
