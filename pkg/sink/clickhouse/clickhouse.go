// Package clickhouse implements the columnar sink: one bulk insert per batch
// with the column list taken from the first record.
package clickhouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/ajitpratap0/polyload/pkg/adapter"
	"github.com/ajitpratap0/polyload/pkg/config"
	"github.com/ajitpratap0/polyload/pkg/errors"
	"github.com/ajitpratap0/polyload/pkg/models"
	"github.com/ajitpratap0/polyload/pkg/sink"
)

// Kind is the sink type name.
const Kind = "clickhouse"

func init() {
	sink.MustRegister(Kind, func(cfg config.SinkConfig) (sink.Sink, error) {
		return New(cfg), nil
	})
}

// Conn is the subset of driver.Conn the sink uses.
type Conn interface {
	PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error)
	Ping(ctx context.Context) error
	Close() error
}

// DialFunc opens a native connection.
type DialFunc func(uri string) (Conn, error)

// Dial parses a clickhouse:// DSN and opens a native connection.
func Dial(uri string) (Conn, error) {
	opts, err := clickhouse.ParseDSN(uri)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse clickhouse dsn")
	}
	return clickhouse.Open(opts)
}

// Sink writes batches to ClickHouse.
type Sink struct {
	*sink.Base
	uri  string
	dial DialFunc
	conn Conn
}

// New creates a sink. Nothing is dialed until Connect.
func New(cfg config.SinkConfig) *Sink {
	return NewWithDialer(cfg, Dial)
}

// NewWithDialer is New with a custom dialer.
func NewWithDialer(cfg config.SinkConfig, dial DialFunc) *Sink {
	return &Sink{
		Base: sink.NewBase(cfg.Name, Kind),
		uri:  cfg.URI,
		dial: dial,
	}
}

// InsertQuery returns the batch insert statement for table and columns.
func InsertQuery(table string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quote(c)
	}
	return fmt.Sprintf("INSERT INTO %s (%s)", quote(table), strings.Join(quoted, ", "))
}

func quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "\\`") + "`"
}

// Connect opens the connection and pings the server.
func (s *Sink) Connect(ctx context.Context) error {
	if s.IsConnected() {
		return nil
	}
	conn, err := s.dial(s.uri)
	if err != nil {
		return s.ConnectionError("", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return s.ConnectionError("", err)
	}
	s.conn = conn
	s.MarkConnected()
	return nil
}

// InsertBatch renames book_id to goodreads_book_id on every record, then
// sends the batch as one bulk insert.
func (s *Sink) InsertBatch(ctx context.Context, table string, records []*models.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.Ensure(ctx, table, s.Connect); err != nil {
		return err
	}

	renamed := adapter.RenameKey(&models.Batch{Table: table, Records: records}, adapter.BookIDKey, adapter.GoodreadsBookIDKey)
	columns, rows := adapter.Columnar(renamed)

	batch, err := s.conn.PrepareBatch(ctx, InsertQuery(table, columns))
	if err != nil {
		return s.InsertError(table, fmt.Errorf("prepare: %w", err))
	}
	for i, row := range rows {
		if err := batch.Append(row...); err != nil {
			_ = batch.Abort()
			return s.InsertError(table, fmt.Errorf("row %d: %w", i, err))
		}
	}
	if err := batch.Send(); err != nil {
		return s.InsertError(table, fmt.Errorf("send: %w", err))
	}
	s.Logger().Debug("batch inserted", zap.String("table", table), zap.Int("rows", len(rows)))
	return nil
}

// TestConnection pings the server.
func (s *Sink) TestConnection(ctx context.Context) bool {
	return s.Probe(ctx, s.Connect, func(ctx context.Context) error {
		return s.conn.Ping(ctx)
	})
}

// Close closes the connection.
func (s *Sink) Close(_ context.Context) error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.MarkDisconnected()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to close "+s.Name())
	}
	return nil
}
