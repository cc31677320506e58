// Package postgres implements the PostgreSQL row sink on a pgx connection
// pool. Batches go to tables that must already exist; each batch is written
// in one transaction.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ajitpratap0/polyload/pkg/adapter"
	"github.com/ajitpratap0/polyload/pkg/config"
	"github.com/ajitpratap0/polyload/pkg/errors"
	"github.com/ajitpratap0/polyload/pkg/models"
	"github.com/ajitpratap0/polyload/pkg/sink"
	"github.com/ajitpratap0/polyload/pkg/sink/sqlrow"
)

// Kind is the sink type name.
const Kind = "postgres"

func init() {
	sink.MustRegister(Kind, func(cfg config.SinkConfig) (sink.Sink, error) {
		return New(cfg), nil
	})
}

// Pool is the subset of *pgxpool.Pool the sink uses.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// DialFunc opens and validates a pool.
type DialFunc func(ctx context.Context, uri string) (Pool, error)

// Sink writes batches to PostgreSQL.
type Sink struct {
	*sink.Base
	uri  string
	dial DialFunc
	pool Pool
}

// New creates a sink. Nothing is dialed until Connect.
func New(cfg config.SinkConfig) *Sink {
	return NewWithDialer(cfg, Dial)
}

// NewWithDialer is New with a custom dialer, used to inject mock pools.
func NewWithDialer(cfg config.SinkConfig, dial DialFunc) *Sink {
	return &Sink{
		Base: sink.NewBase(cfg.Name, Kind),
		uri:  cfg.URI,
		dial: dial,
	}
}

// Dial parses uri, creates a pool and pings it.
func Dial(ctx context.Context, uri string) (Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(uri)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse connection string")
	}
	poolConfig.MaxConns = 4
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to ping")
	}
	return pool, nil
}

// Connect creates the pool.
func (s *Sink) Connect(ctx context.Context) error {
	if s.IsConnected() {
		return nil
	}
	pool, err := s.dial(ctx, s.uri)
	if err != nil {
		return s.ConnectionError("", err)
	}
	s.pool = pool
	s.MarkConnected()
	return nil
}

// InsertBatch writes records to table in one transaction. Every record
// column must exist in the table.
func (s *Sink) InsertBatch(ctx context.Context, table string, records []*models.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.Ensure(ctx, table, s.Connect); err != nil {
		return err
	}

	columns, rows := adapter.Columnar(&models.Batch{Table: table, Records: records})

	existing, err := s.tableColumns(ctx, table)
	if err != nil {
		return s.InsertError(table, err)
	}
	if len(existing) == 0 {
		return s.InsertError(table, fmt.Errorf("table %s does not exist", table))
	}
	if missing := sqlrow.Unknown(columns, existing); len(missing) > 0 {
		return s.InsertError(table, fmt.Errorf("unknown columns %v", missing))
	}

	if err := s.exec(ctx, sqlrow.Postgres.Plan(table, columns, rows)); err != nil {
		return s.InsertError(table, err)
	}
	s.Logger().Debug("batch inserted", zap.String("table", table), zap.Int("records", len(records)))
	return nil
}

func (s *Sink) tableColumns(ctx context.Context, table string) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, sqlrow.Postgres.ColumnsQuery, table)
	if err != nil {
		return nil, fmt.Errorf("introspect %s: %w", table, err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("introspect %s: %w", table, err)
	}

	cols := make(map[string]struct{}, len(names))
	for _, n := range names {
		cols[n] = struct{}{}
	}
	return cols, nil
}

func (s *Sink) exec(ctx context.Context, stmts []sqlrow.Statement) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.Logger().Warn("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	for i, st := range stmts {
		if _, err = tx.Exec(ctx, st.SQL, st.Args...); err != nil {
			return fmt.Errorf("statement %d of %d: %w", i+1, len(stmts), err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// TestConnection runs SELECT 1.
func (s *Sink) TestConnection(ctx context.Context) bool {
	return s.Probe(ctx, s.Connect, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, "SELECT 1")
		return err
	})
}

// Close closes the pool.
func (s *Sink) Close(_ context.Context) error {
	if s.pool == nil {
		return nil
	}
	s.pool.Close()
	s.pool = nil
	s.MarkDisconnected()
	return nil
}
