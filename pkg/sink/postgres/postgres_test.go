package postgres

import (
	"context"
	"fmt"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/polyload/pkg/config"
	"github.com/ajitpratap0/polyload/pkg/errors"
	"github.com/ajitpratap0/polyload/pkg/models"
	"github.com/ajitpratap0/polyload/pkg/sink"
	"github.com/ajitpratap0/polyload/pkg/sink/sqlrow"
)

const insertBooks = `INSERT INTO "books" ("book_id", "title") VALUES ($1, $2), ($3, $4)`

func newMockSink(t *testing.T) (*Sink, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	require.NoError(t, err)

	s := NewWithDialer(config.SinkConfig{Name: "postgres", Type: Kind, URI: "postgresql://x"},
		func(context.Context, string) (Pool, error) { return mock, nil })
	return s, mock
}

func bookRecords() []*models.Record {
	return []*models.Record{
		models.NewRecord([]string{"book_id", "title"}, []interface{}{int64(1), "The Hunger Games"}),
		models.NewRecord([]string{"book_id", "title"}, []interface{}{int64(2), "Harry Potter"}),
	}
}

func expectColumns(mock pgxmock.PgxPoolIface, cols ...string) {
	rows := pgxmock.NewRows([]string{"column_name"})
	for _, c := range cols {
		rows.AddRow(c)
	}
	mock.ExpectQuery(sqlrow.Postgres.ColumnsQuery).WithArgs("books").WillReturnRows(rows)
}

func TestInsertBatch_Commits(t *testing.T) {
	s, mock := newMockSink(t)
	expectColumns(mock, "book_id", "title", "authors")
	mock.ExpectBegin()
	mock.ExpectExec(insertBooks).
		WithArgs(int64(1), "The Hunger Games", int64(2), "Harry Potter").
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	require.NoError(t, s.InsertBatch(context.Background(), "books", bookRecords()))
	assert.Equal(t, sink.Connected, s.State())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatch_RollsBack(t *testing.T) {
	s, mock := newMockSink(t)
	expectColumns(mock, "book_id", "title")
	mock.ExpectBegin()
	mock.ExpectExec(insertBooks).
		WithArgs(int64(1), "The Hunger Games", int64(2), "Harry Potter").
		WillReturnError(fmt.Errorf("duplicate key value violates unique constraint"))
	mock.ExpectRollback()

	err := s.InsertBatch(context.Background(), "books", bookRecords())
	var se *errors.SinkError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "postgres", se.Sink)
	assert.Equal(t, "books", se.Target)
	assert.Equal(t, errors.ErrorTypeInsert, se.Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatch_UnknownColumn(t *testing.T) {
	s, mock := newMockSink(t)
	expectColumns(mock, "book_id")

	err := s.InsertBatch(context.Background(), "books", bookRecords())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown columns [title]")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnect_DialFailure(t *testing.T) {
	s := NewWithDialer(config.SinkConfig{Name: "postgres", Type: Kind, URI: "postgresql://x"},
		func(context.Context, string) (Pool, error) { return nil, fmt.Errorf("connection refused") })

	err := s.InsertBatch(context.Background(), "books", bookRecords())
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
	assert.False(t, s.TestConnection(context.Background()))
	assert.Equal(t, sink.Disconnected, s.State())
}

func TestTestConnection(t *testing.T) {
	s, mock := newMockSink(t)
	mock.ExpectExec("SELECT 1").WillReturnResult(pgxmock.NewResult("SELECT", 1))

	assert.True(t, s.TestConnection(context.Background()))
	mock.ExpectClose()
	require.NoError(t, s.Close(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
