package sqlrow

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/polyload/pkg/config"
	"github.com/ajitpratap0/polyload/pkg/errors"
	"github.com/ajitpratap0/polyload/pkg/models"
	"github.com/ajitpratap0/polyload/pkg/sink"
)

func newMockSink(t *testing.T) (*Sink, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	s := NewWithOpener(config.SinkConfig{Name: "mssql", Type: "sqlserver", URI: "sqlserver://x"}, SQLServer,
		func(driverName, dsn string) (*sql.DB, error) {
			assert.Equal(t, "sqlserver", driverName)
			return db, nil
		})
	return s, mock
}

func tagRecords() []*models.Record {
	return []*models.Record{
		models.NewRecord([]string{"tag_id", "tag_name"}, []interface{}{int64(1), "fiction"}),
		models.NewRecord([]string{"tag_id", "tag_name"}, []interface{}{int64(2), "fantasy"}),
	}
}

func expectColumns(mock sqlmock.Sqlmock, table string, cols ...string) {
	rows := sqlmock.NewRows([]string{"COLUMN_NAME"})
	for _, c := range cols {
		rows.AddRow(c)
	}
	mock.ExpectQuery(SQLServer.ColumnsQuery).WithArgs(table).WillReturnRows(rows)
}

func TestInsertBatch_OneTransaction(t *testing.T) {
	s, mock := newMockSink(t)
	expectColumns(mock, "tags", "tag_id", "tag_name")
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO [tags] ([tag_id], [tag_name]) VALUES (@p1, @p2), (@p3, @p4)").
		WithArgs(int64(1), "fiction", int64(2), "fantasy").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, s.InsertBatch(context.Background(), "tags", tagRecords()))
	assert.Equal(t, sink.Connected, s.State())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatch_UnknownColumn(t *testing.T) {
	s, mock := newMockSink(t)
	expectColumns(mock, "tags", "tag_id")

	err := s.InsertBatch(context.Background(), "tags", tagRecords())
	var se *errors.SinkError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, errors.ErrorTypeInsert, se.Kind)
	assert.Equal(t, "tags", se.Target)
	assert.Contains(t, err.Error(), "tag_name")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatch_MissingTable(t *testing.T) {
	s, mock := newMockSink(t)
	expectColumns(mock, "tags")

	err := s.InsertBatch(context.Background(), "tags", tagRecords())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestInsertBatch_RollsBackOnFailure(t *testing.T) {
	s, mock := newMockSink(t)
	expectColumns(mock, "tags", "tag_id", "tag_name")
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO [tags] ([tag_id], [tag_name]) VALUES (@p1, @p2), (@p3, @p4)").
		WillReturnError(fmt.Errorf("Violation of PRIMARY KEY constraint"))
	mock.ExpectRollback()

	err := s.InsertBatch(context.Background(), "tags", tagRecords())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInsert))
	assert.True(t, strings.Contains(err.Error(), "PRIMARY KEY"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatch_ConnectFailure(t *testing.T) {
	s := NewWithOpener(config.SinkConfig{Name: "mssql", Type: "sqlserver", URI: "sqlserver://x"}, SQLServer,
		func(string, string) (*sql.DB, error) { return nil, driver.ErrBadConn })

	err := s.InsertBatch(context.Background(), "tags", tagRecords())
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
	assert.False(t, s.TestConnection(context.Background()))
}

func TestInsertBatch_Empty(t *testing.T) {
	s, mock := newMockSink(t)
	require.NoError(t, s.InsertBatch(context.Background(), "tags", nil))
	assert.Equal(t, sink.Disconnected, s.State())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClose(t *testing.T) {
	s, mock := newMockSink(t)
	require.NoError(t, s.Connect(context.Background()))
	mock.ExpectClose()
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, sink.Disconnected, s.State())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "sqlserver://sa:pw@localhost:1433?database=master", DSN(SQLServer, "sqlserver://sa:pw@localhost:1433?database=master"))
	assert.True(t, strings.HasPrefix(DSN(MySQL, "mysql://user:pass@db:3306/books"), "user:pass@tcp(db:3306)/books"))
	assert.Equal(t, "user:pass@tcp(db)/books", DSN(MySQL, "user:pass@tcp(db)/books"))
}
