package query

import (
	"context"
	"fmt"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/polyload/pkg/errors"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestPGRepository_RatingsByUser(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(ratingsByUserSQL).WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "book_id", "rating"}).
			AddRow(int64(3), int64(10), int64(4)).
			AddRow(int64(3), int64(11), int64(5)))

	rows, err := NewPGRepository(mock).RatingsByUser(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(11), rows[1]["book_id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepository_EmptyResultIsEmptySlice(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(topBooksSQL).WithArgs(5).
		WillReturnRows(pgxmock.NewRows([]string{"book_id", "title", "avg_rating"}))

	rows, err := NewPGRepository(mock).TopBooks(context.Background(), 5)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestPGRepository_RatingsForGenre(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(ratingsForGenreSQL).WithArgs("fantasy").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(17)))

	n, err := NewPGRepository(mock).RatingsForGenre(context.Background(), "fantasy")
	require.NoError(t, err)
	assert.Equal(t, int64(17), n)
}

func TestPGRepository_QueryError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(ratingsOverTimeSQL).WillReturnError(fmt.Errorf("relation does not exist"))

	_, err := NewPGRepository(mock).RatingsOverTime(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeQuery))
}

func TestPGRepository_Ping(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("SELECT 1").WillReturnResult(pgxmock.NewResult("SELECT", 1))

	assert.NoError(t, NewPGRepository(mock).Ping(context.Background()))
}
