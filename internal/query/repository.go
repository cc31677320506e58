package query

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ajitpratap0/polyload/pkg/errors"
)

// Row is one result row keyed by column name.
type Row = map[string]interface{}

// Repository answers the read-only questions the API exposes.
type Repository interface {
	RatingsByUser(ctx context.Context, userID int64) ([]Row, error)
	UsersWhoRated(ctx context.Context, bookID int64) ([]Row, error)
	TopBooks(ctx context.Context, limit int) ([]Row, error)
	RatingsOverTime(ctx context.Context) ([]Row, error)
	TopWarehouseBooks(ctx context.Context, limit int) ([]Row, error)
	RatingsForGenre(ctx context.Context, genre string) (int64, error)
	Ping(ctx context.Context) error
}

// Querier is the subset of *pgxpool.Pool the repository needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// SQL run against the relational tables and the warehouse star schema.
const (
	ratingsByUserSQL = `SELECT * FROM ratings WHERE user_id = $1`

	usersWhoRatedSQL = `SELECT u.user_id, u.user_name FROM ratings r ` +
		`JOIN users u ON r.user_id = u.user_id WHERE r.book_id = $1`

	topBooksSQL = `SELECT b.book_id, b.title, AVG(r.rating)::float8 AS avg_rating FROM books b ` +
		`JOIN ratings r ON b.book_id = r.book_id GROUP BY b.book_id, b.title ` +
		`ORDER BY avg_rating DESC LIMIT $1`

	ratingsOverTimeSQL = `SELECT t.date, COUNT(f.rating) AS total_ratings FROM fact_ratings f ` +
		`JOIN dim_time t ON f.time_id = t.time_id GROUP BY t.date ORDER BY t.date`

	topWarehouseBooksSQL = `SELECT b.book_id, b.title, AVG(f.rating)::float8 AS avg_rating FROM fact_ratings f ` +
		`JOIN dim_books b ON f.book_id = b.book_id GROUP BY b.book_id, b.title ` +
		`ORDER BY avg_rating DESC LIMIT $1`

	ratingsForGenreSQL = `SELECT COUNT(f.rating) FROM fact_ratings f ` +
		`JOIN dim_books b ON f.book_id = b.book_id WHERE b.genre = $1`
)

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	db Querier
}

// NewPGRepository wraps db.
func NewPGRepository(db Querier) *PGRepository {
	return &PGRepository{db: db}
}

// OpenPool creates and pings a pgx pool for uri.
func OpenPool(ctx context.Context, uri string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, uri)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid postgres uri")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to ping postgres")
	}
	return pool, nil
}

func (r *PGRepository) rows(ctx context.Context, sql string, args ...any) ([]Row, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "query failed")
	}
	out, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to read rows")
	}
	if out == nil {
		out = []Row{}
	}
	return out, nil
}

// RatingsByUser returns every rating of userID.
func (r *PGRepository) RatingsByUser(ctx context.Context, userID int64) ([]Row, error) {
	return r.rows(ctx, ratingsByUserSQL, userID)
}

// UsersWhoRated returns the users that rated bookID.
func (r *PGRepository) UsersWhoRated(ctx context.Context, bookID int64) ([]Row, error) {
	return r.rows(ctx, usersWhoRatedSQL, bookID)
}

// TopBooks returns the best rated books.
func (r *PGRepository) TopBooks(ctx context.Context, limit int) ([]Row, error) {
	return r.rows(ctx, topBooksSQL, limit)
}

// RatingsOverTime counts warehouse ratings per day.
func (r *PGRepository) RatingsOverTime(ctx context.Context) ([]Row, error) {
	return r.rows(ctx, ratingsOverTimeSQL)
}

// TopWarehouseBooks returns the best rated books of the warehouse.
func (r *PGRepository) TopWarehouseBooks(ctx context.Context, limit int) ([]Row, error) {
	return r.rows(ctx, topWarehouseBooksSQL, limit)
}

// RatingsForGenre counts warehouse ratings of books in genre.
func (r *PGRepository) RatingsForGenre(ctx context.Context, genre string) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, ratingsForGenreSQL, genre).Scan(&n); err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeQuery, "query failed")
	}
	return n, nil
}

// Ping checks the database is reachable.
func (r *PGRepository) Ping(ctx context.Context) error {
	_, err := r.db.Exec(ctx, "SELECT 1")
	return err
}
