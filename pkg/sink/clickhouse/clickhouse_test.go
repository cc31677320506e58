package clickhouse

import (
	"context"
	"fmt"
	"testing"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/polyload/pkg/config"
	"github.com/ajitpratap0/polyload/pkg/errors"
	"github.com/ajitpratap0/polyload/pkg/models"
	"github.com/ajitpratap0/polyload/pkg/sink"
)

type fakeBatch struct {
	driver.Batch
	rows      [][]interface{}
	appendErr error
	sendErr   error
	sent      bool
	aborted   bool
}

func (b *fakeBatch) Append(v ...any) error {
	if b.appendErr != nil {
		return b.appendErr
	}
	b.rows = append(b.rows, v)
	return nil
}

func (b *fakeBatch) Send() error {
	b.sent = true
	return b.sendErr
}

func (b *fakeBatch) Abort() error {
	b.aborted = true
	return nil
}

type fakeConn struct {
	queries []string
	batches []*fakeBatch
	next    *fakeBatch
	pingErr error
	closed  bool
}

func (c *fakeConn) PrepareBatch(_ context.Context, query string, _ ...driver.PrepareBatchOption) (driver.Batch, error) {
	c.queries = append(c.queries, query)
	b := c.next
	if b == nil {
		b = &fakeBatch{}
	}
	c.next = nil
	c.batches = append(c.batches, b)
	return b, nil
}

func (c *fakeConn) Ping(context.Context) error { return c.pingErr }

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func newFakeSink(c *fakeConn) *Sink {
	return NewWithDialer(config.SinkConfig{Name: "clickhouse", Type: Kind, URI: "clickhouse://localhost:9000"},
		func(string) (Conn, error) { return c, nil })
}

func ratings() []*models.Record {
	return []*models.Record{
		models.NewRecord([]string{"user_id", "book_id", "rating"}, []interface{}{int64(1), int64(258), int64(5)}),
		models.NewRecord([]string{"user_id", "book_id", "rating"}, []interface{}{int64(2), int64(4081), int64(4)}),
	}
}

func TestInsertBatch_RenamesPerRecord(t *testing.T) {
	c := &fakeConn{}
	s := newFakeSink(c)
	records := ratings()

	require.NoError(t, s.InsertBatch(context.Background(), "ratings", records))

	require.Len(t, c.queries, 1)
	assert.Equal(t, "INSERT INTO `ratings` (`user_id`, `goodreads_book_id`, `rating`)", c.queries[0])
	assert.True(t, c.batches[0].sent)
	assert.Equal(t, [][]interface{}{{int64(1), int64(258), int64(5)}, {int64(2), int64(4081), int64(4)}}, c.batches[0].rows)

	assert.True(t, records[0].Has("book_id"), "shared records keep the original key")
}

func TestInsertBatch_TablesWithoutBookID(t *testing.T) {
	c := &fakeConn{}
	s := newFakeSink(c)
	tags := []*models.Record{models.NewRecord([]string{"tag_id", "tag_name"}, []interface{}{int64(1), "fiction"})}

	require.NoError(t, s.InsertBatch(context.Background(), "tags", tags))
	assert.Equal(t, "INSERT INTO `tags` (`tag_id`, `tag_name`)", c.queries[0])
}

func TestInsertBatch_AppendFailureAborts(t *testing.T) {
	c := &fakeConn{next: &fakeBatch{appendErr: fmt.Errorf("converting int64 to UInt8 is unsupported")}}
	s := newFakeSink(c)

	err := s.InsertBatch(context.Background(), "ratings", ratings())
	var se *errors.SinkError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, errors.ErrorTypeInsert, se.Kind)
	assert.True(t, c.batches[0].aborted)
	assert.False(t, c.batches[0].sent)
}

func TestInsertBatch_SendFailure(t *testing.T) {
	c := &fakeConn{next: &fakeBatch{sendErr: fmt.Errorf("code: 60, message: Table default.ratings does not exist")}}
	s := newFakeSink(c)

	err := s.InsertBatch(context.Background(), "ratings", ratings())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestConnect_PingFailure(t *testing.T) {
	c := &fakeConn{pingErr: fmt.Errorf("dial tcp 127.0.0.1:9000: connect: connection refused")}
	s := newFakeSink(c)

	assert.False(t, s.TestConnection(context.Background()))
	assert.True(t, c.closed)
	assert.Equal(t, sink.Disconnected, s.State())
}

func TestDial_BadDSN(t *testing.T) {
	_, err := Dial("clickhouse://%zz")
	require.Error(t, err)
}
