package fanout

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/polyload/pkg/errors"
	"github.com/ajitpratap0/polyload/pkg/models"
	"github.com/ajitpratap0/polyload/pkg/sink"
	"github.com/ajitpratap0/polyload/pkg/testutil"
)

func tagBatch(seq int, ids ...int64) *models.Batch {
	b := models.NewBatch("tags", seq, len(ids))
	for _, id := range ids {
		b.Add(models.NewRecord([]string{"tag_id", "tag_name"}, []interface{}{id, fmt.Sprintf("tag-%d", id)}))
	}
	return b
}

func recordingSinks(names ...string) ([]*testutil.RecordingSink, []sink.Sink) {
	rec := make([]*testutil.RecordingSink, len(names))
	sinks := make([]sink.Sink, len(names))
	for i, n := range names {
		rec[i] = testutil.NewRecordingSink(n)
		sinks[i] = rec[i]
	}
	return rec, sinks
}

func TestDispatch_IsolatesFailingSink(t *testing.T) {
	rec, sinks := recordingSinks("postgres", "mongodb", "neo4j", "clickhouse", "mssql")
	rec[2].Graph = true
	rec[3].Fail = fmt.Errorf("code: 60, table ratings does not exist")

	c := New(sinks, WithLogger(testutil.TestLogger(t)))
	batch := tagBatch(1, 1, 2, 3)
	report := c.Dispatch(context.Background(), batch, c.Targets(batch.Table))

	require.Len(t, report.Outcomes, 5)
	assert.Equal(t, 4, report.Succeeded())

	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "clickhouse", failed[0].Sink)
	assert.True(t, testutil.IsInsertError(failed[0].Err, "clickhouse"))
	assert.Error(t, report.Err())

	for i, r := range rec {
		if i == 3 {
			continue
		}
		assert.Len(t, r.Calls(), 1, r.Name())
		assert.Equal(t, 3, report.Outcomes[i].Records)
	}
	assert.Equal(t, "Tag", report.Outcomes[2].Target)
	assert.Len(t, rec[2].Stored("Tag"), 3)
	assert.Len(t, rec[0].Stored("tags"), 3)
}

func TestDispatch_RecoversPanic(t *testing.T) {
	rec, sinks := recordingSinks("a", "b")
	rec[0].Panic = "nil map write"

	c := New(sinks, WithLogger(testutil.TestLogger(t)))
	report := c.Dispatch(context.Background(), tagBatch(1, 1), nil)

	require.Len(t, report.Failed(), 1)
	assert.Equal(t, "a", report.Failed()[0].Sink)
	assert.Contains(t, report.Failed()[0].Err.Error(), "panic: nil map write")
	assert.True(t, report.Outcomes[1].OK())
	assert.Len(t, rec[1].Stored("tags"), 1)
}

func TestDispatch_TimeoutFailsOnlySlowSink(t *testing.T) {
	rec, sinks := recordingSinks("slow", "fast")
	rec[0].Delay = 5 * time.Second

	c := New(sinks, WithTimeout(50*time.Millisecond), WithLogger(testutil.TestLogger(t)))
	start := time.Now()
	report := c.Dispatch(context.Background(), tagBatch(1, 1, 2), nil)

	assert.Less(t, time.Since(start), 2*time.Second)
	require.Len(t, report.Failed(), 1)
	assert.Equal(t, "slow", report.Failed()[0].Sink)
	assert.True(t, errors.Is(report.Failed()[0].Err, context.DeadlineExceeded))
	assert.Len(t, rec[1].Stored("tags"), 2)
}

func TestDispatch_RespectsConcurrencyLimit(t *testing.T) {
	rec, sinks := recordingSinks("a", "b", "c")
	for _, r := range rec {
		r.Delay = 20 * time.Millisecond
	}

	c := New(sinks, WithConcurrency(1), WithLogger(testutil.TestLogger(t)))
	assert.Equal(t, 1, c.Concurrency())
	report := c.Dispatch(context.Background(), tagBatch(1, 1), nil)
	require.Empty(t, report.Failed())

	var calls []testutil.Call
	for _, r := range rec {
		calls = append(calls, r.Calls()...)
	}
	require.Len(t, calls, 3)
	sort.Slice(calls, func(i, j int) bool { return calls[i].Start.Before(calls[j].Start) })
	for i := 1; i < len(calls); i++ {
		assert.False(t, calls[i].Start.Before(calls[i-1].End), "calls overlap")
	}
}

func TestDispatch_ResubmitDuplicates(t *testing.T) {
	rec, sinks := recordingSinks("postgres")
	c := New(sinks, WithLogger(testutil.TestLogger(t)))

	batch := tagBatch(1, 1, 2)
	c.Dispatch(context.Background(), batch, nil)
	c.Dispatch(context.Background(), batch, nil)

	// Nothing deduplicates: the same batch lands twice.
	assert.Len(t, rec[0].Stored("tags"), 4)
}

func TestNew_DefaultConcurrencyIsSinkCount(t *testing.T) {
	_, sinks := recordingSinks("a", "b", "c", "d")
	assert.Equal(t, 4, New(sinks).Concurrency())
}
