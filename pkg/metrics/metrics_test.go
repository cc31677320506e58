package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveInsert(t *testing.T) {
	ObserveInsert("metrics-test-sink", "books", 10, 5*time.Millisecond, nil)
	ObserveInsert("metrics-test-sink", "books", 4, time.Millisecond, fmt.Errorf("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(SinkBatches.WithLabelValues("metrics-test-sink", "books", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(SinkBatches.WithLabelValues("metrics-test-sink", "books", StatusFailure)))
	assert.Equal(t, 10.0, testutil.ToFloat64(SinkRecords.WithLabelValues("metrics-test-sink", "books", StatusSuccess)))
	assert.Equal(t, 4.0, testutil.ToFloat64(SinkRecords.WithLabelValues("metrics-test-sink", "books", StatusFailure)))
}

func TestSetConnected(t *testing.T) {
	SetConnected("metrics-test-conn", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(ActiveConnections.WithLabelValues("metrics-test-conn")))
	SetConnected("metrics-test-conn", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(ActiveConnections.WithLabelValues("metrics-test-conn")))
}

func TestThroughputTracker(t *testing.T) {
	tracker := NewThroughputTracker("metrics-test-table")
	tracker.Increment(100)
	time.Sleep(10 * time.Millisecond)

	got := tracker.GetAndReset()
	assert.Greater(t, got, 0.0)
	assert.Equal(t, got, testutil.ToFloat64(Throughput.WithLabelValues("metrics-test-table")))
}

func TestTimer(t *testing.T) {
	timer := NewTimer()
	time.Sleep(time.Millisecond)
	assert.GreaterOrEqual(t, timer.Stop(), time.Millisecond)
}
