// Package metrics provides Prometheus instrumentation for polyload.
//
// Every vector is registered on the default registry through promauto, so
// exposing them only requires mounting promhttp.Handler.
//
// # Basic Usage
//
//	timer := metrics.NewTimer()
//	err := s.InsertBatch(ctx, target, records)
//	metrics.ObserveInsert(s.Name(), table, len(records), timer.Stop(), err)
//
// Labels are kept low-cardinality: sink names and table names come from
// configuration and file discovery, never from record values.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

var (
	// SinkBatches counts batch insert calls per sink.
	// Labels: sink, table, status (success/failure)
	SinkBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyload_sink_batches_total",
			Help: "Total number of batch insert calls per sink",
		},
		[]string{"sink", "table", "status"},
	)

	// SinkRecords counts records handed to each sink.
	// Labels: sink, table, status (success/failure)
	SinkRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyload_sink_records_total",
			Help: "Total number of records handed to each sink",
		},
		[]string{"sink", "table", "status"},
	)

	// InsertLatency tracks the distribution of batch insert latencies in seconds.
	// Labels: sink
	InsertLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "polyload_insert_latency_seconds",
			Help: "Batch insert latency in seconds",
			Buckets: []float64{
				0.001, // 1ms - local columnar stores
				0.01,  // 10ms
				0.05,
				0.1, // 100ms - typical relational batch
				0.5,
				1,
				5,
				30, // hung sink
			},
		},
		[]string{"sink"},
	)

	// SourceBatches counts batches produced by the source reader.
	SourceBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyload_source_batches_total",
			Help: "Total number of batches read from source files",
		},
		[]string{"table"},
	)

	// SourceRecords counts rows read from source files.
	SourceRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyload_source_records_total",
			Help: "Total number of rows read from source files",
		},
		[]string{"table"},
	)

	// ParseErrors counts malformed rows.
	ParseErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyload_parse_errors_total",
			Help: "Total number of malformed source rows",
		},
		[]string{"table"},
	)

	// ActiveConnections is 1 while a sink holds an open connection.
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "polyload_active_connections",
			Help: "Open connections per sink",
		},
		[]string{"sink"},
	)

	// Throughput tracks records per second while a table is loading.
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "polyload_throughput_records_per_second",
			Help: "Current throughput in records per second",
		},
		[]string{"table"},
	)

	// ProcessMemory tracks the resident set size of the process.
	ProcessMemory = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "polyload_process_resident_bytes",
			Help: "Resident set size of the polyload process in bytes",
		},
	)
)

// ObserveInsert records one sink insert call.
func ObserveInsert(sink, table string, records int, d time.Duration, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	SinkBatches.WithLabelValues(sink, table, status).Inc()
	SinkRecords.WithLabelValues(sink, table, status).Add(float64(records))
	InsertLatency.WithLabelValues(sink).Observe(d.Seconds())
}

// SetConnected flips the connection gauge for a sink.
func SetConnected(sink string, connected bool) {
	v := 0.0
	if connected {
		v = 1
	}
	ActiveConnections.WithLabelValues(sink).Set(v)
}

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed duration since creation. It can be called
// multiple times.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks throughput (records per second) for one table.
// Thread-safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64
	lastReset time.Time
	table     string
}

// NewThroughputTracker creates a new throughput tracker for a table.
func NewThroughputTracker(table string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset: time.Now(),
		table:     table,
	}
}

// Increment adds n to the record count. Safe for concurrent use.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset calculates the current throughput (records/second),
// updates the Prometheus gauge, resets the counter, and returns
// the calculated throughput.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed

	t.count = 0
	t.lastReset = time.Now()

	Throughput.WithLabelValues(t.table).Set(throughput)

	return throughput
}
