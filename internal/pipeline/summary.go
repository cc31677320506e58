package pipeline

import (
	"io"
	"sort"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/polyload/pkg/fanout"
	"github.com/ajitpratap0/polyload/pkg/metrics"
)

// Summary is the outcome of a run.
type Summary struct {
	RunID       string              `json:"run_id,omitempty"`
	StartedAt   time.Time           `json:"started_at"`
	Duration    time.Duration       `json:"duration_ns"`
	Files       []*FileSummary      `json:"files"`
	ParseErrors []ParseFailure      `json:"parse_errors,omitempty"`
	Aborted     bool                `json:"aborted"`
	Memory      metrics.MemoryUsage `json:"memory"`
}

// FileSummary is the outcome of one file.
type FileSummary struct {
	Path       string                `json:"path"`
	Table      string                `json:"table"`
	Batches    int                   `json:"batches"`
	Records    int                   `json:"records"`
	Sinks      map[string]*SinkStats `json:"sinks"`
	Failures   []Failure             `json:"failures,omitempty"`
	ParseError string                `json:"parse_error,omitempty"`
	Duration   time.Duration         `json:"duration_ns"`
}

// SinkStats counts what one sink accepted for one file.
type SinkStats struct {
	Target        string `json:"target"`
	Batches       int    `json:"batches"`
	Records       int    `json:"records"`
	FailedBatches int    `json:"failed_batches"`
	FailedRecords int    `json:"failed_records"`
}

// Failure is one sink that rejected one batch.
type Failure struct {
	Sink   string `json:"sink"`
	Table  string `json:"table"`
	Target string `json:"target"`
	Batch  int    `json:"batch"`
	Error  string `json:"error"`
}

// ParseFailure is a file that stopped on a malformed row.
type ParseFailure struct {
	File  string `json:"file"`
	Line  int    `json:"line"`
	Error string `json:"error"`
}

func newSummary(runID string) *Summary {
	return &Summary{RunID: runID, StartedAt: time.Now()}
}

func (s *Summary) finish() {
	s.Duration = time.Since(s.StartedAt)
}

// Failures returns every sink failure of the run in file then batch order.
func (s *Summary) Failures() []Failure {
	var out []Failure
	for _, f := range s.Files {
		out = append(out, f.Failures...)
	}
	return out
}

// Records returns the number of rows read across all files.
func (s *Summary) Records() int {
	n := 0
	for _, f := range s.Files {
		n += f.Records
	}
	return n
}

// Batches returns the number of batches dispatched across all files.
func (s *Summary) Batches() int {
	n := 0
	for _, f := range s.Files {
		n += f.Batches
	}
	return n
}

// OK reports whether every batch reached every sink and no file was cut short.
func (s *Summary) OK() bool {
	return !s.Aborted && len(s.ParseErrors) == 0 && len(s.Failures()) == 0
}

// WriteJSON writes the summary as indented JSON.
func (s *Summary) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// Log writes the summary to l, one line per sink failure.
func (s *Summary) Log(l *zap.Logger) {
	for _, f := range s.Failures() {
		l.Warn("sink failure",
			zap.String("sink", f.Sink),
			zap.String("table", f.Table),
			zap.String("target", f.Target),
			zap.Int("batch", f.Batch),
			zap.String("error", f.Error))
	}
	throughput := 0.0
	if secs := s.Duration.Seconds(); secs > 0 {
		throughput = float64(s.Records()) / secs
	}
	l.Info("run completed",
		zap.String("run_id", s.RunID),
		zap.Int("files", len(s.Files)),
		zap.Int("batches", s.Batches()),
		zap.Int("records", s.Records()),
		zap.Int("sink_failures", len(s.Failures())),
		zap.Int("parse_errors", len(s.ParseErrors)),
		zap.Bool("aborted", s.Aborted),
		zap.Float64("throughput_rps", throughput),
		zap.Uint64("rss_bytes", s.Memory.RSS),
		zap.Duration("duration", s.Duration))
}

func newFileSummary(path, table string, targets map[string]string) *FileSummary {
	fs := &FileSummary{
		Path:  path,
		Table: table,
		Sinks: make(map[string]*SinkStats, len(targets)),
	}
	for name, target := range targets {
		fs.Sinks[name] = &SinkStats{Target: target}
	}
	return fs
}

func (f *FileSummary) add(r *fanout.Report) {
	f.Batches++
	f.Records += r.Records
	for _, o := range r.Outcomes {
		st, ok := f.Sinks[o.Sink]
		if !ok {
			st = &SinkStats{Target: o.Target}
			f.Sinks[o.Sink] = st
		}
		if o.Err != nil {
			st.FailedBatches++
			st.FailedRecords += o.Records
			f.Failures = append(f.Failures, Failure{
				Sink:   o.Sink,
				Table:  r.Table,
				Target: o.Target,
				Batch:  r.Seq,
				Error:  o.Err.Error(),
			})
			continue
		}
		st.Batches++
		st.Records += o.Records
	}
}

// SinkNames returns the sinks of the file in name order.
func (f *FileSummary) SinkNames() []string {
	names := make([]string, 0, len(f.Sinks))
	for n := range f.Sinks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
