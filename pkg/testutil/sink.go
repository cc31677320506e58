package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/ajitpratap0/polyload/pkg/adapter"
	"github.com/ajitpratap0/polyload/pkg/errors"
	"github.com/ajitpratap0/polyload/pkg/models"
	"github.com/ajitpratap0/polyload/pkg/sink"
)

// Call is one InsertBatch invocation seen by a RecordingSink.
type Call struct {
	Target  string
	Records []*models.Record
	Start   time.Time
	End     time.Time
}

// RecordingSink is an in-memory sink that stores every record it receives
// and can be told to fail, block or panic.
type RecordingSink struct {
	*sink.Base

	// Fail makes every InsertBatch return an insert error wrapping it.
	Fail error
	// FailConnect makes Connect fail.
	FailConnect error
	// Delay is slept inside InsertBatch, honouring ctx.
	Delay time.Duration
	// Panic makes InsertBatch panic with this value when non-nil.
	Panic interface{}
	// Graph makes the sink address tables by label.
	Graph bool

	mu       sync.Mutex
	calls    []Call
	stored   map[string][]*models.Record
	connects int
	closed   bool
}

// NewRecordingSink creates a recording sink.
func NewRecordingSink(name string) *RecordingSink {
	return &RecordingSink{
		Base:   sink.NewBase(name, "recording"),
		stored: make(map[string][]*models.Record),
	}
}

// Target implements sink.TargetNamer when Graph is set.
func (s *RecordingSink) Target(table string) string {
	if s.Graph {
		return adapter.Label(table)
	}
	return table
}

// Connect implements sink.Sink.
func (s *RecordingSink) Connect(_ context.Context) error {
	s.mu.Lock()
	s.connects++
	s.mu.Unlock()
	if s.FailConnect != nil {
		return s.ConnectionError("", s.FailConnect)
	}
	if !s.IsConnected() {
		s.MarkConnected()
	}
	return nil
}

// InsertBatch implements sink.Sink.
func (s *RecordingSink) InsertBatch(ctx context.Context, target string, records []*models.Record) error {
	if err := s.Ensure(ctx, target, s.Connect); err != nil {
		return err
	}
	call := Call{Target: target, Records: records, Start: time.Now()}
	if s.Panic != nil {
		panic(s.Panic)
	}
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return s.InsertError(target, ctx.Err())
		}
	}
	call.End = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
	if s.Fail != nil {
		return s.InsertError(target, s.Fail)
	}
	s.stored[target] = append(s.stored[target], records...)
	return nil
}

// TestConnection implements sink.Sink.
func (s *RecordingSink) TestConnection(ctx context.Context) bool {
	return s.Probe(ctx, s.Connect, func(context.Context) error { return nil })
}

// Close implements sink.Sink.
func (s *RecordingSink) Close(_ context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.MarkDisconnected()
	return nil
}

// Calls returns a copy of the recorded invocations.
func (s *RecordingSink) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Stored returns the records successfully written to target.
func (s *RecordingSink) Stored(target string) []*models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.Record(nil), s.stored[target]...)
}

// Connects returns how many times Connect ran.
func (s *RecordingSink) Connects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

// Closed reports whether Close was called.
func (s *RecordingSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// IsInsertError reports whether err is an insert failure attributed to sinkName.
func IsInsertError(err error, sinkName string) bool {
	var se *errors.SinkError
	return errors.As(err, &se) && se.Sink == sinkName && se.Kind == errors.ErrorTypeInsert
}
