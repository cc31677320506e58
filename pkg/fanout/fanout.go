// Package fanout hands one batch to every sink concurrently and collects a
// per-sink outcome.
//
// A failure in one sink never affects the others: tasks do not share a
// cancellation scope and Dispatch always waits for every sink to return.
// There is no rollback or retry; a batch that failed in one sink and
// succeeded in the others stays written where it succeeded.
package fanout

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/polyload/pkg/errors"
	"github.com/ajitpratap0/polyload/pkg/logger"
	"github.com/ajitpratap0/polyload/pkg/metrics"
	"github.com/ajitpratap0/polyload/pkg/models"
	"github.com/ajitpratap0/polyload/pkg/observability"
	"github.com/ajitpratap0/polyload/pkg/sink"
)

// Coordinator dispatches batches to a fixed set of sinks.
type Coordinator struct {
	sinks       []sink.Sink
	concurrency int
	timeout     time.Duration
	logger      *zap.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithConcurrency bounds the number of sinks written in parallel. Values
// below one mean one task per sink.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		c.concurrency = n
	}
}

// WithTimeout bounds each sink call. Zero disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// New creates a coordinator over sinks. The order of sinks is the order of
// outcomes in every Report.
func New(sinks []sink.Sink, opts ...Option) *Coordinator {
	c := &Coordinator{
		sinks:  sinks,
		logger: logger.Get(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.concurrency <= 0 {
		c.concurrency = len(sinks)
	}
	c.logger = c.logger.With(zap.String("component", "fanout"))
	return c
}

// Sinks returns the sinks in dispatch order.
func (c *Coordinator) Sinks() []sink.Sink {
	return c.sinks
}

// Concurrency returns the effective parallelism bound.
func (c *Coordinator) Concurrency() int {
	return c.concurrency
}

// Targets resolves where every sink writes table, keyed by sink name.
func (c *Coordinator) Targets(table string) map[string]string {
	targets := make(map[string]string, len(c.sinks))
	for _, s := range c.sinks {
		targets[s.Name()] = sink.Target(s, table)
	}
	return targets
}

// Outcome is the result of one sink call.
type Outcome struct {
	Sink     string
	Target   string
	Records  int
	Err      error
	Duration time.Duration
}

// OK reports whether the sink accepted the batch.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Report holds one outcome per sink in sink order.
type Report struct {
	Table    string
	Seq      int
	Records  int
	Outcomes []Outcome
	Duration time.Duration
}

// Failed returns the outcomes that carry an error.
func (r *Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Succeeded returns the number of sinks that accepted the batch.
func (r *Report) Succeeded() int {
	return len(r.Outcomes) - len(r.Failed())
}

// Err joins every failure, or returns nil when all sinks succeeded.
func (r *Report) Err() error {
	var errs []error
	for _, o := range r.Failed() {
		errs = append(errs, o.Err)
	}
	return errors.Join(errs...)
}

// Dispatch writes batch to every sink and waits for all of them. targets
// maps sink name to target as returned by Targets; a missing entry is
// resolved on the spot. Dispatch itself never fails: every sink error,
// including a panic, ends up in its Outcome.
func (c *Coordinator) Dispatch(ctx context.Context, batch *models.Batch, targets map[string]string) *Report {
	start := time.Now()
	report := &Report{
		Table:    batch.Table,
		Seq:      batch.Seq,
		Records:  batch.Size(),
		Outcomes: make([]Outcome, len(c.sinks)),
	}

	ctx, span := observability.StartSpan(ctx, "fanout.dispatch",
		observability.AttrTable.String(batch.Table),
		observability.AttrBatch.Int(batch.Seq),
		observability.AttrRecords.Int(batch.Size()),
	)

	// No errgroup.WithContext: a failing sink must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, s := range c.sinks {
		target, ok := targets[s.Name()]
		if !ok {
			target = sink.Target(s, batch.Table)
		}
		g.Go(func() error {
			report.Outcomes[i] = c.insert(ctx, s, target, batch)
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(start)
	failed := report.Failed()
	observability.EndSpan(span, report.Err())

	c.logger.Debug("batch dispatched",
		zap.String("table", batch.Table),
		zap.Int("batch", batch.Seq),
		zap.Int("records", batch.Size()),
		zap.Int("succeeded", len(report.Outcomes)-len(failed)),
		zap.Int("failed", len(failed)),
		zap.Duration("duration", report.Duration))
	return report
}

// insert runs one sink call with its own timeout, span and panic guard.
func (c *Coordinator) insert(ctx context.Context, s sink.Sink, target string, batch *models.Batch) (out Outcome) {
	out = Outcome{Sink: s.Name(), Target: target, Records: batch.Size()}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	ctx = logger.ContextWithSink(logger.ContextWithTable(ctx, batch.Table), s.Name())
	ctx, span := observability.StartSpan(ctx, "sink.insert",
		observability.AttrSink.String(s.Name()),
		observability.AttrTarget.String(target),
		observability.AttrBatch.Int(batch.Seq),
		observability.AttrRecords.Int(batch.Size()),
	)

	timer := metrics.NewTimer()
	defer func() {
		if r := recover(); r != nil {
			out.Err = errors.NewSinkError(s.Name(), target, errors.ErrorTypeInsert,
				fmt.Errorf("panic: %v", r))
		}
		out.Duration = timer.Stop()
		metrics.ObserveInsert(s.Name(), batch.Table, out.Records, out.Duration, out.Err)
		observability.EndSpan(span, out.Err)
		if out.Err != nil {
			logger.WithContext(ctx).Error("sink insert failed",
				zap.String("target", target),
				zap.Int("batch", batch.Seq),
				zap.Int("records", out.Records),
				zap.Bool("retryable", errors.IsRetryable(out.Err)),
				zap.Error(out.Err))
		}
	}()

	if err := s.InsertBatch(ctx, target, batch.Records); err != nil {
		var se *errors.SinkError
		if !errors.As(err, &se) {
			err = errors.NewSinkError(s.Name(), target, errors.ErrorTypeInsert, err)
		}
		out.Err = err
	}
	return out
}
