// Package pipeline drives a polyload run: it walks the input files in
// order, streams each one as batches and hands every batch to the fan-out
// coordinator.
//
// # Ordering
//
// Files are processed one after another and so are the batches of a file:
// batch N+1 is read only after every sink has returned for batch N. The
// only parallelism of a run is inside a single fan-out.
//
// # Basic Usage
//
//	coord := fanout.New(sinks, fanout.WithTimeout(30*time.Second))
//	orch := pipeline.New(coord, pipeline.Config{BatchSize: 1000}, logger)
//	summary, err := orch.Run(ctx, files)
//
// Sink failures never stop a run; they are collected in the Summary. A
// malformed row stops the run unless the policy is
// config.OnParseErrorContinue, in which case the file is recorded and the
// run moves on. Batches already dispatched stay written either way.
package pipeline

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/polyload/pkg/config"
	"github.com/ajitpratap0/polyload/pkg/errors"
	"github.com/ajitpratap0/polyload/pkg/fanout"
	"github.com/ajitpratap0/polyload/pkg/logger"
	"github.com/ajitpratap0/polyload/pkg/metrics"
	"github.com/ajitpratap0/polyload/pkg/observability"
	"github.com/ajitpratap0/polyload/pkg/source"
)

// Config controls a run.
type Config struct {
	// BatchSize overrides Source.BatchSize when positive
	BatchSize int
	// ParseErrorPolicy is config.OnParseErrorAbort (default) or config.OnParseErrorContinue
	ParseErrorPolicy string
	// Source controls file parsing
	Source source.Options
	// RunID tags logs and the summary
	RunID string
}

// FromConfig derives the run configuration from the application config.
func FromConfig(cfg *config.Config, runID string) Config {
	opts := source.DefaultOptions()
	opts.BatchSize = cfg.BatchSize
	if cfg.Source.Delimiter != "" {
		opts.Delimiter = rune(cfg.Source.Delimiter[0])
	}
	opts.InferTypes = cfg.Source.InferTypes
	if cfg.Source.NullValues != nil {
		opts.NullValues = cfg.Source.NullValues
	}
	return Config{
		BatchSize:        cfg.BatchSize,
		ParseErrorPolicy: cfg.OnParseError,
		Source:           opts,
		RunID:            runID,
	}
}

// Orchestrator runs files through the coordinator.
type Orchestrator struct {
	coord  *fanout.Coordinator
	cfg    Config
	logger *zap.Logger
}

// New creates an orchestrator. A nil logger falls back to the global one.
func New(coord *fanout.Coordinator, cfg Config, l *zap.Logger) *Orchestrator {
	if l == nil {
		l = logger.Get()
	}
	if cfg.BatchSize > 0 {
		cfg.Source.BatchSize = cfg.BatchSize
	}
	if cfg.Source.BatchSize <= 0 {
		cfg.Source.BatchSize = source.DefaultBatchSize
	}
	if cfg.Source.Delimiter == 0 {
		cfg.Source.Delimiter = ','
	}
	if cfg.ParseErrorPolicy == "" {
		cfg.ParseErrorPolicy = config.OnParseErrorAbort
	}
	return &Orchestrator{
		coord:  coord,
		cfg:    cfg,
		logger: l.With(zap.String("component", "pipeline")),
	}
}

// Run processes files strictly in order. It returns the summary together
// with the error that stopped the run, if any: a parse error under the
// abort policy, a file that could not be opened, or ctx cancellation.
func (o *Orchestrator) Run(ctx context.Context, files []string) (*Summary, error) {
	if o.cfg.RunID != "" {
		ctx = logger.ContextWithRunID(ctx, o.cfg.RunID)
	}
	summary := newSummary(o.cfg.RunID)
	ctx, span := observability.StartSpan(ctx, "pipeline.run")

	o.logger.Info("starting run",
		zap.String("run_id", o.cfg.RunID),
		zap.Int("files", len(files)),
		zap.Int("sinks", len(o.coord.Sinks())),
		zap.Int("batch_size", o.cfg.Source.BatchSize),
		zap.Int("concurrency", o.coord.Concurrency()),
		zap.String("on_parse_error", o.cfg.ParseErrorPolicy))

	var runErr error
	for _, path := range files {
		fs, err := o.ProcessFile(ctx, path)
		if fs != nil {
			summary.Files = append(summary.Files, fs)
		}
		if err == nil {
			continue
		}

		var pe *errors.ParseError
		if errors.As(err, &pe) {
			summary.ParseErrors = append(summary.ParseErrors, ParseFailure{
				File:  pe.File,
				Line:  pe.Line,
				Error: pe.Error(),
			})
			if o.cfg.ParseErrorPolicy == config.OnParseErrorContinue {
				o.logger.Warn("skipping rest of malformed file", zap.String("file", path), zap.Error(err))
				continue
			}
		}
		runErr = err
		summary.Aborted = true
		break
	}

	summary.finish()
	if mem, err := metrics.SampleProcessMemory(); err == nil {
		summary.Memory = mem
	} else {
		o.logger.Debug("process memory unavailable", zap.Error(err))
	}
	observability.EndSpan(span, runErr)
	summary.Log(o.logger)
	return summary, runErr
}

// ProcessFile streams one file through the coordinator. The returned
// FileSummary covers every batch dispatched before an error, if any.
func (o *Orchestrator) ProcessFile(ctx context.Context, path string) (fs *FileSummary, err error) {
	table := source.TableName(path)
	ctx = logger.ContextWithTable(ctx, table)
	ctx, span := observability.StartSpan(ctx, "pipeline.file",
		observability.AttrFile.String(path),
		observability.AttrTable.String(table),
	)
	defer func() { observability.EndSpan(span, err) }()

	start := time.Now()
	log := o.logger.With(zap.String("file", path), zap.String("table", table))

	r, err := source.Open(path, o.cfg.Source)
	if err != nil {
		log.Error("failed to open source", zap.Error(err))
		return &FileSummary{Path: path, Table: table, Sinks: map[string]*SinkStats{}, ParseError: parseErrorText(err)}, err
	}
	defer func() { _ = r.Close() }()

	targets := o.coord.Targets(table)
	fs = newFileSummary(path, table, targets)
	tracker := metrics.NewThroughputTracker(table)
	log.Info("processing file", zap.Any("targets", targets))

	defer func() {
		fs.Duration = time.Since(start)
		log.Info("file processed",
			zap.Int("batches", fs.Batches),
			zap.Int("records", fs.Records),
			zap.Int("failures", len(fs.Failures)),
			zap.Float64("throughput_rps", tracker.GetAndReset()),
			zap.Duration("duration", fs.Duration))
	}()

	for {
		if err := ctx.Err(); err != nil {
			return fs, err
		}
		batch, err := r.Next(ctx)
		if err == io.EOF {
			return fs, nil
		}
		if err != nil {
			fs.ParseError = parseErrorText(err)
			return fs, err
		}

		report := o.coord.Dispatch(ctx, batch, targets)
		fs.add(report)
		tracker.Increment(int64(batch.Size()))

		for _, f := range report.Failed() {
			log.Warn("batch failed in sink",
				zap.String("sink", f.Sink),
				zap.String("target", f.Target),
				zap.Int("batch", batch.Seq),
				zap.Error(f.Err))
		}
	}
}

func parseErrorText(err error) string {
	var pe *errors.ParseError
	if errors.As(err, &pe) {
		return pe.Error()
	}
	return ""
}
