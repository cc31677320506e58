package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/polyload/internal/pipeline"
	"github.com/ajitpratap0/polyload/pkg/config"
	"github.com/ajitpratap0/polyload/pkg/dataset"
	"github.com/ajitpratap0/polyload/pkg/fanout"
	"github.com/ajitpratap0/polyload/pkg/logger"
	"github.com/ajitpratap0/polyload/pkg/sink"
	"github.com/ajitpratap0/polyload/pkg/source"
)

// runFlags override configuration values for one run.
type runFlags struct {
	dir          string
	batchSize    int
	concurrency  int
	timeout      time.Duration
	onParseError string
	download     bool
	summary      string
}

func newRunCmd(flags *globalFlags) *cobra.Command {
	rf := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run [files...]",
		Short: "Load every CSV file of the download directory into all sinks",
		Long: `Load CSV files into all configured sinks. Without arguments every file matching
source.patterns in download_dir is loaded, in name order.

Example:
  polyload run --config polyload.yaml --batch-size 500 --summary summary.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			rf.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runPipeline(cmd, cfg, rf, args)
		},
	}

	cmd.Flags().StringVarP(&rf.dir, "dir", "d", "", "Download directory to scan (overrides download_dir)")
	cmd.Flags().IntVar(&rf.batchSize, "batch-size", 0, "Records per batch (overrides batch_size)")
	cmd.Flags().IntVar(&rf.concurrency, "concurrency", 0, "Parallel sink calls per batch, 0 means one per sink")
	cmd.Flags().DurationVar(&rf.timeout, "sink-timeout", 0, "Timeout for every sink call, 0 means none")
	cmd.Flags().StringVar(&rf.onParseError, "on-parse-error", "", "abort or continue when a row is malformed")
	cmd.Flags().BoolVar(&rf.download, "download", false, "Fetch the dataset first when the directory has no CSV files")
	cmd.Flags().StringVar(&rf.summary, "summary", "", "Write the run summary as JSON to this file (- for stdout)")
	return cmd
}

// apply copies explicitly set flags onto cfg.
func (rf *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("dir") {
		cfg.DownloadDir = rf.dir
	}
	if cmd.Flags().Changed("batch-size") {
		cfg.BatchSize = rf.batchSize
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency = rf.concurrency
	}
	if cmd.Flags().Changed("sink-timeout") {
		cfg.SinkTimeout = rf.timeout
	}
	if cmd.Flags().Changed("on-parse-error") {
		cfg.OnParseError = rf.onParseError
	}
}

func runPipeline(cmd *cobra.Command, cfg *config.Config, rf *runFlags, files []string) error {
	runID := uuid.NewString()
	log := logger.Get().With(zap.String("component", "polyload-cli"), zap.String("run_id", runID))

	stop, err := startTelemetry(cfg, log)
	if err != nil {
		return err
	}
	defer stop()

	ctx, cancel := signalContext()
	defer cancel()
	ctx = logger.ContextWithRunID(ctx, runID)

	if rf.download {
		if err := ensureDataset(ctx, cfg); err != nil {
			return err
		}
	}

	if len(files) == 0 {
		files, err = source.Discover(cfg.DownloadDir, cfg.Source.Patterns...)
		if err != nil {
			return err
		}
	}
	if len(files) == 0 {
		log.Warn("no input files found", zap.String("dir", cfg.DownloadDir))
		return nil
	}

	sinks, err := sink.Build(cfg.Sinks)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := sink.CloseAll(closeCtx, sinks); err != nil {
			log.Warn("failed to close sinks", zap.Error(err))
		}
	}()

	coord := fanout.New(sinks,
		fanout.WithConcurrency(cfg.EffectiveConcurrency(len(sinks))),
		fanout.WithTimeout(cfg.SinkTimeout),
		fanout.WithLogger(log),
	)
	orch := pipeline.New(coord, pipeline.FromConfig(cfg, runID), log)

	summary, runErr := orch.Run(ctx, files)
	if rf.summary != "" && summary != nil {
		if err := writeSummary(cmd, rf.summary, summary); err != nil {
			log.Error("failed to write summary", zap.Error(err))
		}
	}
	if runErr != nil {
		return fmt.Errorf("run %s stopped: %w", runID, runErr)
	}
	return nil
}

func writeSummary(cmd *cobra.Command, path string, s *pipeline.Summary) error {
	if path == "-" {
		return s.WriteJSON(cmd.OutOrStdout())
	}
	f, err := os.Create(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return err
	}
	if err := s.WriteJSON(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func ensureDataset(ctx context.Context, cfg *config.Config) error {
	ok, err := dataset.HasCSV(cfg.DownloadDir)
	if err != nil || ok {
		return err
	}
	creds, err := dataset.CredentialsFromEnv()
	if err != nil {
		return err
	}
	_, err = newDownloader(cfg, creds).Ensure(ctx, cfg.DownloadDir, cfg.Dataset.Ref)
	return err
}

func newDownloader(cfg *config.Config, creds dataset.Credentials) *dataset.Downloader {
	var opts []dataset.Option
	if cfg.Dataset.URL != "" {
		opts = append(opts, dataset.WithBaseURL(cfg.Dataset.URL))
	}
	return dataset.NewDownloader(creds, opts...)
}
