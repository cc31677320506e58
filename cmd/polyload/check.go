package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/table"
	"github.com/jedib0t/go-pretty/text"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/polyload/pkg/config"
	"github.com/ajitpratap0/polyload/pkg/sink"
)

// health is the connection test result of one sink.
type health struct {
	Name    string
	Type    string
	Healthy bool
	Elapsed time.Duration
}

func newCheckCmd(flags *globalFlags) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Test the connection to every configured sink",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			results, err := checkSinks(ctx, cfg, timeout)
			if err != nil {
				return err
			}
			writeHealth(cmd.OutOrStdout(), results)
			for _, r := range results {
				if !r.Healthy {
					return fmt.Errorf("sink %s is unhealthy", r.Name)
				}
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Timeout for each connection test")
	return cmd
}

// checkSinks probes every enabled sink in parallel and closes them afterwards.
func checkSinks(ctx context.Context, cfg *config.Config, timeout time.Duration) ([]health, error) {
	enabled := cfg.EnabledSinks()
	sinks, err := sink.Build(enabled)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sink.CloseAll(context.Background(), sinks) }()

	results := make([]health, len(sinks))
	var g errgroup.Group
	for i, s := range sinks {
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			start := time.Now()
			ok := s.TestConnection(probeCtx)
			results[i] = health{Name: s.Name(), Type: enabled[i].Type, Healthy: ok, Elapsed: time.Since(start)}
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

func writeHealth(w io.Writer, results []health) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.Style().Format.Header = text.FormatDefault
	t.AppendHeader(table.Row{"sink", "type", "status", "elapsed"})
	for _, r := range results {
		status := "ok"
		if !r.Healthy {
			status = "unreachable"
		}
		t.AppendRow(table.Row{r.Name, r.Type, status, r.Elapsed.Round(time.Millisecond)})
	}
	t.Render()
}
