package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/polyload/internal/query"
	"github.com/ajitpratap0/polyload/pkg/logger"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only query API over the relational store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Query.Listen = listen
			}
			log := logger.Get().With(zap.String("component", "polyload-cli"))
			stop, err := startTelemetry(cfg, log)
			if err != nil {
				return err
			}
			defer stop()

			ctx, cancel := signalContext()
			defer cancel()

			pool, err := query.OpenPool(ctx, cfg.Query.PostgresURI)
			if err != nil {
				return err
			}
			defer pool.Close()

			return query.NewServer(query.NewPGRepository(pool), cfg.Query.Listen).Start(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":8000", "Listen address (overrides query.listen)")
	return cmd
}
