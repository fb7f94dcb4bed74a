package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/case-trend-etl/internal/adapter/http"
	"github.com/couchcryptid/case-trend-etl/internal/observability"
)

func newServeCmd(a *app) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Analyze, then serve the latest report over HTTP until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.logger = observability.NewLogger(os.Stdout, a.cfg)
			logger := a.logger
			if !cmd.Flags().Changed("interval") {
				interval = a.cfg.RefreshInterval
			}

			metrics := observability.NewMetrics()
			sinks, cleanup := outputSinks(a.cfg, a.cfg.XLSXOut, logger)
			defer cleanup()

			p, err := buildPipeline(a.cfg, sinks, logger, metrics)
			if err != nil {
				return err
			}
			srv := httpadapter.NewServer(a.cfg.HTTPAddr, p, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Start HTTP server.
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server error", "error", err)
					stop()
				}
			}()

			// Start analysis pipeline.
			runErr := make(chan error, 1)
			go func() { runErr <- p.Run(ctx, interval) }()

			var pipelineErr error
			select {
			case <-ctx.Done():
			case pipelineErr = <-runErr:
				if pipelineErr != nil {
					logger.Error("pipeline error", "error", pipelineErr)
				} else {
					<-ctx.Done()
				}
			}
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}

			logger.Info("shutdown complete")
			return pipelineErr
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "re-analyze the dataset at this period (default REFRESH_INTERVAL, 0 = once)")
	return cmd
}
