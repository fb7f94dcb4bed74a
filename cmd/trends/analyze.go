package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/case-trend-etl/internal/adapter/console"
	"github.com/couchcryptid/case-trend-etl/internal/observability"
	"github.com/couchcryptid/case-trend-etl/internal/pipeline"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		xlsxPath string
		noColor  bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run one analysis and print the results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.logger = observability.NewLogger(cmd.ErrOrStderr(), a.cfg)
			if xlsxPath == "" {
				xlsxPath = a.cfg.XLSXOut
			}

			_, noColorEnv := os.LookupEnv("NO_COLOR")
			printer := console.NewPrinter(cmd.OutOrStdout(), !noColor && !noColorEnv)

			sinks, cleanup := outputSinks(a.cfg, xlsxPath, a.logger)
			defer cleanup()

			p, err := buildPipeline(a.cfg, append([]pipeline.Sink{printer}, sinks...), a.logger, observability.NewUnregisteredMetrics())
			if err != nil {
				return err
			}
			_, err = p.RunOnce(cmd.Context())
			return err
		},
	}

	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "write an Excel workbook to this path (default XLSX_OUT)")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	return cmd
}
