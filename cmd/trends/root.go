package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/case-trend-etl/internal/config"
)

// app carries the state shared by all subcommands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "trends",
		Short: "Regional case trend analysis",
		Long: `trends reads a case notification dataset, aggregates it per region and
for the whole state, and estimates doubling times and reproduction numbers
from log-linear fits over sliding eight-day windows.

Example usage:
  trends analyze                  # print the ranking and region overview
  trends analyze --xlsx out.xlsx  # also export a workbook
  trends serve                    # analyze, then serve results over HTTP`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	root.AddCommand(newAnalyzeCmd(a), newServeCmd(a))
	return root
}
