// Package console renders a report as terminal tables.
package console

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/couchcryptid/case-trend-etl/internal/domain"
)

// Printer writes the textual report summary. It implements pipeline.Sink.
type Printer struct {
	out     io.Writer
	alert   *color.Color
	calm    *color.Color
	warn    *color.Color
	heading *color.Color
}

// NewPrinter creates a Printer writing to w. Colors are emitted only when
// useColors is set, regardless of whether w is a terminal.
func NewPrinter(w io.Writer, useColors bool) *Printer {
	p := &Printer{
		out:     w,
		alert:   color.New(color.FgRed, color.Bold),
		calm:    color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		heading: color.New(color.FgWhite, color.Bold),
	}
	for _, c := range []*color.Color{p.alert, p.calm, p.warn, p.heading} {
		if useColors {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Name identifies the sink in logs and metrics.
func (p *Printer) Name() string { return "console" }

// Publish prints report.
func (p *Printer) Publish(_ context.Context, report *domain.Report) error {
	return p.Print(report)
}

// Print writes the state line, both ranking tables, the per-region overview,
// and any failed regions.
func (p *Printer) Print(report *domain.Report) error {
	p.heading.Fprintf(p.out, "%s: run %s at %s\n", report.StateName, report.RunID, report.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintln(p.out, stateLine(report.State))

	lowest := make(map[string]bool, len(report.Ranking.Lowest))
	for _, e := range report.Ranking.Lowest {
		lowest[e.RegionID] = true
	}

	p.heading.Fprintf(p.out, "\nLowest doubling times\n")
	if err := p.rankTable(report.Ranking.Lowest, p.alert); err != nil {
		return err
	}
	p.heading.Fprintf(p.out, "\nHighest doubling times\n")
	if err := p.rankTable(report.Ranking.Highest, p.calm); err != nil {
		return err
	}

	p.heading.Fprintf(p.out, "\nRegions\n")
	rows := make([][]string, 0, len(report.Regions))
	for _, s := range report.Regions {
		row := regionRow(s)
		if lowest[s.RegionID] {
			for i := range row {
				row[i] = p.alert.Sprint(row[i])
			}
		}
		rows = append(rows, row)
	}
	if err := render(p.out, []string{"ID", "Region", "Cases", "DT", "R", "Mortality %", "Recovery %", "Care"}, rows); err != nil {
		return err
	}

	if len(report.Failures) > 0 {
		p.warn.Fprintf(p.out, "\n%d regions skipped\n", len(report.Failures))
		for _, f := range report.Failures {
			p.warn.Fprintf(p.out, "  %s: %s\n", f.RegionID, f.Error)
		}
	}
	return nil
}

func (p *Printer) rankTable(entries []domain.RankEntry, c *color.Color) error {
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{
			strconv.Itoa(i + 1),
			e.Name,
			e.RegionID,
			c.Sprint(strconv.FormatFloat(e.DoublingTime, 'f', 2, 64)),
			e.Label,
		}
	}
	return render(p.out, []string{"#", "Region", "ID", "DT (days)", "Date"}, rows)
}

func stateLine(s domain.RegionSummary) string {
	ind, ok := s.LatestIndicator()
	if !ok {
		return "state: not enough data for a trend fit"
	}
	return fmt.Sprintf("state: %d cases on %s, doubling time %s days, R %s",
		ind.TotalCases, ind.Label, optional(ind.DoublingTime, 2), optional(ind.ReproductionProxy, 2))
}

func regionRow(s domain.RegionSummary) []string {
	row := []string{s.RegionID, s.Name, "-", "-", "-", "-", "-", "-"}
	if ind, ok := s.LatestIndicator(); ok {
		row[2] = strconv.Itoa(ind.TotalCases)
		row[3] = optional(ind.DoublingTime, 2)
		if ind.Accelerating {
			row[3] += " ↑"
		}
		row[4] = optional(ind.ReproductionProxy, 2)
	} else if n := len(s.Series); n > 0 {
		row[2] = strconv.Itoa(s.Series[n-1].Cases)
	}
	if rate, ok := s.LatestRate(); ok {
		row[5] = optional(rate.Mortality, 1)
		row[6] = optional(rate.Recovery, 1)
	}
	if n := len(s.CareDemand); n > 0 {
		row[7] = string(s.CareDemand[n-1].Level)
	}
	return row
}

func optional(v *float64, prec int) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}

func render(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.Off},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{Borders: tw.BorderNone}),
	)
	table.Header(header)
	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("fill table: %w", err)
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	return nil
}
