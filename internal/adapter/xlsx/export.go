// Package xlsx exports reports as Excel workbooks.
package xlsx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/case-trend-etl/internal/domain"
)

const (
	rankingSheet = "Ranking"
	stateSheet   = "State"
)

var seriesHeader = []any{
	"Day", "Date", "Cases", "Deaths", "Recovered", "New cases", "7-day mean",
	"Mortality %", "Recovery %", "Active %",
	"Doubling time", "R (window)", "R (interpolated)", "Accelerating",
}

// Export writes report as a workbook with a ranking sheet, a state sheet, and
// one sheet per region named by region ID.
func Export(report *domain.Report, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), rankingSheet); err != nil {
		return fmt.Errorf("rename first sheet: %w", err)
	}
	if err := writeRanking(f, report.Ranking); err != nil {
		return err
	}
	if err := writeSeries(f, stateSheet, report.State); err != nil {
		return err
	}
	for _, s := range report.Regions {
		if err := writeSeries(f, s.RegionID, s); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRanking(f *excelize.File, r domain.Ranking) error {
	rows := [][]any{{"Group", "Rank", "Region ID", "Region", "Doubling time", "Day", "Date"}}
	for i, e := range r.Lowest {
		rows = append(rows, []any{"lowest", i + 1, e.RegionID, e.Name, e.DoublingTime, e.Day, e.Label})
	}
	for i, e := range r.Highest {
		rows = append(rows, []any{"highest", i + 1, e.RegionID, e.Name, e.DoublingTime, e.Day, e.Label})
	}
	return setRows(f, rankingSheet, rows)
}

func writeSeries(f *excelize.File, sheet string, s domain.RegionSummary) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}

	byDay := make(map[int]domain.Indicator, len(s.Indicators))
	for _, ind := range s.Indicators {
		byDay[ind.Day] = ind
	}

	rows := [][]any{seriesHeader}
	for i, p := range s.Series {
		row := make([]any, len(seriesHeader))
		row[1] = p.Date.Format("2006-01-02")
		row[2], row[3], row[4] = p.Cases, p.Deaths, p.Recovered
		if i < len(s.Days) {
			row[0] = s.Days[i]
		}
		if i < len(s.Rates) {
			r := s.Rates[i]
			row[5] = r.NewCases
			row[6], row[7], row[8], row[9] = value(r.SmoothedNewCases), value(r.Mortality), value(r.Recovery), value(r.Active)
		}
		if i < len(s.InterpolatedR) {
			row[12] = value(s.InterpolatedR[i])
		}
		if i < len(s.Days) {
			if ind, ok := byDay[s.Days[i]]; ok {
				row[10], row[11], row[13] = value(ind.DoublingTime), value(ind.ReproductionProxy), ind.Accelerating
			}
		}
		rows = append(rows, row)
	}
	return setRows(f, sheet, rows)
}

func setRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// value unwraps optional numbers; undefined values become empty cells.
func value(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// File is a sink that exports every published report to one path,
// overwriting the previous workbook.
type File struct {
	path   string
	logger *slog.Logger
}

// NewFile creates a File sink writing to path.
func NewFile(path string, logger *slog.Logger) *File {
	return &File{path: path, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (x *File) Name() string { return "xlsx" }

// Publish writes report to the configured path.
func (x *File) Publish(_ context.Context, report *domain.Report) error {
	out, err := os.Create(x.path)
	if err != nil {
		return fmt.Errorf("create workbook %s: %w", x.path, err)
	}
	if err := Export(report, out); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close workbook %s: %w", x.path, err)
	}
	x.logger.Info("workbook written", "path", x.path, "sheets", len(report.Regions)+2)
	return nil
}
