package csvsource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/case-trend-etl/internal/domain"
)

// Reader loads notification rows from a delimited file.
type Reader struct {
	path   string
	layout Layout
	logger *slog.Logger
}

// NewReader creates a Reader for the dataset at path.
func NewReader(path string, layout Layout, logger *slog.Logger) *Reader {
	return &Reader{path: path, layout: layout, logger: logger}
}

// Load implements the pipeline source.
func (r *Reader) Load(ctx context.Context) ([]domain.RawReport, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, &domain.ConfigError{Msg: "open dataset " + r.path, Err: err}
	}
	defer f.Close()

	reports, err := Parse(ctx, f, r.layout)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", r.path, err)
	}
	rejected := 0
	for _, rep := range reports {
		if rep.Malformed != "" {
			rejected++
			r.logger.Warn("row rejected", "row", rep.Row, "region_id", rep.RegionID, "reason", rep.Malformed)
		}
	}
	r.logger.Info("dataset loaded", "path", r.path, "rows", len(reports), "rejected", rejected)
	return reports, nil
}

type columns struct {
	regionID, regionName, date, cases, deaths, recovered column
}

// Parse reads every data row of src according to layout. Row numbers in the
// returned reports are 1-based source lines. A row that cannot be parsed is
// still returned, with Malformed set and whatever identifying cells could be
// read, so the failure stays with its region. Only layout problems and I/O
// errors fail the whole parse.
func Parse(ctx context.Context, src io.Reader, layout Layout) ([]domain.RawReport, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	delim, _ := layout.delimiter()

	cr := csv.NewReader(src)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	for i := 0; i < layout.SkipRows; i++ {
		if _, err := cr.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, fmt.Errorf("skip preamble: %w", err)
		}
	}

	var header []string
	if layout.Header {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		header = append([]string(nil), rec...)
		if len(header) > 0 {
			header[0] = trimBOM(header[0])
		}
	}

	cols, err := resolveColumns(layout.Columns, header)
	if err != nil {
		return nil, err
	}

	var out []domain.RawReport
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				out = append(out, domain.RawReport{Row: pe.StartLine, Malformed: pe.Err.Error()})
				continue
			}
			return nil, fmt.Errorf("read row: %w", err)
		}
		line, _ := cr.FieldPos(0)

		raw, err := cols.parse(rec, line)
		if err != nil {
			raw = domain.RawReport{
				Row:        line,
				RegionID:   raw.RegionID,
				RegionName: raw.RegionName,
				Date:       raw.Date,
				Malformed:  reason(err),
			}
		}
		out = append(out, raw)
	}
}

func resolveColumns(c Columns, header []string) (columns, error) {
	var cols columns
	var err error
	fields := []struct {
		name string
		sel  string
		dst  *column
	}{
		{"region_id", c.RegionID, &cols.regionID},
		{"region_name", c.RegionName, &cols.regionName},
		{"date", c.Date, &cols.date},
		{"cases", c.Cases, &cols.cases},
		{"deaths", c.Deaths, &cols.deaths},
		{"recovered", c.Recovered, &cols.recovered},
	}
	for _, f := range fields {
		if *f.dst, err = resolve(f.name, f.sel, header); err != nil {
			return columns{}, err
		}
	}
	return cols, nil
}

func (c columns) parse(rec []string, line int) (domain.RawReport, error) {
	raw := domain.RawReport{Row: line}

	var ok bool
	if raw.RegionID, ok = c.regionID.at(rec); !ok {
		return raw, missing(line, c.regionID)
	}
	if c.regionName.set {
		raw.RegionName, _ = c.regionName.at(rec)
	}
	if raw.Date, ok = c.date.at(rec); !ok {
		return raw, missing(line, c.date)
	}

	var err error
	if raw.Cases, err = intCell(rec, line, c.cases); err != nil {
		return raw, err
	}
	if raw.Deaths, err = intCell(rec, line, c.deaths); err != nil {
		return raw, err
	}
	if c.recovered.set {
		if raw.Recovered, err = intCell(rec, line, c.recovered); err != nil {
			return raw, err
		}
		raw.HasRecovered = true
	}
	return raw, nil
}

func intCell(rec []string, line int, c column) (int, error) {
	cell, ok := c.at(rec)
	if !ok {
		return 0, missing(line, c)
	}
	n, err := strconv.Atoi(cell)
	if err != nil {
		return 0, &domain.DataError{Row: line, Msg: fmt.Sprintf("parse %s %q", c.name, cell), Err: err}
	}
	return n, nil
}

func missing(line int, c column) error {
	return &domain.DataError{Row: line, Msg: fmt.Sprintf("row has no column %d for %s", c.index, c.name)}
}

// reason strips the row prefix from a cell error; the row number travels
// with the report.
func reason(err error) string {
	var de *domain.DataError
	if errors.As(err, &de) {
		return de.Msg
	}
	return err.Error()
}

func trimBOM(s string) string {
	return strings.TrimPrefix(s, "\uFEFF")
}
