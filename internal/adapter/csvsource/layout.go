package csvsource

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/couchcryptid/case-trend-etl/internal/domain"
)

// Columns selects the source column of each field. A selector is either a
// header name or a zero-based index; negative indexes count from the end of
// the row, so "-1" is the last column. An empty Recovered selector marks a
// dataset without a recovery column.
type Columns struct {
	RegionID   string `mapstructure:"region_id"`
	RegionName string `mapstructure:"region_name"`
	Date       string `mapstructure:"date"`
	Cases      string `mapstructure:"cases"`
	Deaths     string `mapstructure:"deaths"`
	Recovered  string `mapstructure:"recovered"`
}

// Layout describes how a notification dataset is laid out on disk.
type Layout struct {
	Delimiter   string   `mapstructure:"delimiter"`
	Header      bool     `mapstructure:"header"`    // first row after SkipRows names the columns
	SkipRows    int      `mapstructure:"skip_rows"` // preamble rows before the header or data
	Columns     Columns  `mapstructure:"columns"`
	DateLayouts []string `mapstructure:"date_layouts"`
}

// DefaultLayout matches the RKI notification export: comma separated, one
// header row, region ID in column 9, name in 2, report date in 8, case and
// death deltas in 5 and 6, recovered delta in the last column.
func DefaultLayout() Layout {
	return Layout{
		Delimiter: ",",
		Header:    true,
		Columns: Columns{
			RegionID:   "9",
			RegionName: "2",
			Date:       "8",
			Cases:      "5",
			Deaths:     "6",
			Recovered:  "-1",
		},
		DateLayouts: append([]string(nil), domain.DefaultDateLayouts...),
	}
}

// Validate reports layout problems that make every row unreadable.
func (l Layout) Validate() error {
	if _, err := l.delimiter(); err != nil {
		return err
	}
	if l.SkipRows < 0 {
		return &domain.ConfigError{Msg: fmt.Sprintf("skip_rows must not be negative, got %d", l.SkipRows)}
	}
	required := map[string]string{
		"region_id": l.Columns.RegionID,
		"date":      l.Columns.Date,
		"cases":     l.Columns.Cases,
		"deaths":    l.Columns.Deaths,
	}
	for field, sel := range required {
		if strings.TrimSpace(sel) == "" {
			return &domain.ConfigError{Msg: fmt.Sprintf("column %s is required", field)}
		}
	}
	return nil
}

func (l Layout) delimiter() (rune, error) {
	switch d := []rune(l.Delimiter); {
	case len(d) == 0:
		return ',', nil
	case len(d) == 1:
		return d[0], nil
	case l.Delimiter == `\t`:
		return '\t', nil
	default:
		return 0, &domain.ConfigError{Msg: fmt.Sprintf("delimiter must be a single character, got %q", l.Delimiter)}
	}
}

// column is a resolved column selector.
type column struct {
	name  string
	index int
	set   bool
}

// at returns the cell of record selected by c.
func (c column) at(record []string) (string, bool) {
	i := c.index
	if i < 0 {
		i += len(record)
	}
	if i < 0 || i >= len(record) {
		return "", false
	}
	return strings.TrimSpace(record[i]), true
}

// resolve turns a selector into a column, looking names up in header.
func resolve(field, sel string, header []string) (column, error) {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		return column{}, nil
	}
	if i, err := strconv.Atoi(sel); err == nil {
		return column{name: field, index: i, set: true}, nil
	}
	if header == nil {
		return column{}, &domain.ConfigError{Msg: fmt.Sprintf("column %s selects %q by name but the layout has no header", field, sel)}
	}
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), sel) {
			return column{name: field, index: i, set: true}, nil
		}
	}
	return column{}, &domain.ConfigError{Msg: fmt.Sprintf("column %s: header has no column %q", field, sel)}
}
