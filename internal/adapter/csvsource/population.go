package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/case-trend-etl/internal/domain"
)

// PopulationTable maps region IDs to inhabitants. It satisfies
// domain.PopulationLookup.
type PopulationTable struct {
	byID map[string]int
}

// LoadPopulation reads a population table from path. The region ID is taken
// from the first column and the population from the last; rows whose last
// column is not a whole number (titles, footnotes, placeholders) are ignored.
func LoadPopulation(path string, delimiter rune) (*PopulationTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.ConfigError{Msg: "open population table " + path, Err: err}
	}
	defer f.Close()

	t, err := ParsePopulation(f, delimiter)
	if err != nil {
		return nil, fmt.Errorf("read population table %s: %w", path, err)
	}
	return t, nil
}

// ParsePopulation reads a population table from src.
func ParsePopulation(src io.Reader, delimiter rune) (*PopulationTable, error) {
	cr := csv.NewReader(src)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	t := &PopulationTable{byID: make(map[string]int)}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read population row: %w", err)
		}
		if len(rec) < 2 {
			continue
		}
		id := normalizeID(rec[0])
		n, err := strconv.Atoi(strings.TrimSpace(rec[len(rec)-1]))
		if id == "" || err != nil {
			continue
		}
		t.byID[id] = n
	}
	if len(t.byID) == 0 {
		return nil, &domain.DataError{Msg: "population table has no usable rows"}
	}
	return t, nil
}

// Population returns the inhabitants of regionID. IDs match regardless of
// leading zeros, so "09182" and "9182" name the same region.
func (t *PopulationTable) Population(regionID string) (int, bool) {
	n, ok := t.byID[normalizeID(regionID)]
	return n, ok
}

// Len returns the number of regions in the table.
func (t *PopulationTable) Len() int { return len(t.byID) }

func normalizeID(id string) string {
	id = strings.TrimSpace(id)
	if _, err := strconv.Atoi(id); err != nil {
		return ""
	}
	trimmed := strings.TrimLeft(id, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}
