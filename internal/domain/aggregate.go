package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// AggregationPolicy selects how per-row deltas are summed into a day.
type AggregationPolicy string

const (
	// SumAll adds every delta, including negative corrections.
	SumAll AggregationPolicy = "sum_all"
	// SumPositive discards negative corrections and adds only positive deltas.
	SumPositive AggregationPolicy = "sum_positive"
)

// ParseAggregationPolicy validates a policy name from configuration.
func ParseAggregationPolicy(s string) (AggregationPolicy, error) {
	switch p := AggregationPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case SumAll, SumPositive:
		return p, nil
	default:
		return "", &ConfigError{Msg: fmt.Sprintf("unknown aggregation policy %q (want %s or %s)", s, SumAll, SumPositive)}
	}
}

func (p AggregationPolicy) apply(delta int) int {
	if p == SumPositive && delta < 0 {
		return 0
	}
	return delta
}

// DefaultDateLayouts covers the ISO, slash, and slash-with-time report date
// formats seen across dataset versions.
var DefaultDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006/01/02 15:04:05",
	time.RFC3339,
}

// AggregateOptions configures the daily aggregation.
type AggregateOptions struct {
	Policy      AggregationPolicy
	DateLayouts []string // defaults to DefaultDateLayouts when empty
}

// ParseReportDate parses a report date with the first matching layout and
// truncates it to midnight UTC.
func ParseReportDate(s string, layouts []string) (time.Time, error) {
	if len(layouts) == 0 {
		layouts = DefaultDateLayouts
	}
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// Aggregate collapses the reports of one region into a cumulative daily series.
// It returns a DataError when no row matches regionID, a row is malformed, or a
// date cannot be parsed.
func Aggregate(reports []RawReport, regionID string, opts AggregateOptions) (DailySeries, error) {
	rows := make([]RawReport, 0, 64)
	for _, r := range reports {
		if r.RegionID == regionID {
			rows = append(rows, r)
		}
	}
	if len(rows) == 0 {
		return DailySeries{}, &DataError{RegionID: regionID, Msg: "unknown region: no matching rows"}
	}

	points, _, err := aggregateRows(rows, opts, false)
	if err != nil {
		var de *DataError
		if errors.As(err, &de) {
			de.RegionID = regionID
		}
		return DailySeries{}, err
	}

	return DailySeries{
		RegionID: regionID,
		Name:     NormalizeRegionName(rows[0].RegionName),
		Points:   points,
	}, nil
}

// AggregateState sums the reports of every region into one state-wide series.
// Malformed rows and rows with unparseable dates are left out and their row
// numbers returned, so a bad row fails only its own region.
func AggregateState(reports []RawReport, name string, opts AggregateOptions) (DailySeries, []int, error) {
	points, skipped, err := aggregateRows(reports, opts, true)
	if err != nil {
		return DailySeries{}, nil, err
	}
	if len(points) == 0 {
		return DailySeries{}, skipped, &DataError{Msg: "no usable reports to aggregate"}
	}
	return DailySeries{Name: name, Points: points}, skipped, nil
}

type dayTotals struct {
	cases, deaths, recovered int
}

// aggregateRows sums rows per day. With skipBad set, malformed rows and
// unparseable dates are skipped and their row numbers returned instead of
// failing.
func aggregateRows(rows []RawReport, opts AggregateOptions, skipBad bool) ([]DailyPoint, []int, error) {
	byDate := make(map[time.Time]*dayTotals)
	var skipped []int
	for _, r := range rows {
		if r.Malformed != "" {
			if skipBad {
				skipped = append(skipped, r.Row)
				continue
			}
			return nil, nil, &DataError{Row: r.Row, Msg: "malformed row: " + r.Malformed}
		}
		date, err := ParseReportDate(r.Date, opts.DateLayouts)
		if err != nil {
			if skipBad {
				skipped = append(skipped, r.Row)
				continue
			}
			return nil, nil, &DataError{Row: r.Row, Msg: "parse report date", Err: err}
		}
		t, ok := byDate[date]
		if !ok {
			t = &dayTotals{}
			byDate[date] = t
		}
		t.cases += opts.Policy.apply(r.Cases)
		t.deaths += opts.Policy.apply(r.Deaths)
		if r.HasRecovered {
			t.recovered += opts.Policy.apply(r.Recovered)
		}
	}

	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	points := make([]DailyPoint, len(dates))
	var running dayTotals
	for i, d := range dates {
		t := byDate[d]
		running.cases += t.cases
		running.deaths += t.deaths
		running.recovered += t.recovered
		points[i] = DailyPoint{
			Date:      d,
			Cases:     running.cases,
			Deaths:    running.deaths,
			Recovered: running.recovered,
		}
	}
	return points, skipped, nil
}

var nameReplacer = strings.NewReplacer(
	"ä", "ae", "ö", "oe", "ü", "ue",
	"Ä", "Ae", "Ö", "Oe", "Ü", "Ue",
	"ß", "ss",
)

// NormalizeRegionName transliterates umlauts and ß so names sort and render
// consistently across dataset encodings.
func NormalizeRegionName(name string) string {
	return nameReplacer.Replace(strings.TrimSpace(name))
}

// Regions lists the unique regions in reports, sorted by normalized name and
// then ID. Rows without a region ID are not attributed to any region.
func Regions(reports []RawReport) []Region {
	seen := make(map[string]bool)
	var out []Region
	for _, r := range reports {
		if r.RegionID == "" || seen[r.RegionID] {
			continue
		}
		seen[r.RegionID] = true
		out = append(out, Region{ID: r.RegionID, Name: NormalizeRegionName(r.RegionName)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}
