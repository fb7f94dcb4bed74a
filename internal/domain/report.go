package domain

import (
	"math"
	"time"
)

// RawReport is one notification row as delivered by the dataset reader.
// Deltas may be negative when the publisher corrects earlier rows.
type RawReport struct {
	Row          int    // 1-based source row, used in error messages
	RegionID     string // e.g. "09182"
	RegionName   string
	Date         string // report date, parsed by ParseReportDate
	Cases        int
	Deaths       int
	Recovered    int
	HasRecovered bool // false for dataset versions without a recovery column
	Malformed    string // why the row could not be parsed; its counts are zero
}

// Region identifies one administrative region.
type Region struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DailyPoint holds the cumulative counts at the end of one calendar day.
type DailyPoint struct {
	Date      time.Time `json:"date"`
	Cases     int       `json:"cases"`
	Deaths    int       `json:"deaths"`
	Recovered int       `json:"recovered"`
}

// DailySeries is the per-region cumulative series, one point per unique
// report date in ascending order.
type DailySeries struct {
	RegionID string       `json:"region_id"`
	Name     string       `json:"name"`
	Points   []DailyPoint `json:"points"`
}

// Len returns the number of days in the series.
func (s DailySeries) Len() int { return len(s.Points) }

// Dates returns the report dates of the series.
func (s DailySeries) Dates() []time.Time {
	out := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Date
	}
	return out
}

// Cases returns cumulative case counts as float64 for fitting.
func (s DailySeries) Cases() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = float64(p.Cases)
	}
	return out
}

// Indicator is the per-window-end result of the trend fit. Nil pointers mark
// values that are undefined for that day.
type Indicator struct {
	Day               int       `json:"day"`
	Date              time.Time `json:"date"`
	Label             string    `json:"label"`
	DoublingTime      *float64  `json:"doubling_time"`
	ReproductionProxy *float64  `json:"reproduction_proxy"`
	Accelerating      bool      `json:"accelerating"`
	GrowthRate        float64   `json:"growth_rate"`
	GrowthRateErr     float64   `json:"growth_rate_err"`
	TotalCases        int       `json:"total_cases"`
	WeeklyNewCases    int       `json:"weekly_new_cases"`
}

// Rate holds incidence and percentage rates for one day.
type Rate struct {
	Day              int       `json:"day"`
	Date             time.Time `json:"date"`
	NewCases         int       `json:"new_cases"`
	SmoothedNewCases *float64  `json:"smoothed_new_cases"`
	Mortality        *float64  `json:"mortality"`
	Recovery         *float64  `json:"recovery"`
	Active           *float64  `json:"active"`
}

// RegionSummary bundles every derived output for one region.
type RegionSummary struct {
	RegionID      string        `json:"region_id"`
	Name          string        `json:"name"`
	Series        []DailyPoint  `json:"series"`
	Days          []int         `json:"days"`
	Indicators    []Indicator   `json:"indicators"`
	InterpolatedR []*float64    `json:"interpolated_reproduction"` // aligned with Days
	Rates         []Rate        `json:"rates"`
	CareDemand    []DemandPoint `json:"care_demand,omitempty"`
	SkippedDays   []int         `json:"skipped_days,omitempty"` // window ends that could not be fitted

	Population      int      `json:"population,omitempty"`
	PopulationShare *float64 `json:"population_share,omitempty"`
}

// LatestIndicator returns the most recent indicator, if any window was fitted.
func (s RegionSummary) LatestIndicator() (Indicator, bool) {
	if len(s.Indicators) == 0 {
		return Indicator{}, false
	}
	return s.Indicators[len(s.Indicators)-1], true
}

// LatestRate returns the most recent rate entry.
func (s RegionSummary) LatestRate() (Rate, bool) {
	if len(s.Rates) == 0 {
		return Rate{}, false
	}
	return s.Rates[len(s.Rates)-1], true
}

// RegionFailure records a region that could not be analyzed.
type RegionFailure struct {
	RegionID string `json:"region_id"`
	Error    string `json:"error"`
}

// Report is the complete result of one analysis run.
type Report struct {
	RunID       string          `json:"run_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	StateName   string          `json:"state_name"`
	State       RegionSummary   `json:"state"`
	Regions     []RegionSummary `json:"regions"`
	Failures    []RegionFailure `json:"failures,omitempty"`
	Ranking     Ranking         `json:"ranking"`
}

// Region looks up a region summary by ID.
func (r *Report) Region(id string) (RegionSummary, bool) {
	for _, s := range r.Regions {
		if s.RegionID == id {
			return s, true
		}
	}
	return RegionSummary{}, false
}

// defined converts a float to the optional form used in outputs, mapping NaN
// and ±Inf to nil.
func defined(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
