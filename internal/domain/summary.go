package domain

// DefaultCareHorizon is the number of days projected past the last report.
const DefaultCareHorizon = 14

// SummaryOptions configures the optional parts of a region summary.
type SummaryOptions struct {
	CareShare   float64             // fraction of projected cases needing care; 0 disables projection
	CareHorizon int                 // days projected past the last report
	Capacity    map[string]Capacity // per-region care capacity, keyed by region ID
	Population  PopulationLookup    // optional
}

// BuildSummary runs the trend pipeline over one cumulative series: day axis,
// windowed fits, indicators, both reproduction estimates, rates, and care
// demand projection. A ConfigError from the calendar is returned unchanged.
func BuildSummary(series DailySeries, cal *Calendar, opts SummaryOptions) (RegionSummary, error) {
	axis, err := cal.Axis(series.Dates())
	if err != nil {
		return RegionSummary{}, err
	}

	cases := series.Cases()
	fits, skips, err := FitWindows(axis, cases)
	if err != nil {
		return RegionSummary{}, err
	}

	summary := RegionSummary{
		RegionID:      series.RegionID,
		Name:          series.Name,
		Series:        series.Points,
		Days:          axis,
		Indicators:    DeriveIndicators(series, axis, fits, cal),
		InterpolatedR: InterpolatedReproduction(axis, cases),
		Rates:         ComputeRates(series, axis),
	}
	for _, s := range skips {
		summary.SkippedDays = append(summary.SkippedDays, s.Day)
	}

	if opts.CareShare > 0 && len(fits) > 0 {
		last := fits[len(fits)-1]
		horizon := opts.CareHorizon
		if horizon <= 0 {
			horizon = DefaultCareHorizon
		}
		days := make([]int, horizon+1)
		for i := range days {
			days[i] = last.Day + i
		}
		var capacity *Capacity
		if c, ok := opts.Capacity[series.RegionID]; ok {
			capacity = &c
		}
		summary.CareDemand = CareDemand(last.Fit, days, opts.CareShare, capacity)
	}

	if opts.Population != nil && series.Len() > 0 {
		if pop, ok := opts.Population.Population(series.RegionID); ok {
			summary.Population = pop
			summary.PopulationShare = PopulationShare(series.Points[series.Len()-1].Cases, pop)
		}
	}

	return summary, nil
}
