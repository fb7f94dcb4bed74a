package domain

// SmoothingWindow is the number of days averaged by MovingAverage7.
const SmoothingWindow = 7

// Incidence returns the first difference of a cumulative series. The first
// day has no predecessor and keeps its cumulative value.
func Incidence(cumulative []int) []int {
	out := make([]int, len(cumulative))
	for i, v := range cumulative {
		if i == 0 {
			out[i] = v
			continue
		}
		out[i] = v - cumulative[i-1]
	}
	return out
}

// MovingAverage7 returns the unweighted mean over each full 7-day trailing
// window. Element j covers incidence[j : j+7], so the result is shorter than
// the input by six and the first six days have no smoothed value.
func MovingAverage7(incidence []int) []float64 {
	if len(incidence) < SmoothingWindow {
		return nil
	}
	out := make([]float64, len(incidence)-SmoothingWindow+1)
	for j := range out {
		var sum int
		for _, v := range incidence[j : j+SmoothingWindow] {
			sum += v
		}
		out[j] = float64(sum) / SmoothingWindow
	}
	return out
}

// ComputeRates builds the per-day rate entries of a series. Percentages are
// nil on days without cumulative cases.
func ComputeRates(series DailySeries, axis []int) []Rate {
	cases := make([]int, series.Len())
	for i, p := range series.Points {
		cases[i] = p.Cases
	}
	inc := Incidence(cases)
	smoothed := MovingAverage7(inc)

	out := make([]Rate, series.Len())
	for i, p := range series.Points {
		r := Rate{Day: axis[i], Date: p.Date, NewCases: inc[i]}
		if i >= SmoothingWindow-1 {
			r.SmoothedNewCases = defined(smoothed[i-SmoothingWindow+1])
		}
		if p.Cases > 0 {
			total := float64(p.Cases)
			r.Mortality = defined(float64(p.Deaths) / total * 100)
			r.Recovery = defined(float64(p.Recovered) / total * 100)
			r.Active = defined(float64(p.Cases-p.Deaths-p.Recovered) / total * 100)
		}
		out[i] = r
	}
	return out
}

// PopulationLookup resolves the population of a region.
type PopulationLookup interface {
	Population(regionID string) (int, bool)
}

// PopulationShare returns count as a percentage of population, or nil when
// the population is unknown.
func PopulationShare(count, population int) *float64 {
	if population <= 0 {
		return nil
	}
	return defined(float64(count) / float64(population) * 100)
}
