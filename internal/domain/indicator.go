package domain

import (
	"math"
)

// DoublingTime returns ln(2)/b rounded to two decimals. A negative growth
// rate yields a negative doubling time, which callers use to flag declining
// counts; b == 0 yields +Inf.
func DoublingTime(b float64) float64 {
	if b == 0 {
		return math.Inf(1)
	}
	return math.Round(math.Ln2/b*100) / 100
}

// ReproductionProxy divides the new cases of the second half of a window by
// those of the first half. window holds WindowSize cumulative counts; prev is
// the cumulative count immediately before the window when hasPrev is set,
// otherwise the first increment equals the first count. Returns NaN when the
// window has the wrong length or the first half saw no new cases.
func ReproductionProxy(window []float64, prev float64, hasPrev bool) float64 {
	if len(window) != WindowSize {
		return math.NaN()
	}

	inc := make([]float64, WindowSize)
	inc[0] = window[0]
	if hasPrev {
		inc[0] = window[0] - prev
	}
	for k := 1; k < WindowSize; k++ {
		inc[k] = window[k] - window[k-1]
	}

	half := WindowSize / 2
	var num, den float64
	for k := 0; k < half; k++ {
		den += inc[k]
		num += inc[k+half]
	}
	if den == 0 {
		return math.NaN()
	}
	return num / den
}

// DeriveIndicators turns window fits into indicators. A window is flagged as
// accelerating when its doubling time is below that of the window ending one
// point earlier; the first window, and any window following a skipped one,
// has no predecessor and is never flagged.
func DeriveIndicators(series DailySeries, axis []int, fits []WindowFit, cal *Calendar) []Indicator {
	cum := series.Cases()
	out := make([]Indicator, 0, len(fits))

	prevEnd := -1
	var prevDT *float64
	for _, wf := range fits {
		start := wf.End - WindowSize + 1

		var prev float64
		hasPrev := start > 0
		if hasPrev {
			prev = cum[start-1]
		}

		dt := defined(DoublingTime(wf.Fit.Slope))
		accelerating := prevEnd >= 0 && wf.End == prevEnd+1 &&
			dt != nil && prevDT != nil && *dt < *prevDT

		out = append(out, Indicator{
			Day:               wf.Day,
			Date:              series.Points[wf.End].Date,
			Label:             cal.Label(wf.Day),
			DoublingTime:      dt,
			ReproductionProxy: defined(ReproductionProxy(cum[start:wf.End+1], prev, hasPrev)),
			Accelerating:      accelerating,
			GrowthRate:        wf.Fit.Slope,
			GrowthRateErr:     wf.Fit.SlopeErr,
			TotalCases:        series.Points[wf.End].Cases,
			WeeklyNewCases:    weeklyNewCases(axis[start:wf.End+1], cum[start:wf.End+1]),
		})

		prevEnd = wf.End
		prevDT = dt
	}
	return out
}

// weeklyNewCases returns the growth over the points of a window that fall
// within the seven days ending at its last point.
func weeklyNewCases(days []int, cum []float64) int {
	last := days[len(days)-1]
	first := -1
	for i, d := range days {
		if d > last-7 {
			first = i
			break
		}
	}
	return int(cum[len(cum)-1] - cum[first])
}

// InterpolatedReproduction estimates the reproduction number at every axis
// day d as (C(d) - C(d-4)) / (C(d-4) - C(d-8)), with C linearly interpolated
// on the continuous day axis. Lookups before the first observed case are
// invalid, so d < first+8 yields nil, as do zero denominators. The result is
// aligned with axis.
func InterpolatedReproduction(axis []int, cumulative []float64) []*float64 {
	out := make([]*float64, len(axis))

	firstCase := -1
	for i, v := range cumulative {
		if v > 0 {
			firstCase = i
			break
		}
	}
	if firstCase < 0 {
		return out
	}

	interp := func(t float64) (float64, bool) {
		if t < float64(axis[firstCase]) || t > float64(axis[len(axis)-1]) {
			return 0, false
		}
		for i := firstCase; i < len(axis); i++ {
			di := float64(axis[i])
			if di == t {
				return cumulative[i], true
			}
			if di > t {
				d0 := float64(axis[i-1])
				frac := (t - d0) / (di - d0)
				return cumulative[i-1] + frac*(cumulative[i]-cumulative[i-1]), true
			}
		}
		return 0, false
	}

	for i, d := range axis {
		c4, ok4 := interp(float64(d - 4))
		c8, ok8 := interp(float64(d - 8))
		if !ok4 || !ok8 {
			continue
		}
		den := c4 - c8
		if den == 0 {
			continue
		}
		out[i] = defined((cumulative[i] - c4) / den)
	}
	return out
}
