package domain

import (
	"fmt"
	"math"
)

// WindowSize is the number of trailing cumulative points used for one local fit.
const WindowSize = 8

// FitResult is the least-squares fit of log(y) = Intercept + Slope*x, i.e.
// y = a*exp(b*x) with a = exp(Intercept) and b = Slope.
type FitResult struct {
	Intercept    float64 `json:"intercept"`
	Slope        float64 `json:"slope"`
	InterceptErr float64 `json:"intercept_err"`
	SlopeErr     float64 `json:"slope_err"`
}

// A returns the amplitude a of y = a*exp(b*x).
func (f FitResult) A() float64 { return math.Exp(f.Intercept) }

// Predict evaluates the fitted curve at day.
func (f FitResult) Predict(day float64) float64 {
	return math.Exp(f.Intercept + f.Slope*day)
}

// Band evaluates the curves obtained by shifting both parameters one standard
// error down and up.
func (f FitResult) Band(day float64) (lower, upper float64) {
	lower = math.Exp((f.Intercept - f.InterceptErr) + (f.Slope-f.SlopeErr)*day)
	upper = math.Exp((f.Intercept + f.InterceptErr) + (f.Slope+f.SlopeErr)*day)
	return lower, upper
}

// FitLogLinear fits log(y) against x by ordinary least squares. Standard
// errors come from the diagonal of the parameter covariance, scaled by the
// residual variance with n-2 degrees of freedom.
func FitLogLinear(x, y []float64) (FitResult, error) {
	n := len(x)
	if n != len(y) {
		return FitResult{}, &FitError{Msg: fmt.Sprintf("length mismatch: %d x values, %d y values", n, len(y))}
	}
	if n < 3 {
		return FitResult{}, &FitError{Msg: fmt.Sprintf("need at least 3 points, got %d", n)}
	}

	ly := make([]float64, n)
	for i, v := range y {
		if v <= 0 {
			return FitResult{}, &FitError{Msg: fmt.Sprintf("non-positive value %g at position %d", v, i)}
		}
		ly[i] = math.Log(v)
	}

	var xbar, ybar float64
	for i := range x {
		xbar += x[i]
		ybar += ly[i]
	}
	xbar /= float64(n)
	ybar /= float64(n)

	var sxx, sxy float64
	for i := range x {
		dx := x[i] - xbar
		sxx += dx * dx
		sxy += dx * (ly[i] - ybar)
	}
	if sxx == 0 {
		return FitResult{}, &FitError{Msg: "degenerate day axis"}
	}

	slope := sxy / sxx
	intercept := ybar - slope*xbar

	var ssr float64
	for i := range x {
		r := ly[i] - (intercept + slope*x[i])
		ssr += r * r
	}
	s2 := ssr / float64(n-2)

	return FitResult{
		Intercept:    intercept,
		Slope:        slope,
		InterceptErr: math.Sqrt(s2 * (1/float64(n) + xbar*xbar/sxx)),
		SlopeErr:     math.Sqrt(s2 / sxx),
	}, nil
}

// WindowFit is the fit of the window whose last point is series index End.
type WindowFit struct {
	End int       // series index of the window's last point
	Day int       // day index of the window's last point
	Fit FitResult // fit over [End-WindowSize+1, End]
}

// WindowSkip records a window end whose fit was rejected.
type WindowSkip struct {
	End int
	Day int
	Err error
}

// FitWindows fits every trailing WindowSize-point window of the series.
// Windows containing a non-positive count are skipped, so the result may have
// gaps; with all points valid it holds len(axis)-WindowSize+1 fits.
func FitWindows(axis []int, cumulative []float64) ([]WindowFit, []WindowSkip, error) {
	if len(axis) != len(cumulative) {
		return nil, nil, &DataError{Msg: fmt.Sprintf("axis has %d days but series has %d points", len(axis), len(cumulative))}
	}

	var fits []WindowFit
	var skips []WindowSkip
	x := make([]float64, WindowSize)
	for end := WindowSize - 1; end < len(axis); end++ {
		start := end - WindowSize + 1
		for i := range x {
			x[i] = float64(axis[start+i])
		}
		fit, err := FitLogLinear(x, cumulative[start:end+1])
		if err != nil {
			skips = append(skips, WindowSkip{End: end, Day: axis[end], Err: err})
			continue
		}
		fits = append(fits, WindowFit{End: end, Day: axis[end], Fit: fit})
	}
	return fits, skips, nil
}
