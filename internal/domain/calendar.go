package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Calendar maps report dates onto a continuous integer day axis. Days of the
// reference month keep their day-of-month (1 to 31); every other supported month
// is shifted by the cumulative length of the months between it and the
// reference month, so the axis runs without gaps across month boundaries.
type Calendar struct {
	year      int
	reference time.Month
	first     time.Month
	last      time.Month
	offsets   map[time.Month]int
}

// NewCalendar builds the month offset table for the window [first, last] of year.
func NewCalendar(year int, reference, first, last time.Month) (*Calendar, error) {
	if first < time.January || last > time.December || first > last {
		return nil, &ConfigError{Msg: fmt.Sprintf("invalid month window %s to %s", first, last)}
	}
	if reference < first || reference > last {
		return nil, &ConfigError{Msg: fmt.Sprintf("reference month %s outside window %s to %s", reference, first, last)}
	}

	offsets := map[time.Month]int{reference: 0}
	for m := reference + 1; m <= last; m++ {
		offsets[m] = offsets[m-1] + daysIn(year, m-1)
	}
	for m := reference - 1; m >= first; m-- {
		offsets[m] = offsets[m+1] - daysIn(year, m)
	}

	return &Calendar{
		year:      year,
		reference: reference,
		first:     first,
		last:      last,
		offsets:   offsets,
	}, nil
}

func daysIn(year int, m time.Month) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Year returns the calendar year of the window.
func (c *Calendar) Year() int { return c.year }

// Offset returns the day offset of month m and whether m is in the window.
func (c *Calendar) Offset(m time.Month) (int, bool) {
	off, ok := c.offsets[m]
	return off, ok
}

// DayIndex returns the axis position of date. Dates outside the window's
// year or months yield a ConfigError.
func (c *Calendar) DayIndex(date time.Time) (int, error) {
	if date.Year() != c.year {
		return 0, &ConfigError{Msg: fmt.Sprintf("date %s outside calendar year %d", date.Format("2006-01-02"), c.year)}
	}
	off, ok := c.offsets[date.Month()]
	if !ok {
		return 0, &ConfigError{Msg: fmt.Sprintf("month %s outside supported window %s to %s", date.Month(), c.first, c.last)}
	}
	return date.Day() + off, nil
}

// Axis maps a series of ascending dates onto the day axis. Series from
// Aggregate are already unique and sorted; for dates assembled elsewhere,
// such as a hand-built DailySeries, a repeated or out-of-order date is a
// DataError.
func (c *Calendar) Axis(dates []time.Time) ([]int, error) {
	axis := make([]int, len(dates))
	for i, d := range dates {
		idx, err := c.DayIndex(d)
		if err != nil {
			return nil, err
		}
		if i > 0 && idx <= axis[i-1] {
			return nil, &DataError{Msg: fmt.Sprintf("dates not strictly increasing at %s", d.Format("2006-01-02"))}
		}
		axis[i] = idx
	}
	return axis, nil
}

// Date translates a day index back into its calendar date.
func (c *Calendar) Date(index int) (time.Time, bool) {
	for m := c.first; m <= c.last; m++ {
		day := index - c.offsets[m]
		if day >= 1 && day <= daysIn(c.year, m) {
			return time.Date(c.year, m, day, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// Label renders a day index as "DD.MM". Indices outside the window fall back
// to the bare number.
func (c *Calendar) Label(index int) string {
	d, ok := c.Date(index)
	if !ok {
		return strconv.Itoa(index)
	}
	return d.Format("02.01")
}
