// Package domain models regional case-report data and the per-region trend
// analytics derived from it.
//
// # Data Source
//
// Case reports come from a regional public-health notification export (for
// example the RKI COVID-19 county dataset). Each row is one notification
// batch for a region and report date, carrying new-case, new-death and,
// depending on the dataset version, new-recovery deltas. Rows are parsed by
// the csvsource adapter into [RawReport] values; the column layout is a
// configurable profile.
//
// # Conventions
//
// Report dates:
//
//	"2020-04-28", "2020/04/28" or "2020/04/28 00:00:00" are accepted by default.
//	Time components are dropped; every date is midnight UTC.
//
// Deltas:
//
//	Negative deltas are corrections of earlier rows. [SumAll] adds them,
//	[SumPositive] discards them. Only SumAll with non-negative input
//	guarantees a non-decreasing cumulative series.
//
// Day axis:
//
//	Days of the reference month (default March) keep their day-of-month.
//	Earlier months are shifted back by their lengths (February 29, 2020 is 0,
//	January 1 is -59) and later months forward (April 1 is 32). See [Calendar].
//
// Undefined values:
//
//	Optional outputs are *float64. nil marks a value that is undefined for
//	that day (zero denominator, log of a non-positive count, no predecessor)
//	so every sequence stays aligned with the day axis.
//
// # Trend Model
//
// For every run of [WindowSize] consecutive points the cumulative case count
// is fitted as log(C) = log(a) + b*day by ordinary least squares
// ([FitLogLinear]). From each fit:
//
//	doubling time      ln(2)/b, two decimals; negative when counts decline
//	reproduction proxy new cases of the last 4 points / new cases of the first 4
//	accelerating       doubling time shorter than the previous window's
//
// A second reproduction estimate, [InterpolatedReproduction], compares the
// growth over the last four days with the four days before that on the
// interpolated continuous axis. The two estimates are independent outputs.
//
// # Errors
//
// [DataError] and [FitError] are isolated to one region. [ConfigError]
// affects every region identically and aborts a run; see [IsFatal].
package domain
