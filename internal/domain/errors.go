package domain

import (
	"errors"
	"fmt"
)

// DataError reports a malformed row, an unparseable date, or an unknown region.
// It is isolated to the region being processed.
type DataError struct {
	RegionID string
	Row      int // 1-based source row, 0 when not tied to a row
	Msg      string
	Err      error
}

func (e *DataError) Error() string {
	var prefix string
	switch {
	case e.RegionID != "" && e.Row > 0:
		prefix = fmt.Sprintf("data error (region %s, row %d)", e.RegionID, e.Row)
	case e.RegionID != "":
		prefix = fmt.Sprintf("data error (region %s)", e.RegionID)
	case e.Row > 0:
		prefix = fmt.Sprintf("data error (row %d)", e.Row)
	default:
		prefix = "data error"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Msg, e.Err)
	}
	return prefix + ": " + e.Msg
}

func (e *DataError) Unwrap() error { return e.Err }

// ConfigError reports a configuration problem that affects every region
// identically, such as an unsupported month or a missing column.
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config error: %s: %v", e.Msg, e.Err)
	}
	return "config error: " + e.Msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// FitError reports a window that cannot be fitted: too few points, a
// non-positive value under the log transform, or a degenerate day axis.
type FitError struct {
	Msg string
}

func (e *FitError) Error() string {
	return "fit error: " + e.Msg
}

// IsFatal reports whether err should abort the whole run rather than a single region.
func IsFatal(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}
