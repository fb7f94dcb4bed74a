package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/case-trend-etl/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), tt.in)
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "info", "json")

	logger.Debug("hidden")
	logger.Info("region analyzed", "region_id", "09182")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "region analyzed", entry["msg"])
	assert.Equal(t, "09182", entry["region_id"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "debug", "text").Debug("window skipped", "day", 12)
	assert.Contains(t, buf.String(), "msg=\"window skipped\"")
	assert.Contains(t, buf.String(), "day=12")
}

func TestNewMetricsForTesting(t *testing.T) {
	m := NewMetricsForTesting()
	m.RowsIngested.Add(3)
	m.SinkErrors.WithLabelValues("kafka").Inc()

	assert.InDelta(t, 3, testutil.ToFloat64(m.RowsIngested), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SinkErrors.WithLabelValues("kafka")), 0)

	// A second set must not collide with the first.
	assert.NotPanics(t, func() { NewMetricsForTesting() })
}

func TestNewLogger_FromConfig(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, &config.Config{LogLevel: "warn", LogFormat: "text"})

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
