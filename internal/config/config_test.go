package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/case-trend-etl/internal/adapter/csvsource"
	"github.com/couchcryptid/case-trend-etl/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/RKI_COVID19.csv", cfg.DatasetPath)
	assert.Empty(t, cfg.PopulationPath)
	assert.Empty(t, cfg.DatasetProfile)
	assert.Equal(t, "Bavaria", cfg.StateName)
	assert.Empty(t, cfg.RegionIDs)
	assert.Equal(t, domain.SumAll, cfg.AggregationPolicy)
	assert.Equal(t, 2020, cfg.CalendarYear)
	assert.Equal(t, time.March, cfg.ReferenceMonth)
	assert.Equal(t, time.January, cfg.FirstMonth)
	assert.Equal(t, time.May, cfg.LastMonth)
	assert.Equal(t, domain.DefaultRankSize, cfg.RankSize)
	assert.Equal(t, 1, cfg.Workers)
	assert.InDelta(t, domain.DefaultCareShare, cfg.CareShare, 1e-12)
	assert.Empty(t, cfg.CareCapacity)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.KafkaEnabled())
	assert.Equal(t, "case-trend-reports", cfg.KafkaSinkTopic)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Empty(t, cfg.XLSXOut)
	assert.Zero(t, cfg.RefreshInterval)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("DATASET_PATH", "/data/rki.csv")
	t.Setenv("POPULATION_PATH", "/data/12411-001.csv")
	t.Setenv("DATASET_PROFILE", "/etc/trends/rki.yaml")
	t.Setenv("STATE_NAME", "Bayern")
	t.Setenv("REGION_IDS", "09182, 09162,,09184")
	t.Setenv("AGGREGATION_POLICY", "SUM_POSITIVE")
	t.Setenv("CALENDAR_YEAR", "2021")
	t.Setenv("CALENDAR_REFERENCE_MONTH", "april")
	t.Setenv("CALENDAR_FIRST_MONTH", "2")
	t.Setenv("CALENDAR_LAST_MONTH", "Jun")
	t.Setenv("RANK_SIZE", "10")
	t.Setenv("WORKERS", "4")
	t.Setenv("CARE_SHARE", "0.08")
	t.Setenv("CARE_CAPACITY", "09182:14:28")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("XLSX_OUT", "out/trends.xlsx")
	t.Setenv("REFRESH_INTERVAL", "15m")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/rki.csv", cfg.DatasetPath)
	assert.Equal(t, "/data/12411-001.csv", cfg.PopulationPath)
	assert.Equal(t, "/etc/trends/rki.yaml", cfg.DatasetProfile)
	assert.Equal(t, "Bayern", cfg.StateName)
	assert.Equal(t, []string{"09182", "09162", "09184"}, cfg.RegionIDs)
	assert.Equal(t, domain.SumPositive, cfg.AggregationPolicy)
	assert.Equal(t, 2021, cfg.CalendarYear)
	assert.Equal(t, time.April, cfg.ReferenceMonth)
	assert.Equal(t, time.February, cfg.FirstMonth)
	assert.Equal(t, time.June, cfg.LastMonth)
	assert.Equal(t, 10, cfg.RankSize)
	assert.Equal(t, 4, cfg.Workers)
	assert.InDelta(t, 0.08, cfg.CareShare, 1e-12)
	assert.Equal(t, map[string]domain.Capacity{"09182": {Min: 14, Max: 28}}, cfg.CareCapacity)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "out/trends.xlsx", cfg.XLSXOut)
	assert.Equal(t, 15*time.Minute, cfg.RefreshInterval)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)

	cal, err := cfg.Calendar()
	require.NoError(t, err)
	assert.Equal(t, 2021, cal.Year())
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
		msg   string
	}{
		{"AGGREGATION_POLICY", "average", "aggregation policy"},
		{"CALENDAR_YEAR", "twenty", "CALENDAR_YEAR"},
		{"CALENDAR_REFERENCE_MONTH", "13", "CALENDAR_REFERENCE_MONTH"},
		{"CALENDAR_FIRST_MONTH", "juni", "CALENDAR_FIRST_MONTH"},
		{"CALENDAR_LAST_MONTH", "February", "window"},
		{"RANK_SIZE", "0", "RANK_SIZE"},
		{"WORKERS", "-2", "WORKERS"},
		{"CARE_SHARE", "1.5", "CARE_SHARE"},
		{"CARE_CAPACITY", "09182:28", "CARE_CAPACITY"},
		{"REFRESH_INTERVAL", "-1m", "REFRESH_INTERVAL"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestParseCareCapacity(t *testing.T) {
	got, err := ParseCareCapacity(" 09182:14:28 , 09162:120.5:180 ")
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.Capacity{
		"09182": {Min: 14, Max: 28},
		"09162": {Min: 120.5, Max: 180},
	}, got)

	empty, err := ParseCareCapacity("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, bad := range []string{":1:2", "09182:a:2", "09182:30:20", "09182:-1:2", "09182:1:2:3"} {
		_, err := ParseCareCapacity(bad)
		assert.Error(t, err, bad)
	}
}

func TestLoadProfile_Default(t *testing.T) {
	layout, err := LoadProfile("")
	require.NoError(t, err)
	assert.Equal(t, csvsource.DefaultLayout(), layout)
}

func TestLoadProfile_NamedColumns(t *testing.T) {
	layout, err := LoadProfile("testdata/named.yaml")
	require.NoError(t, err)

	assert.Equal(t, ";", layout.Delimiter)
	assert.True(t, layout.Header)
	assert.Equal(t, 1, layout.SkipRows)
	assert.Equal(t, csvsource.Columns{
		RegionID:   "IdLandkreis",
		RegionName: "Landkreis",
		Date:       "Meldedatum",
		Cases:      "AnzahlFall",
		Deaths:     "AnzahlTodesfall",
	}, layout.Columns)
	assert.Equal(t, []string{"02.01.2006"}, layout.DateLayouts)
}

func TestLoadProfile_PartialKeepsDefaults(t *testing.T) {
	layout, err := LoadProfile("testdata/partial.yaml")
	require.NoError(t, err)

	want := csvsource.DefaultLayout()
	want.Columns.Cases = "7"
	assert.Equal(t, want, layout)
}

func TestLoadProfile_Errors(t *testing.T) {
	_, err := LoadProfile("testdata/missing.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read dataset profile")

	_, err = LoadProfile("testdata/invalid.yaml")
	require.Error(t, err)
	assert.True(t, domain.IsFatal(err))
}
