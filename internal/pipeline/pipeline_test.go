package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/case-trend-etl/internal/domain"
	"github.com/couchcryptid/case-trend-etl/internal/observability"
	"github.com/couchcryptid/case-trend-etl/internal/pipeline"
)

// --- mocks ---

type mockSource struct {
	reports []domain.RawReport
	err     error
	calls   atomic.Int64
}

func (m *mockSource) Load(_ context.Context) ([]domain.RawReport, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.reports, nil
}

type mockSink struct {
	name      string
	err       error
	mu        sync.Mutex
	published []*domain.Report
	onPublish func(n int)
}

func (m *mockSink) Name() string { return m.name }

func (m *mockSink) Publish(_ context.Context, r *domain.Report) error {
	m.mu.Lock()
	m.published = append(m.published, r)
	n := len(m.published)
	m.mu.Unlock()
	if m.onPublish != nil {
		m.onPublish(n)
	}
	return m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type syntheticRegion struct {
	id, name string
	doubling float64
}

var testRegions = []syntheticRegion{
	{"09181", "LK Landsberg am Lech", 8},
	{"09182", "LK Miesbach", 3},
	{"09183", "LK Mühldorf a.Inn", 5},
}

// syntheticReports emits one delta row per region and day for March 1 to 20
// so that each region's cumulative count is round(10 * 2^(day/doubling)).
func syntheticReports(regions []syntheticRegion) []domain.RawReport {
	var out []domain.RawReport
	row := 2
	for _, r := range regions {
		prev := 0
		for d := 1; d <= 20; d++ {
			cum := int(math.Round(10 * math.Pow(2, float64(d)/r.doubling)))
			out = append(out, domain.RawReport{
				Row:        row,
				RegionID:   r.id,
				RegionName: r.name,
				Date:       fmt.Sprintf("2020-03-%02d", d),
				Cases:      cum - prev,
			})
			prev = cum
			row++
		}
	}
	return out
}

func newAnalyzer(t *testing.T, opts pipeline.Options, metrics *observability.Metrics) *pipeline.Analyzer {
	t.Helper()
	cal, err := domain.NewCalendar(2020, time.March, time.January, time.May)
	require.NoError(t, err)
	if opts.StateName == "" {
		opts.StateName = "Bavaria"
	}
	return pipeline.NewAnalyzer(cal, opts, discardLogger(), metrics)
}

func freezeClock(t *testing.T) time.Time {
	t.Helper()
	at := time.Date(2020, time.April, 28, 9, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(at))
	t.Cleanup(func() { domain.SetClock(nil) })
	return at
}

// --- tests ---

func TestPipeline_RunOnce_HappyPath(t *testing.T) {
	at := freezeClock(t)
	metrics := observability.NewMetricsForTesting()
	src := &mockSource{reports: syntheticReports(testRegions)}
	sink := &mockSink{name: "memory"}

	p := pipeline.New(src, newAnalyzer(t, pipeline.Options{}, metrics), []pipeline.Sink{sink}, discardLogger(), metrics)
	require.Error(t, p.CheckReadiness(context.Background()))

	report, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	_, err = uuid.Parse(report.RunID)
	require.NoError(t, err)
	assert.Equal(t, at, report.GeneratedAt)
	assert.Equal(t, "Bavaria", report.StateName)
	assert.Empty(t, report.Failures)

	require.Len(t, report.Regions, 3)
	assert.Equal(t, []string{"09181", "09182", "09183"},
		[]string{report.Regions[0].RegionID, report.Regions[1].RegionID, report.Regions[2].RegionID})
	assert.Equal(t, "LK Muehldorf a.Inn", report.Regions[2].Name)

	require.Len(t, report.Ranking.Lowest, 3)
	assert.Equal(t, "09182", report.Ranking.Lowest[0].RegionID)
	assert.InDelta(t, 3.0, report.Ranking.Lowest[0].DoublingTime, 0.1)
	assert.Equal(t, "09181", report.Ranking.Highest[0].RegionID)

	latest, ok := report.State.LatestIndicator()
	require.True(t, ok)
	assert.Equal(t, 20, latest.Day)

	require.NoError(t, p.CheckReadiness(context.Background()))
	got, ok := p.Latest()
	require.True(t, ok)
	assert.Same(t, report, got)
	require.Len(t, sink.published, 1)
	assert.Same(t, report, sink.published[0])

	assert.InDelta(t, 60, testutil.ToFloat64(metrics.RowsIngested), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.RegionsProcessed), 0)
	assert.InDelta(t, 39, testutil.ToFloat64(metrics.WindowsFitted), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ReportsPublished.WithLabelValues("memory")), 0)
	assert.InDelta(t, float64(at.Unix()), testutil.ToFloat64(metrics.LastRunTimestamp), 0)
}

func TestPipeline_RunOnce_IsolatesRegionFailures(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	opts := pipeline.Options{RegionIDs: []string{"09183", "00000", "09182"}}
	p := pipeline.New(&mockSource{reports: syntheticReports(testRegions)}, newAnalyzer(t, opts, metrics), nil, discardLogger(), metrics)

	report, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Regions, 2)
	assert.Equal(t, "09183", report.Regions[0].RegionID)
	assert.Equal(t, "09182", report.Regions[1].RegionID)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "00000", report.Failures[0].RegionID)
	assert.Contains(t, report.Failures[0].Error, "unknown region")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RegionsFailed), 0)
}

func TestPipeline_RunOnce_BadRowsFailOnlyTheirRegion(t *testing.T) {
	tests := []struct {
		name     string
		bad      domain.RawReport
		rejected float64
		msg      string
	}{
		{
			name: "unparseable date",
			bad:  domain.RawReport{Row: 99, RegionID: "09181", RegionName: "LK Landsberg am Lech", Date: "not-a-date", Cases: 1},
			msg:  "parse report date",
		},
		{
			name:     "malformed cell",
			bad:      domain.RawReport{Row: 99, RegionID: "09181", RegionName: "LK Landsberg am Lech", Date: "2020-03-05", Malformed: `parse cases "abc"`},
			rejected: 1,
			msg:      `parse cases "abc"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := observability.NewMetricsForTesting()
			reports := append(syntheticReports(testRegions), tt.bad)
			p := pipeline.New(&mockSource{reports: reports}, newAnalyzer(t, pipeline.Options{}, metrics), nil, discardLogger(), metrics)

			report, err := p.RunOnce(context.Background())
			require.NoError(t, err)

			require.Len(t, report.Regions, 2)
			assert.Equal(t, "09182", report.Regions[0].RegionID)
			assert.Equal(t, "09183", report.Regions[1].RegionID)
			require.Len(t, report.Failures, 1)
			assert.Equal(t, "09181", report.Failures[0].RegionID)
			assert.Contains(t, report.Failures[0].Error, "row 99")
			assert.Contains(t, report.Failures[0].Error, tt.msg)

			latest, ok := report.State.LatestIndicator()
			require.True(t, ok)
			assert.Equal(t, 20, latest.Day)
			assert.InDelta(t, tt.rejected, testutil.ToFloat64(metrics.RowsRejected), 0)
			assert.InDelta(t, 1, testutil.ToFloat64(metrics.RegionsFailed), 0)
		})
	}
}

func TestPipeline_RunOnce_ConfigErrorAborts(t *testing.T) {
	reports := syntheticReports(testRegions)
	reports = append(reports, domain.RawReport{Row: 99, RegionID: "09182", RegionName: "LK Miesbach", Date: "2020-06-01", Cases: 1})

	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(&mockSource{reports: reports}, newAnalyzer(t, pipeline.Options{}, metrics), nil, discardLogger(), metrics)

	_, err := p.RunOnce(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsFatal(err))
	require.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_RunOnce_SourceError(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(&mockSource{err: errors.New("disk gone")}, newAnalyzer(t, pipeline.Options{}, metrics), nil, discardLogger(), metrics)

	_, err := p.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extract reports")
	_, ok := p.Latest()
	assert.False(t, ok)
}

func TestPipeline_RunOnce_SinkErrorKeepsReport(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	broken := &mockSink{name: "kafka", err: errors.New("broker unavailable")}
	good := &mockSink{name: "xlsx"}
	p := pipeline.New(&mockSource{reports: syntheticReports(testRegions)}, newAnalyzer(t, pipeline.Options{}, metrics),
		[]pipeline.Sink{broken, good}, discardLogger(), metrics)

	report, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Len(t, good.published, 1)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SinkErrors.WithLabelValues("kafka")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ReportsPublished.WithLabelValues("xlsx")), 0)
	require.NoError(t, p.CheckReadiness(context.Background()))
}

func TestAnalyzer_WorkersDoNotChangeResult(t *testing.T) {
	reports := syntheticReports(testRegions)

	sequential, err := newAnalyzer(t, pipeline.Options{Workers: 1}, observability.NewMetricsForTesting()).Analyze(context.Background(), reports)
	require.NoError(t, err)
	parallel, err := newAnalyzer(t, pipeline.Options{Workers: 4}, observability.NewMetricsForTesting()).Analyze(context.Background(), reports)
	require.NoError(t, err)

	if diff := cmp.Diff(sequential.Regions, parallel.Regions); diff != "" {
		t.Errorf("regions mismatch (-sequential +parallel):\n%s", diff)
	}
	if diff := cmp.Diff(sequential.Ranking, parallel.Ranking); diff != "" {
		t.Errorf("ranking mismatch (-sequential +parallel):\n%s", diff)
	}
	assert.NotEqual(t, sequential.RunID, parallel.RunID)
}

func TestAnalyzer_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newAnalyzer(t, pipeline.Options{}, observability.NewMetricsForTesting()).Analyze(ctx, syntheticReports(testRegions))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_Run_ZeroIntervalRunsOnce(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	src := &mockSource{reports: syntheticReports(testRegions)}
	p := pipeline.New(src, newAnalyzer(t, pipeline.Options{}, metrics), nil, discardLogger(), metrics)

	require.NoError(t, p.Run(context.Background(), 0))
	assert.Equal(t, int64(1), src.calls.Load())
}

func TestPipeline_Run_RefreshesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetricsForTesting()
	src := &mockSource{reports: syntheticReports(testRegions)}
	sink := &mockSink{name: "memory", onPublish: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	p := pipeline.New(src, newAnalyzer(t, pipeline.Options{}, metrics), []pipeline.Sink{sink}, discardLogger(), metrics)

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, 10*time.Millisecond) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not stop after cancellation")
	}
	assert.Equal(t, int64(2), src.calls.Load())
}

func TestPipeline_Run_StopsOnConfigError(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	src := &mockSource{err: &domain.ConfigError{Msg: "open dataset"}}
	p := pipeline.New(src, newAnalyzer(t, pipeline.Options{}, metrics), nil, discardLogger(), metrics)

	err := p.Run(context.Background(), time.Hour)
	require.Error(t, err)
	assert.True(t, domain.IsFatal(err))
	assert.Equal(t, int64(1), src.calls.Load())
}

func TestPipeline_Run_RetriesTransientErrors(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	metrics := observability.NewMetricsForTesting()
	src := &mockSource{err: errors.New("file locked")}
	p := pipeline.New(src, newAnalyzer(t, pipeline.Options{}, metrics), nil, discardLogger(), metrics)

	require.NoError(t, p.Run(ctx, time.Hour))
	assert.GreaterOrEqual(t, src.calls.Load(), int64(2))
}
