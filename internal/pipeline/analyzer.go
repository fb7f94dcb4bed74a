package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/case-trend-etl/internal/domain"
	"github.com/couchcryptid/case-trend-etl/internal/observability"
)

// Options configures an analysis run.
type Options struct {
	StateName string
	RegionIDs []string // empty analyzes every region in the dataset
	Aggregate domain.AggregateOptions
	Summary   domain.SummaryOptions
	RankSize  int
	Workers   int // concurrent region analyses; values below 1 mean sequential
}

// Analyzer turns raw notification rows into a Report.
type Analyzer struct {
	cal     *domain.Calendar
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewAnalyzer creates an Analyzer over the given calendar.
func NewAnalyzer(cal *domain.Calendar, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Analyzer {
	if opts.RankSize <= 0 {
		opts.RankSize = domain.DefaultRankSize
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Analyzer{cal: cal, opts: opts, logger: logger, metrics: metrics}
}

type regionResult struct {
	summary *domain.RegionSummary
	failure *domain.RegionFailure
}

// Analyze builds the state aggregate and every region summary. A region whose
// data cannot be analyzed is recorded as a failure and the run continues; a
// ConfigError from any region aborts the run.
func (a *Analyzer) Analyze(ctx context.Context, reports []domain.RawReport) (*domain.Report, error) {
	stateSeries, skipped, err := domain.AggregateState(reports, a.opts.StateName, a.opts.Aggregate)
	if err != nil {
		return nil, fmt.Errorf("aggregate state: %w", err)
	}
	if len(skipped) > 0 {
		a.logger.Warn("rows left out of state series", "count", len(skipped), "rows", skipped)
	}
	state, err := domain.BuildSummary(stateSeries, a.cal, a.opts.Summary)
	if err != nil {
		return nil, fmt.Errorf("summarize state: %w", err)
	}

	regions := a.regions(reports)
	results := make([]regionResult, len(regions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for i, region := range regions {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := a.analyzeRegion(reports, region)
			if err != nil {
				if domain.IsFatal(err) {
					return fmt.Errorf("analyze region %s: %w", region.ID, err)
				}
				a.logger.Warn("region skipped", "region_id", region.ID, "error", err)
				a.metrics.RegionsFailed.Inc()
				results[i] = regionResult{failure: &domain.RegionFailure{RegionID: region.ID, Error: err.Error()}}
				return nil
			}
			results[i] = regionResult{summary: &s}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &domain.Report{
		RunID:       uuid.NewString(),
		GeneratedAt: domain.Now(),
		StateName:   a.opts.StateName,
		State:       state,
	}
	for _, r := range results {
		switch {
		case r.summary != nil:
			report.Regions = append(report.Regions, *r.summary)
		case r.failure != nil:
			report.Failures = append(report.Failures, *r.failure)
		}
	}
	report.Ranking = domain.Rank(report.Regions, a.opts.RankSize, a.cal)

	a.logger.Info("analysis complete",
		"run_id", report.RunID,
		"regions", len(report.Regions),
		"failures", len(report.Failures),
	)
	return report, nil
}

func (a *Analyzer) analyzeRegion(reports []domain.RawReport, region domain.Region) (domain.RegionSummary, error) {
	series, err := domain.Aggregate(reports, region.ID, a.opts.Aggregate)
	if err != nil {
		return domain.RegionSummary{}, err
	}
	s, err := domain.BuildSummary(series, a.cal, a.opts.Summary)
	if err != nil {
		return domain.RegionSummary{}, err
	}

	a.metrics.RegionsProcessed.Inc()
	a.metrics.WindowsFitted.Add(float64(len(s.Indicators)))
	a.metrics.WindowsSkipped.Add(float64(len(s.SkippedDays)))
	if len(s.SkippedDays) > 0 {
		a.logger.Debug("windows skipped", "region_id", region.ID, "days", s.SkippedDays)
	}
	return s, nil
}

// regions returns the configured regions in configuration order, or every
// region of the dataset sorted by name.
func (a *Analyzer) regions(reports []domain.RawReport) []domain.Region {
	all := domain.Regions(reports)
	if len(a.opts.RegionIDs) == 0 {
		return all
	}

	names := make(map[string]string, len(all))
	for _, r := range all {
		names[r.ID] = r.Name
	}
	out := make([]domain.Region, len(a.opts.RegionIDs))
	for i, id := range a.opts.RegionIDs {
		out[i] = domain.Region{ID: id, Name: names[id]}
	}
	return out
}
