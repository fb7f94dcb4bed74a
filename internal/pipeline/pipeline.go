package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/case-trend-etl/internal/domain"
	"github.com/couchcryptid/case-trend-etl/internal/observability"
)

// Source loads the raw notification rows of one dataset snapshot.
type Source interface {
	Load(ctx context.Context) ([]domain.RawReport, error)
}

// Sink publishes a finished report.
type Sink interface {
	Name() string
	Publish(ctx context.Context, report *domain.Report) error
}

// Pipeline orchestrates the extract-analyze-publish cycle.
type Pipeline struct {
	source   Source
	analyzer *Analyzer
	sinks    []Sink
	logger   *slog.Logger
	metrics  *observability.Metrics
	latest   atomic.Pointer[domain.Report]
}

// New creates a Pipeline with the given stages and observability.
func New(source Source, analyzer *Analyzer, sinks []Sink, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		source:   source,
		analyzer: analyzer,
		sinks:    sinks,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once a report is available, or an error
// describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.latest.Load() == nil {
		return errors.New("no analysis run has completed yet")
	}
	return nil
}

// Latest returns the most recent report.
func (p *Pipeline) Latest() (*domain.Report, bool) {
	r := p.latest.Load()
	return r, r != nil
}

// RunOnce performs one extract-analyze-publish cycle. Sink failures are
// logged and counted; the report is still returned and kept as latest.
func (p *Pipeline) RunOnce(ctx context.Context) (*domain.Report, error) {
	start := time.Now()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	reports, err := p.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("extract reports: %w", err)
	}
	p.metrics.RowsIngested.Add(float64(len(reports)))
	for _, r := range reports {
		if r.Malformed != "" {
			p.metrics.RowsRejected.Inc()
		}
	}

	report, err := p.analyzer.Analyze(ctx, reports)
	if err != nil {
		return nil, fmt.Errorf("analyze reports: %w", err)
	}
	p.latest.Store(report)

	for _, s := range p.sinks {
		if err := s.Publish(ctx, report); err != nil {
			p.logger.Error("publish report failed", "sink", s.Name(), "run_id", report.RunID, "error", err)
			p.metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
			continue
		}
		p.metrics.ReportsPublished.WithLabelValues(s.Name()).Inc()
	}

	p.metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	p.metrics.LastRunTimestamp.Set(float64(report.GeneratedAt.Unix()))
	return report, nil
}

// Run repeats the cycle every interval until the context is cancelled. With
// a zero interval it runs once. Failed runs are retried with exponential
// backoff; a ConfigError stops the loop because retrying cannot fix it.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration) error {
	p.logger.Info("pipeline started", "interval", interval)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	initialBackoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second
	backoff := initialBackoff

	for {
		_, err := p.RunOnce(ctx)
		switch {
		case err == nil:
			backoff = initialBackoff
			if interval <= 0 {
				return nil
			}
			if !sleepWithContext(ctx, interval) {
				p.logger.Info("pipeline stopping", "reason", ctx.Err())
				return nil
			}
		case ctx.Err() != nil:
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		case domain.IsFatal(err):
			return err
		default:
			p.logger.Error("analysis run failed", "error", err, "retry_in", backoff)
			if !sleepWithContext(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff, maxBackoff)
		}
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
