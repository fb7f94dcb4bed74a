package main

import (
	"log/slog"

	"github.com/couchcryptid/case-trend-etl/internal/adapter/csvsource"
	kafkaadapter "github.com/couchcryptid/case-trend-etl/internal/adapter/kafka"
	"github.com/couchcryptid/case-trend-etl/internal/adapter/xlsx"
	"github.com/couchcryptid/case-trend-etl/internal/config"
	"github.com/couchcryptid/case-trend-etl/internal/domain"
	"github.com/couchcryptid/case-trend-etl/internal/observability"
	"github.com/couchcryptid/case-trend-etl/internal/pipeline"
)

// buildPipeline wires the CSV source and analyzer from cfg. Sinks are
// supplied by the caller.
func buildPipeline(cfg *config.Config, sinks []pipeline.Sink, logger *slog.Logger, metrics *observability.Metrics) (*pipeline.Pipeline, error) {
	layout, err := config.LoadProfile(cfg.DatasetProfile)
	if err != nil {
		return nil, err
	}
	cal, err := cfg.Calendar()
	if err != nil {
		return nil, err
	}

	var population domain.PopulationLookup
	if cfg.PopulationPath != "" {
		table, err := csvsource.LoadPopulation(cfg.PopulationPath, ';')
		if err != nil {
			return nil, err
		}
		logger.Info("population table loaded", "path", cfg.PopulationPath, "regions", table.Len())
		population = table
	}

	analyzer := pipeline.NewAnalyzer(cal, pipeline.Options{
		StateName: cfg.StateName,
		RegionIDs: cfg.RegionIDs,
		Aggregate: domain.AggregateOptions{
			Policy:      cfg.AggregationPolicy,
			DateLayouts: layout.DateLayouts,
		},
		Summary: domain.SummaryOptions{
			CareShare:   cfg.CareShare,
			CareHorizon: domain.DefaultCareHorizon,
			Capacity:    cfg.CareCapacity,
			Population:  population,
		},
		RankSize: cfg.RankSize,
		Workers:  cfg.Workers,
	}, logger, metrics)

	source := csvsource.NewReader(cfg.DatasetPath, layout, logger)
	return pipeline.New(source, analyzer, sinks, logger, metrics), nil
}

// outputSinks returns the file and broker sinks enabled by cfg, plus a
// cleanup func closing the Kafka writer.
func outputSinks(cfg *config.Config, xlsxPath string, logger *slog.Logger) ([]pipeline.Sink, func()) {
	var sinks []pipeline.Sink
	cleanup := func() {}

	if xlsxPath != "" {
		sinks = append(sinks, xlsx.NewFile(xlsxPath, logger))
	}
	if cfg.KafkaEnabled() {
		writer := kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, writer)
		cleanup = func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	}
	return sinks, cleanup
}
