package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/case-trend-etl/internal/config"
	"github.com/couchcryptid/case-trend-etl/internal/domain"
)

// Message kinds carried in the "kind" header.
const (
	KindState         = "state"
	KindRegionSummary = "region_summary"
	KindRegionFailure = "region_failure"
	KindRanking       = "ranking"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer produces report messages to a Kafka topic.
// It implements pipeline.Sink.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "kafka" }

// Publish writes the state summary, one message per region summary and
// failure, and the ranking in a single WriteMessages call. Region messages
// are keyed by region ID so updates for a region stay on one partition.
func (w *Writer) Publish(ctx context.Context, report *domain.Report) error {
	msgs, err := reportMessages(report)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write report messages: %w", err)
	}
	w.logger.Info("report published", "run_id", report.RunID, "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func reportMessages(report *domain.Report) ([]kafkago.Message, error) {
	msgs := make([]kafkago.Message, 0, len(report.Regions)+len(report.Failures)+2)

	state, err := serializeToMessage(report, KindState, "state", report.State)
	if err != nil {
		return nil, err
	}
	msgs = append(msgs, state)

	for _, s := range report.Regions {
		msg, err := serializeToMessage(report, KindRegionSummary, s.RegionID, s)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	for _, f := range report.Failures {
		msg, err := serializeToMessage(report, KindRegionFailure, f.RegionID, f)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}

	ranking, err := serializeToMessage(report, KindRanking, "ranking", report.Ranking)
	if err != nil {
		return nil, err
	}
	return append(msgs, ranking), nil
}

// serializeToMessage marshals one part of a report into a Kafka message.
func serializeToMessage(report *domain.Report, kind, key string, v any) (kafkago.Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s %s: %w", kind, key, err)
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(report.RunID)},
			{Key: "kind", Value: []byte(kind)},
			{Key: "generated_at", Value: []byte(report.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
