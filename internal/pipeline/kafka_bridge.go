package pipeline

import (
	"context"

	"MarketSentry/internal/domain/models"
	"MarketSentry/pkg/kafka"
	"MarketSentry/pkg/logger"
)

// KafkaBridge fans metric samples and alerts out to Kafka for downstream
// consumers outside this process. It is wired in only when brokers are
// configured; every call is a no-op on a nil *KafkaBridge so the pipeline
// and notify dispatcher can hold an optional reference without branching.
type KafkaBridge struct {
	producer      *kafka.Producer
	snapshotTopic string
	alertTopic    string
	log           *logger.Logger
}

// NewKafkaBridge builds a bridge over an already-constructed producer.
func NewKafkaBridge(producer *kafka.Producer, snapshotTopic, alertTopic string, log *logger.Logger) *KafkaBridge {
	return &KafkaBridge{producer: producer, snapshotTopic: snapshotTopic, alertTopic: alertTopic, log: log}
}

// PublishSample fans one derived metric sample out to the snapshot topic,
// keyed by venue:instrument so a consumer-side partition sees one
// instrument's samples in order.
func (b *KafkaBridge) PublishSample(ctx context.Context, s models.MetricSample) {
	if b == nil || b.producer == nil {
		return
	}
	key := []byte(s.Venue + ":" + s.Instrument)
	if err := b.producer.Publish(ctx, b.snapshotTopic, key, s); err != nil && b.log != nil {
		b.log.Warn("kafka snapshot publish failed", logger.String("venue", s.Venue), logger.Error(err))
	}
}

// Name implements notify.Channel, letting an alert definition opt a bridge
// into the same dispatch path as the console and Slack channels.
func (b *KafkaBridge) Name() string { return "kafka" }

// Send implements notify.Channel.
func (b *KafkaBridge) Send(ctx context.Context, alert *models.Alert) error {
	if b == nil || b.producer == nil {
		return nil
	}
	key := []byte(alert.Venue + ":" + alert.Instrument)
	return b.producer.Publish(ctx, b.alertTopic, key, alert)
}
