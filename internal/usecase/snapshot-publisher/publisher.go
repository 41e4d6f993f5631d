package snapshotpublisher

import (
	"context"
	"encoding/json"

	marketv1 "github.com/muhammadchandra19/mbp-engine/internal/domain/market/v1"
	"github.com/muhammadchandra19/mbp-engine/pkg/config"
	"github.com/muhammadchandra19/mbp-engine/pkg/errors"
	"github.com/muhammadchandra19/mbp-engine/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// Publisher mirrors emitted snapshots to a Kafka topic as JSON. The CSV
// file stays the authoritative output; the mirror is best-effort.
type Publisher struct {
	kafkaWriter *kafka.Writer
	logger      logger.Interface
}

// NewPublisher creates a Kafka publisher for emitted snapshots.
func NewPublisher(cfg config.KafkaConfig, log logger.Interface) *Publisher {
	kafkaWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
	})

	return &Publisher{
		kafkaWriter: kafkaWriter,
		logger:      log,
	}
}

// PublishSnapshot publishes one snapshot to the mirror topic.
func (p *Publisher) PublishSnapshot(ctx context.Context, snapshot *marketv1.Snapshot) error {
	value, err := json.Marshal(snapshot)
	if err != nil {
		return errors.NewTracer("failed to marshal snapshot").Wrap(err)
	}

	msg := kafka.Message{
		Value: value,
	}

	if err := p.kafkaWriter.WriteMessages(ctx, msg); err != nil {
		p.logger.Error(err,
			logger.Field{Key: "sequence", Value: snapshot.Sequence},
			logger.Field{Key: "topic", Value: p.kafkaWriter.Topic},
		)
		return errors.NewTracer("failed to publish snapshot").Wrap(err)
	}
	return nil
}

// Close closes the underlying Kafka writer.
func (p *Publisher) Close() error {
	return p.kafkaWriter.Close()
}
