package repository

import (
	"context"

	"EnergyPull/internal/domain/models"
	pkgkafka "EnergyPull/pkg/kafka"
)

type messagePublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaRunPublisher announces finished datasets on a Kafka topic, keyed by run date.
type KafkaRunPublisher struct {
	producer messagePublisher
	topic    string
}

func NewKafkaRunPublisher(producer *pkgkafka.Producer, topic string) *KafkaRunPublisher {
	return &KafkaRunPublisher{producer: producer, topic: topic}
}

func (p *KafkaRunPublisher) PublishDatasetReady(ctx context.Context, ev models.DatasetReadyEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(ev.RunDate), ev)
}

func (p *KafkaRunPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NoopRunPublisher is used when Kafka is disabled.
type NoopRunPublisher struct{}

func (NoopRunPublisher) PublishDatasetReady(context.Context, models.DatasetReadyEvent) error {
	return nil
}
func (NoopRunPublisher) Close() error { return nil }
