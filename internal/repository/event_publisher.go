package repository

import (
	"context"
	"strconv"

	"ChartDash/internal/domain/models"
	drepo "ChartDash/internal/domain/repository"
	pkgkafka "ChartDash/pkg/kafka"
)

// SourceHeader carries the publishing instance id on chart events.
const SourceHeader = "chartdash-source"

// eventProducer is the part of pkg/kafka.Producer used by KafkaPublisher.
type eventProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}, headers ...pkgkafka.Header) error
	Close() error
}

// KafkaPublisher implements EventPublisher for Kafka.
type KafkaPublisher struct {
	producer eventProducer
	topic    string
}

// NewKafkaPublisher creates a Kafka publisher for chart events.
func NewKafkaPublisher(producer eventProducer, topic string) drepo.EventPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// PublishChartEvent keys the message by chart id so events of one chart stay ordered.
func (p *KafkaPublisher) PublishChartEvent(ctx context.Context, ev models.ChartEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(strconv.Itoa(ev.ChartID)), ev,
		pkgkafka.Header{Key: SourceHeader, Value: ev.Source},
	)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NoopPublisher drops chart events when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishChartEvent(context.Context, models.ChartEvent) error { return nil }

func (NoopPublisher) Close() error { return nil }
