package collector

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/kafka"
)

// Publisher is the subset of *kafka.Producer the kafka sink needs.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// KafkaSink forwards batches to the analytics topic, where an Aggregator
// consumes them through analytics.HandleEvent.
type KafkaSink struct {
	producer Publisher
}

func NewKafkaSink(producer Publisher) *KafkaSink {
	return &KafkaSink{producer: producer}
}

func (s *KafkaSink) WriteBatch(ctx context.Context, events []analytics.Envelope) error {
	out := make([]kafka.Event, len(events))
	for i, e := range events {
		out[i] = kafka.Event{Key: e.Key, Value: e.Event}
	}
	return s.producer.PublishBatch(ctx, out)
}
