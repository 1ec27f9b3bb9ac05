// Package kafka provides Kafka producer and consumer clients backed by
// segmentio/kafka-go. The producer serialises events as JSON, while the
// consumer decodes them via a pluggable MessageHandler callback.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/config"
)

// MessageHandler is a callback invoked for each Kafka message.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Checkpoint makes the effects of every handled message durable. Offsets
// are only committed after it succeeds.
type Checkpoint func(ctx context.Context) error

// Consumer reads messages from a Kafka topic and dispatches them to a
// MessageHandler.
type Consumer struct {
	reader     *kafka.Reader
	logger     *slog.Logger
	handler    MessageHandler
	checkpoint Checkpoint
	every      int
	interval   time.Duration
}

// NewConsumer creates a Consumer for the given topic and handler. Without a
// checkpoint every handled message is committed immediately.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})

	return &Consumer{
		reader:  r,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
		handler: handler,
	}
}

// WithCheckpoint defers offset commits until fn has run. fn runs after
// every handled messages or once interval has passed with messages pending,
// and once more on shutdown.
func (c *Consumer) WithCheckpoint(fn Checkpoint, every int, interval time.Duration) *Consumer {
	if every <= 0 {
		every = 1
	}
	c.checkpoint = fn
	c.every = every
	c.interval = interval
	return c
}

// Start enters the consume loop, fetching and processing messages until ctx
// is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	var pending []kafka.Message
	lastCheckpoint := time.Now()

	flush := func(ctx context.Context) {
		if len(pending) == 0 {
			return
		}
		if c.checkpoint != nil {
			if err := c.checkpoint(ctx); err != nil {
				c.logger.Error("checkpoint failed", "pending", len(pending), "error", err)
				return
			}
		}
		if err := c.reader.CommitMessages(ctx, pending...); err != nil {
			c.logger.Error("failed to commit messages", "count", len(pending), "error", err)
			return
		}
		c.logger.Debug("offsets committed", "count", len(pending))
		pending = pending[:0]
		lastCheckpoint = time.Now()
	}

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping", "reason", ctx.Err())
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			flush(shutdownCtx)
			cancel()
			return c.reader.Close()
		default:
		}

		fetchCtx, cancel := ctx, context.CancelFunc(func() {})
		if len(pending) > 0 && c.interval > 0 {
			fetchCtx, cancel = context.WithDeadline(ctx, lastCheckpoint.Add(c.interval))
		}
		msg, err := c.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			if errors.Is(err, context.DeadlineExceeded) {
				flush(ctx)
				continue
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}
		c.logger.Debug("message received",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"value_size", len(msg.Value),
		)
		if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
			c.logger.Error("failed to process message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			continue
		}
		pending = append(pending, msg)
		if c.checkpoint == nil || len(pending) >= c.every {
			flush(ctx)
		}
	}
}

// Close closes the underlying Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON is a generic helper that unmarshals a Kafka message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
