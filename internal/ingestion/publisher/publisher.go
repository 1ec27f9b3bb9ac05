// Package publisher validates documents against the index schema and queues
// them on Kafka for a feeder to index. Invalid documents are rejected before
// they reach the topic.
package publisher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/schema"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/kafka"
)

// StatusQueued is reported for documents accepted onto the topic.
const StatusQueued = "QUEUED"

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Publisher turns ingest requests into ingest events.
type Publisher struct {
	producer EventPublisher
	schema   *schema.Schema
	logger   *slog.Logger
}

// New creates a Publisher validating against s.
func New(producer EventPublisher, s *schema.Schema) *Publisher {
	return &Publisher{
		producer: producer,
		schema:   s,
		logger:   slog.Default().With("component", "publisher"),
	}
}

// Ingest validates one document and publishes it.
func (p *Publisher) Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	event, err := p.event(req)
	if err != nil {
		return nil, err
	}
	if err := p.producer.Publish(ctx, event); err != nil {
		return nil, fmt.Errorf("publishing document %q: %w", event.Key, err)
	}
	p.logger.Debug("document queued", "key", event.Key)
	return &ingestion.IngestResponse{Key: event.Key, Status: StatusQueued}, nil
}

// IngestBatch validates every document first and publishes them in one
// write. Nothing is published when any document is invalid; the error names
// the offending position.
func (p *Publisher) IngestBatch(ctx context.Context, reqs []ingestion.IngestRequest) ([]ingestion.IngestResponse, error) {
	events := make([]kafka.Event, 0, len(reqs))
	for i := range reqs {
		event, err := p.event(&reqs[i])
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		events = append(events, event)
	}
	if len(events) == 0 {
		return nil, nil
	}
	if err := p.producer.PublishBatch(ctx, events); err != nil {
		return nil, fmt.Errorf("publishing %d documents: %w", len(events), err)
	}
	resp := make([]ingestion.IngestResponse, len(events))
	for i, e := range events {
		resp[i] = ingestion.IngestResponse{Key: e.Key, Status: StatusQueued}
	}
	p.logger.Info("batch queued", "count", len(events))
	return resp, nil
}

func (p *Publisher) event(req *ingestion.IngestRequest) (kafka.Event, error) {
	if _, err := validator.ValidateDocument(p.schema, string(req.Document)); err != nil {
		return kafka.Event{}, err
	}
	key := req.Key
	if key == "" {
		key = ContentKey(req.Document)
	}
	return kafka.Event{
		Key: key,
		Value: ingestion.IngestEvent{
			Key:        key,
			Document:   req.Document,
			IngestedAt: time.Now().UTC(),
		},
	}, nil
}

// ContentKey derives a partition key from the document bytes, so identical
// submissions land on the same partition.
func ContentKey(doc []byte) string {
	sum := sha256.Sum256(doc)
	return hex.EncodeToString(sum[:8])
}
