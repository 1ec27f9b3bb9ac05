// Package consumer feeds documents from a Kafka topic into a search
// session's writer. Offsets are committed only after the session commit that
// made the documents durable, so delivery is at least once.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/ingestion"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/kafka"
)

// Writer is the part of a search session the feeder drives.
type Writer interface {
	AddDocument(jsonText string) error
	Commit() error
}

// Feeder turns ingest events into AddDocument calls and commits.
type Feeder struct {
	writer   Writer
	mu       sync.Mutex
	added    int
	rejected int
	logger   *slog.Logger
}

func New(w Writer) *Feeder {
	return &Feeder{
		writer: w,
		logger: slog.Default().With("component", "ingest-feeder"),
	}
}

// HandleMessage returns a Kafka MessageHandler decoding ingestion.IngestEvent
// values. Undecodable messages and documents the schema rejects are logged
// and skipped so they do not block the partition.
func (f *Feeder) HandleMessage() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		doc, err := documentOf(value)
		if err != nil {
			f.logger.Error("failed to decode ingest event", "key", string(key), "error", err)
			f.count(false)
			return nil
		}
		if err := f.writer.AddDocument(doc); err != nil {
			if errors.Is(err, pkgerrors.ErrDocumentValidation) {
				f.logger.Warn("document rejected", "key", string(key), "error", err)
				f.count(false)
				return nil
			}
			return fmt.Errorf("adding document %q: %w", key, err)
		}
		f.count(true)
		f.logger.Debug("document buffered", "key", string(key))
		return nil
	}
}

// Checkpoint commits the session. It is the consumer's offset barrier.
func (f *Feeder) Checkpoint(ctx context.Context) error {
	start := time.Now()
	if err := f.writer.Commit(); err != nil {
		return fmt.Errorf("committing index: %w", err)
	}
	added, rejected := f.Stats()
	f.logger.Info("index checkpoint",
		"added_total", added,
		"rejected_total", rejected,
		"latency", time.Since(start),
	)
	return nil
}

// Stats returns the number of documents buffered and rejected so far.
func (f *Feeder) Stats() (added, rejected int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.added, f.rejected
}

func (f *Feeder) count(ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ok {
		f.added++
	} else {
		f.rejected++
	}
}

func documentOf(value []byte) (string, error) {
	event, err := kafka.DecodeJSON[ingestion.IngestEvent](value)
	if err != nil {
		return "", err
	}
	if len(event.Document) == 0 {
		return "", fmt.Errorf("ingest event has no document")
	}
	return string(event.Document), nil
}
