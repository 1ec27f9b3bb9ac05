// Package collector buffers analytics events from search sessions and ships
// them to a Sink in batches, off the search path.
package collector

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/analytics"
)

// Sink persists or forwards a batch of events.
type Sink interface {
	WriteBatch(ctx context.Context, events []analytics.Envelope) error
}

// maxBatches bounds the buffer, in batches, while the sink is failing.
const maxBatches = 3

// BatchCollector buffers events and flushes them to its sink when a batch
// fills up or the flush interval passes. Recording never blocks: once the
// buffer holds maxBatches batches, new events are dropped and counted.
type BatchCollector struct {
	sink          Sink
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger

	mu      sync.Mutex
	buffer  []analytics.Envelope
	flushMu sync.Mutex
	dropped atomic.Int64

	kick    chan struct{}
	started atomic.Bool
	done    chan struct{}
}

// NewBatchCollector returns a collector flushing every batchSize events or
// flushInterval, whichever comes first. Zero values default to 100 and 5s.
func NewBatchCollector(sink Sink, batchSize int, flushInterval time.Duration) *BatchCollector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &BatchCollector{
		sink:          sink,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "batch-collector"),
		buffer:        make([]analytics.Envelope, 0, batchSize),
		kick:          make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
}

// Start runs the flush loop until ctx ends, then flushes once more with a
// fresh five second deadline.
func (bc *BatchCollector) Start(ctx context.Context) {
	if !bc.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(bc.done)
		ticker := time.NewTicker(bc.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				bc.Flush(ctx)
			case <-bc.kick:
				bc.Flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				bc.Flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	bc.logger.Info("batch collector started",
		"batch_size", bc.batchSize,
		"flush_interval", bc.flushInterval,
	)
}

// Track buffers one event and wakes the flush loop when a batch is full.
func (bc *BatchCollector) Track(key string, event any) {
	bc.mu.Lock()
	if len(bc.buffer) >= bc.batchSize*maxBatches {
		bc.mu.Unlock()
		bc.dropped.Add(1)
		return
	}
	bc.buffer = append(bc.buffer, analytics.Envelope{Key: key, Event: event})
	full := len(bc.buffer) >= bc.batchSize
	bc.mu.Unlock()

	if full {
		select {
		case bc.kick <- struct{}{}:
		default:
		}
	}
}

func (bc *BatchCollector) RecordSearch(e analytics.SearchEvent) { bc.Track(e.Index, e) }

func (bc *BatchCollector) RecordCommit(e analytics.CommitEvent) { bc.Track(e.Index, e) }

// Close waits for the flush loop to finish. It returns at once when Start
// was never called.
func (bc *BatchCollector) Close() {
	if bc.started.Load() {
		<-bc.done
	}
}

// BufferLen returns the number of buffered events.
func (bc *BatchCollector) BufferLen() int {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return len(bc.buffer)
}

// Dropped returns the number of events discarded because the buffer was
// full, since the last successful flush.
func (bc *BatchCollector) Dropped() int64 {
	return bc.dropped.Load()
}

// Flush writes the buffered events to the sink. A failed batch goes back to
// the head of the buffer, and the newest events beyond maxBatches batches
// are dropped.
func (bc *BatchCollector) Flush(ctx context.Context) {
	bc.flushMu.Lock()
	defer bc.flushMu.Unlock()

	bc.mu.Lock()
	if len(bc.buffer) == 0 {
		bc.mu.Unlock()
		return
	}
	batch := bc.buffer
	bc.buffer = make([]analytics.Envelope, 0, bc.batchSize)
	bc.mu.Unlock()

	if err := bc.sink.WriteBatch(ctx, batch); err != nil {
		bc.logger.Error("batch flush failed", "batch_size", len(batch), "error", err)
		bc.mu.Lock()
		bc.buffer = append(batch, bc.buffer...)
		if limit := bc.batchSize * maxBatches; len(bc.buffer) > limit {
			n := len(bc.buffer) - limit
			bc.buffer = bc.buffer[:limit]
			bc.dropped.Add(int64(n))
		}
		bc.mu.Unlock()
		return
	}
	if n := bc.dropped.Swap(0); n > 0 {
		bc.logger.Warn("analytics events dropped while the buffer was full", "dropped", n)
	}
	bc.logger.Debug("batch flushed", "events", len(batch))
}
