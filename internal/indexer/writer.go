package indexer

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/ingestion"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/metrics"
)

// MinHeapSize is the smallest heap budget a write session accepts.
const MinHeapSize = 3_000_000

// Writer is the single write session of an index. Documents are buffered in
// memory until the heap budget is reached, then spilled to private segment
// files. Nothing is visible to searchers before Commit.
type Writer struct {
	mu       sync.Mutex
	store    *Store
	heapSize int64
	buffer   *index.MemoryBuffer
	spillDir string
	segments *segment.Writer
	spilled  int
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewWriter opens a write session on store. m may be nil.
func NewWriter(store *Store, heapSize int, m *metrics.Metrics) (*Writer, error) {
	if heapSize < MinHeapSize {
		return nil, pkgerrors.Newf(pkgerrors.ErrConfiguration, "create_writer",
			"heap size %d is below the minimum of %d bytes", heapSize, MinHeapSize)
	}
	w := &Writer{
		store:    store,
		heapSize: int64(heapSize),
		buffer:   index.NewMemoryBuffer(),
		metrics:  m,
		logger:   slog.Default().With("component", "index-writer", "path", store.Path()),
	}
	w.logger.Info("writer created", "heap_size", heapSize)
	return w, nil
}

// Add buffers doc. When the buffer reaches the heap budget it is spilled to
// disk. If the spill fails doc is taken back out, so the error leaves the
// pending documents exactly as they were before the call.
func (w *Writer) Add(doc ingestion.Document) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	size := w.buffer.Add(doc)
	w.observeBuffer(size)
	w.logger.Debug("document buffered",
		"buffered_docs", w.buffer.DocCount(),
		"buffered_bytes", size,
	)
	if size >= w.heapSize {
		w.logger.Info("writer buffer reached heap budget, spilling to disk",
			"size", size,
			"threshold", w.heapSize,
		)
		if err := w.spill(); err != nil {
			w.observeBuffer(w.buffer.Pop())
			return pkgerrors.Wrap(pkgerrors.ErrStorage, "add_document", err)
		}
	}
	return nil
}

func (w *Writer) spill() error {
	docs := w.buffer.Snapshot()
	if len(docs) == 0 {
		return nil
	}
	if w.spillDir == "" {
		dir, err := os.MkdirTemp("", "sanesearch-spill-*")
		if err != nil {
			return fmt.Errorf("creating spill directory: %w", err)
		}
		w.spillDir = dir
		w.segments = segment.NewWriter(dir)
	}
	name, err := w.segments.Write(docs)
	if err != nil {
		return fmt.Errorf("writing spill segment: %w", err)
	}
	w.spilled += len(docs)
	w.buffer.Reset()
	w.observeBuffer(0)
	if w.metrics != nil {
		w.metrics.SpillsTotal.Inc()
	}
	w.logger.Info("spill segment written",
		"segment", name,
		"docs", len(docs),
		"spilled_docs", w.spilled,
	)
	return nil
}

// Commit makes every pending document visible to snapshots opened
// afterwards, in the order they were added. On failure the pending documents
// stay in place and Commit may be retried.
func (w *Writer) Commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now()
	err := w.commit()
	if w.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		w.metrics.CommitsTotal.WithLabelValues(status).Inc()
		w.metrics.CommitDuration.Observe(time.Since(start).Seconds())
	}
	return err
}

func (w *Writer) commit() error {
	const op = "commit"

	next, err := w.store.nextDoc()
	if err != nil {
		return err
	}
	gen, err := w.store.Generation()
	if err != nil {
		return err
	}
	first := next

	batch := w.store.idx.NewBatch()
	add := func(doc ingestion.Document) error {
		if err := batch.Index(DocID(next), doc.Indexable()); err != nil {
			return fmt.Errorf("indexing document %d: %w", next, err)
		}
		next++
		return nil
	}
	if err := w.replaySpills(add); err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrStorage, op, err)
	}
	for _, doc := range w.buffer.Snapshot() {
		if err := add(doc); err != nil {
			return pkgerrors.Wrap(pkgerrors.ErrStorage, op, err)
		}
	}
	batch.SetInternal(keyNextDoc, encodeCounter(next))
	batch.SetInternal(keyGeneration, encodeCounter(gen+1))

	if err := w.store.idx.Batch(batch); err != nil {
		w.logger.Error("commit failed", "error", err, "pending", w.pending())
		return pkgerrors.Wrap(pkgerrors.ErrStorage, op, err)
	}

	committed := next - first
	w.buffer.Reset()
	w.observeBuffer(0)
	w.discardSpills()
	w.logger.Info("commit complete",
		"docs", committed,
		"generation", gen+1,
	)
	return nil
}

func (w *Writer) replaySpills(add func(ingestion.Document) error) error {
	if w.spillDir == "" {
		return nil
	}
	paths, err := segment.List(w.spillDir)
	if err != nil {
		return err
	}
	for _, p := range paths {
		r, err := segment.OpenReader(p)
		if err != nil {
			return err
		}
		if err := r.Each(add); err != nil {
			return err
		}
	}
	return nil
}

// Release discards every pending document, spilled or buffered.
func (w *Writer) Release() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	dropped := w.pending()
	w.buffer.Reset()
	w.observeBuffer(0)
	w.discardSpills()
	w.logger.Info("writer released", "discarded_docs", dropped)
	return nil
}

func (w *Writer) discardSpills() {
	if w.spillDir == "" {
		return
	}
	if err := os.RemoveAll(w.spillDir); err != nil {
		w.logger.Error("removing spill directory", "dir", w.spillDir, "error", err)
	}
	w.spillDir = ""
	w.segments = nil
	w.spilled = 0
}

// Pending is the number of documents added since the last commit.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending()
}

func (w *Writer) pending() int {
	return w.spilled + w.buffer.DocCount()
}

// BufferedBytes is the estimated size of documents held in memory.
func (w *Writer) BufferedBytes() int64 {
	return w.buffer.Size()
}

// SpillDir is the private directory holding spill segments, or "" when
// nothing has been spilled since the last commit.
func (w *Writer) SpillDir() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.spillDir
}

func (w *Writer) observeBuffer(size int64) {
	if w.metrics != nil {
		w.metrics.WriterBufferedBytes.Set(float64(size))
	}
}
