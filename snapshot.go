package sanesearch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2/mapping"
	index "github.com/blevesearch/bleve_index_api"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/searcher/parser"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/metrics"
)

// TopDocs collects the Limit best hits after skipping Offset.
type TopDocs struct {
	Limit  int
	Offset int
}

// NewTopDocs collects the limit best hits.
func NewTopDocs(limit int) TopDocs {
	return TopDocs{Limit: limit}
}

// Snapshot is a point-in-time view of the committed documents. Commits made
// after it was acquired are not visible through it. A snapshot must be
// closed; it is safe for concurrent use until then.
type Snapshot struct {
	schema     *Schema
	mapping    mapping.IndexMapping
	reader     index.IndexReader
	exec       *executor.Executor
	defaults   []Field
	path       string
	indexID    string
	generation uint64

	metrics  *metrics.Metrics
	cache    *cache.QueryCache
	recorder Recorder
	logger   *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Snapshot acquires a new point-in-time view. The default search fields
// are captured as they are now.
func (s *Session) Snapshot() (*Snapshot, error) {
	const op = "open_snapshot"
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.store == nil {
		return nil, pkgerrors.Precondition(op, pkgerrors.ErrNoIndex)
	}
	return s.snapshot()
}

func (s *Session) snapshot() (*Snapshot, error) {
	r, err := s.store.Reader()
	if err != nil {
		return nil, err
	}
	gen, err := indexer.ReaderGeneration(r)
	if err != nil {
		r.Close()
		return nil, err
	}
	m := s.store.Mapping()
	snap := &Snapshot{
		schema:     s.store.Schema(),
		mapping:    m,
		reader:     r,
		exec:       executor.New(s.store.Schema(), m, r),
		defaults:   append([]Field(nil), s.defaults...),
		path:       s.store.Path(),
		indexID:    s.store.ID(),
		generation: gen,
		metrics:    s.metrics,
		cache:      s.cache,
		recorder:   s.recorder,
		logger:     s.logger,
	}
	if s.metrics != nil {
		s.metrics.OpenSnapshots.Inc()
	}
	return snap, nil
}

// SimpleSearch parses queryText against the default fields and returns the
// stored fields of the 10 best documents as JSON objects, best first.
func (s *Session) SimpleSearch(queryText string) ([]string, error) {
	const op = "simple_search"
	s.mu.RLock()
	switch {
	case s.store == nil:
		s.mu.RUnlock()
		return nil, pkgerrors.Precondition(op, pkgerrors.ErrNoSchema)
	case len(s.defaults) == 0:
		s.mu.RUnlock()
		return nil, pkgerrors.Precondition(op, pkgerrors.ErrNoDefaultFields)
	}
	snap, err := s.snapshot()
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	defer snap.Close()
	return snap.SimpleSearch(queryText)
}

// TopSearch runs q on a fresh snapshot and returns the hits selected by c
// with their scores.
func (s *Session) TopSearch(q Query, c TopDocs) ([]ScoredDocument, error) {
	const op = "top_search"
	s.mu.RLock()
	if s.store == nil {
		s.mu.RUnlock()
		return nil, pkgerrors.Precondition(op, pkgerrors.ErrNoIndex)
	}
	snap, err := s.snapshot()
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	defer snap.Close()
	return snap.TopSearch(q, c)
}

// Generation is the commit generation the snapshot observes.
func (sn *Snapshot) Generation() uint64 { return sn.generation }

// DocCount is the number of documents visible in the snapshot.
func (sn *Snapshot) DocCount() (uint64, error) {
	return sn.exec.DocCount()
}

// TopSearch runs q and returns the hits selected by c, ordered by
// descending score. Equal scores keep commit order.
func (sn *Snapshot) TopSearch(q Query, c TopDocs) ([]ScoredDocument, error) {
	const op = "top_search"
	if q == nil {
		return nil, pkgerrors.New(pkgerrors.ErrPrecondition, op, "query is nil")
	}
	start := time.Now()
	res, err := sn.exec.Execute(context.Background(), q, c.Limit, c.Offset)
	if err != nil {
		sn.observe("top", start, 0, err)
		return nil, err
	}
	sn.observe("top", start, len(res.Results), nil)
	sn.record(analytics.SearchEvent{
		Path:      "top",
		Query:     describe(q),
		TotalHits: res.TotalHits,
		Returned:  len(res.Results),
		LatencyMs: time.Since(start).Milliseconds(),
	})
	return res.Results, nil
}

// SimpleSearch is Session.SimpleSearch against this snapshot, using the
// default fields captured when it was acquired.
func (sn *Snapshot) SimpleSearch(queryText string) ([]string, error) {
	const op = "simple_search"
	if len(sn.defaults) == 0 {
		return nil, pkgerrors.Precondition(op, pkgerrors.ErrNoDefaultFields)
	}
	start := time.Now()
	q, err := parser.New(sn.schema, sn.mapping, sn.defaults).Parse(queryText)
	if err != nil {
		sn.observe("simple", start, 0, err)
		return nil, err
	}

	var totalHits uint64
	compute := func() ([]string, error) {
		res, err := sn.exec.Execute(context.Background(), q, SimpleSearchLimit, 0)
		if err != nil {
			return nil, err
		}
		totalHits = res.TotalHits
		docs := make([]string, len(res.Results))
		for i, r := range res.Results {
			docs[i] = r.Document
		}
		return docs, nil
	}

	var docs []string
	cached := false
	if sn.cache != nil {
		docs, cached, err = sn.cache.GetOrCompute(context.Background(), cache.Key{
			Index:         sn.path,
			IndexID:       sn.indexID,
			Generation:    sn.generation,
			DefaultFields: sn.defaults,
			Query:         queryText,
			Limit:         SimpleSearchLimit,
		}, compute)
	} else {
		docs, err = compute()
	}
	if err != nil {
		sn.observe("simple", start, 0, err)
		return nil, err
	}
	if n := uint64(len(docs)); cached || totalHits < n {
		totalHits = n
	}
	sn.observe("simple", start, len(docs), nil)
	sn.record(analytics.SearchEvent{
		Path:      "simple",
		Query:     queryText,
		TotalHits: totalHits,
		Returned:  len(docs),
		LatencyMs: time.Since(start).Milliseconds(),
		CacheHit:  cached,
	})
	return docs, nil
}

// Close releases the snapshot. Further calls return the first result.
func (sn *Snapshot) Close() error {
	sn.closeOnce.Do(func() {
		if err := sn.reader.Close(); err != nil {
			sn.closeErr = pkgerrors.Wrap(pkgerrors.ErrStorage, "close_snapshot", err)
		}
		if sn.metrics != nil {
			sn.metrics.OpenSnapshots.Dec()
		}
	})
	return sn.closeErr
}

func (sn *Snapshot) observe(path string, start time.Time, results int, err error) {
	elapsed := time.Since(start)
	if err != nil {
		sn.logger.Debug("search failed", "path", path, "error", err)
	} else {
		sn.logger.Debug("search completed",
			"path", path,
			"results", results,
			"generation", sn.generation,
			"latency", elapsed,
		)
	}
	if sn.metrics == nil {
		return
	}
	resultType := "hit"
	switch {
	case err != nil:
		resultType = "error"
	case results == 0:
		resultType = "zero_result"
	}
	sn.metrics.SearchQueriesTotal.WithLabelValues(path, resultType).Inc()
	sn.metrics.SearchLatency.WithLabelValues(path).Observe(elapsed.Seconds())
	if err == nil {
		sn.metrics.SearchResultsCount.Observe(float64(results))
	}
}

func (sn *Snapshot) record(e analytics.SearchEvent) {
	if sn.recorder == nil {
		return
	}
	e.Index = sn.path
	e.Generation = sn.generation
	sn.recorder.RecordSearch(analytics.NewSearchEvent(e))
}
