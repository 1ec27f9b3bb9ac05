package sanesearch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/schema"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/searcher/parser"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/metrics"
)

// State is the lifecycle position of a Session.
type State int

const (
	// StateEmpty has no index.
	StateEmpty State = iota
	// StateHasIndex has an open index and no writer.
	StateHasIndex
	// StateHasWriter has an open index and its write session.
	StateHasWriter
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateHasIndex:
		return "has_index"
	case StateHasWriter:
		return "has_writer"
	default:
		return "unknown"
	}
}

// Session owns one index, its optional writer and the default search
// fields.
//
// Lifecycle calls are serialized internally. Searches only hold the session
// lock while acquiring a snapshot, so they never wait for a commit. Writer
// calls (AddDocument, Commit) are expected from one goroutine at a time. No
// two sessions may write to the same path.
type Session struct {
	mu       sync.RWMutex
	store    *indexer.Store
	writer   *indexer.Writer
	defaults []Field

	metrics    *metrics.Metrics
	cacheStore CacheStore
	cacheTTL   time.Duration
	cache      *cache.QueryCache
	recorder   Recorder
	logger     *slog.Logger
}

// New returns an empty session.
func New(opts ...Option) *Session {
	s := &Session{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "search-session")
	if s.cacheStore != nil {
		s.cache = cache.New(s.cacheStore, s.cacheTTL, s.metrics)
	}
	return s
}

// State reports where the session is in its lifecycle.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state()
}

func (s *Session) state() State {
	switch {
	case s.writer != nil:
		return StateHasWriter
	case s.store != nil:
		return StateHasIndex
	default:
		return StateEmpty
	}
}

// CreateIndex creates a new index at path bound to sch. The session must be
// empty. On failure the session stays empty.
func (s *Session) CreateIndex(sch *Schema, path string) error {
	const op = "create_index"
	s.mu.Lock()
	defer s.mu.Unlock()

	if sch == nil {
		return pkgerrors.Precondition(op, pkgerrors.ErrNoSchema)
	}
	if s.store != nil {
		return pkgerrors.Precondition(op, pkgerrors.ErrIndexExists)
	}
	if path == "" {
		return pkgerrors.New(pkgerrors.ErrConfiguration, op, "index path is empty")
	}
	st, err := indexer.Create(path, sch)
	if err != nil {
		s.logger.Error("create index failed", "path", path, "error", err)
		return err
	}
	s.store = st
	s.defaults = nil
	s.logger.Info("index created", "path", path, "fields", sch.Len())
	return nil
}

// OpenIndex opens the index at path. Its schema is read back from the
// index itself.
func (s *Session) OpenIndex(path string) error {
	const op = "open_index"
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store != nil {
		return pkgerrors.Precondition(op, pkgerrors.ErrIndexExists)
	}
	st, err := indexer.Open(path)
	if err != nil {
		s.logger.Error("open index failed", "path", path, "error", err)
		return err
	}
	s.store = st
	s.defaults = nil
	s.logger.Info("index opened", "path", path, "fields", st.Schema().Len())
	return nil
}

// CreateWriter acquires the write session with a heap budget of
// heapSizeBytes. When a writer is already held this is a no-op and its
// pending documents are kept.
func (s *Session) CreateWriter(heapSizeBytes int) error {
	const op = "create_writer"
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		return pkgerrors.Precondition(op, pkgerrors.ErrNoIndex)
	}
	if s.writer != nil {
		s.logger.Debug("writer already held", "pending", s.writer.Pending())
		return nil
	}
	w, err := indexer.NewWriter(s.store, heapSizeBytes, s.metrics)
	if err != nil {
		return err
	}
	s.writer = w
	return nil
}

// AddDocument validates jsonText against the schema and buffers it. An
// invalid document leaves the buffer untouched.
func (s *Session) AddDocument(jsonText string) error {
	const op = "add_document"
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.writer == nil {
		return pkgerrors.Precondition(op, pkgerrors.ErrNoWriter)
	}
	doc, err := validator.ValidateDocument(s.store.Schema(), jsonText)
	if err != nil {
		s.countDoc("invalid")
		s.logger.Debug("document rejected", "error", err)
		return err
	}
	if err := s.writer.Add(doc); err != nil {
		s.countDoc("error")
		return err
	}
	s.countDoc("buffered")
	return nil
}

// Commit makes every pending document visible to snapshots acquired
// afterwards. On failure the pending documents are kept for a retry.
func (s *Session) Commit() error {
	const op = "commit"
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.writer == nil {
		return pkgerrors.Precondition(op, pkgerrors.ErrNoWriter)
	}
	start := time.Now()
	pending := s.writer.Pending()
	if err := s.writer.Commit(); err != nil {
		return err
	}
	gen, err := s.store.Generation()
	if err != nil {
		return err
	}
	if s.recorder != nil {
		s.recorder.RecordCommit(analytics.NewCommitEvent(analytics.CommitEvent{
			Index:      s.store.Path(),
			Documents:  pending,
			Generation: gen,
			LatencyMs:  time.Since(start).Milliseconds(),
		}))
	}
	return nil
}

// ReleaseWriter discards the writer and every uncommitted document.
func (s *Session) ReleaseWriter() error {
	const op = "release_writer"
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer == nil {
		return pkgerrors.Precondition(op, pkgerrors.ErrNoWriter)
	}
	err := s.writer.Release()
	s.writer = nil
	return err
}

// SetDefaultFields selects the fields SimpleSearch matches unqualified
// terms against. Facet fields cannot be defaults. An empty call clears the
// selection.
func (s *Session) SetDefaultFields(fields ...Field) error {
	const op = "set_default_fields"
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		return pkgerrors.Precondition(op, pkgerrors.ErrNoSchema)
	}
	sch := s.store.Schema()
	for _, f := range fields {
		e, ok := sch.Entry(f)
		if !ok {
			return pkgerrors.Newf(pkgerrors.ErrConfiguration, op, "unknown field %d", f)
		}
		if e.Kind == schema.KindFacet {
			return pkgerrors.Newf(pkgerrors.ErrConfiguration, op,
				"facet field %q cannot be a default search field", e.Name)
		}
	}
	s.defaults = append([]Field(nil), fields...)
	return nil
}

// DefaultFields returns a copy of the default search fields.
func (s *Session) DefaultFields() []Field {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Field(nil), s.defaults...)
}

// Schema returns the schema of the open index, or nil.
func (s *Session) Schema() *Schema {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return nil
	}
	return s.store.Schema()
}

// Path returns the directory of the open index, or "".
func (s *Session) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return ""
	}
	return s.store.Path()
}

// DocCount is the number of committed documents.
func (s *Session) DocCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return 0, pkgerrors.Precondition("doc_count", pkgerrors.ErrNoIndex)
	}
	return s.store.DocCount()
}

// Generation is the number of successful commits since the index was
// created.
func (s *Session) Generation() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return 0, pkgerrors.Precondition("generation", pkgerrors.ErrNoIndex)
	}
	return s.store.Generation()
}

// Pending is the number of documents the writer holds uncommitted.
func (s *Session) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.writer == nil {
		return 0
	}
	return s.writer.Pending()
}

// ParseQuery parses text with the default-field parser used by
// SimpleSearch.
func (s *Session) ParseQuery(text string) (Query, error) {
	const op = "parse_query"
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return nil, pkgerrors.Precondition(op, pkgerrors.ErrNoIndex)
	}
	return parser.New(s.store.Schema(), s.store.Mapping(), s.defaults).Parse(text)
}

// CacheStats reports result cache hits and misses. ok is false when the
// session has no result cache.
func (s *Session) CacheStats() (hits, misses int64, ok bool) {
	if s.cache == nil {
		return 0, 0, false
	}
	hits, misses = s.cache.Stats()
	return hits, misses, true
}

// InvalidateCache drops every cached result. Without a result cache it is a
// no-op.
func (s *Session) InvalidateCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx)
}

// Close discards the writer, closes the index and returns the session to
// StateEmpty. Closing an empty session is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		return nil
	}
	if s.writer != nil {
		if err := s.writer.Release(); err != nil {
			s.logger.Error("releasing writer on close", "error", err)
		}
		s.writer = nil
	}
	err := s.store.Close()
	s.store = nil
	s.defaults = nil
	return err
}

func (s *Session) countDoc(outcome string) {
	if s.metrics != nil {
		s.metrics.DocsAddedTotal.WithLabelValues(outcome).Inc()
	}
}
