// Package indexer owns the persisted index: creating and opening it, the
// write session that buffers and commits documents, and the bookkeeping kept
// alongside the documents.
package indexer

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	index "github.com/blevesearch/bleve_index_api"
	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/schema"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/errors"
)

// Internal metadata keys stored next to the documents.
var (
	keySchema     = []byte("_sanesearch/schema")
	keyGeneration = []byte("_sanesearch/generation")
	keyNextDoc    = []byte("_sanesearch/next_doc")
	keyIdentity   = []byte("_sanesearch/id")
)

// Store is an open index together with the schema it was created with.
type Store struct {
	idx    bleve.Index
	schema *schema.Schema
	path   string
	id     string
	logger *slog.Logger
}

// Create builds a new index at path from s. Nothing is left behind when
// creation fails after the engine has started writing.
func Create(path string, s *schema.Schema) (*Store, error) {
	const op = "create_index"

	im, err := s.IndexMapping()
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(s)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrConfiguration, op, err)
	}
	_, statErr := os.Stat(path)
	existed := statErr == nil

	idx, err := bleve.New(path, im)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrStorage, op, fmt.Errorf("creating index at %s: %w", path, err))
	}
	id := uuid.NewString()
	batch := idx.NewBatch()
	batch.SetInternal(keyIdentity, []byte(id))
	batch.SetInternal(keySchema, encoded)
	batch.SetInternal(keyGeneration, encodeCounter(0))
	batch.SetInternal(keyNextDoc, encodeCounter(0))
	if err := idx.Batch(batch); err != nil {
		idx.Close()
		removeIndexFiles(path, existed)
		return nil, pkgerrors.Wrap(pkgerrors.ErrStorage, op, fmt.Errorf("persisting schema: %w", err))
	}

	st := &Store{
		idx:    idx,
		schema: s,
		path:   path,
		id:     id,
		logger: slog.Default().With("component", "index-store", "path", path),
	}
	st.logger.Info("index created", "fields", s.Len(), "id", id)
	return st, nil
}

// Open loads an existing index and recovers its schema.
func Open(path string) (*Store, error) {
	const op = "open_index"

	idx, err := bleve.Open(path)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrStorage, op, fmt.Errorf("opening index at %s: %w", path, err))
	}
	raw, err := idx.GetInternal(keySchema)
	if err != nil {
		idx.Close()
		return nil, pkgerrors.Wrap(pkgerrors.ErrStorage, op, fmt.Errorf("reading schema: %w", err))
	}
	if raw == nil {
		idx.Close()
		return nil, pkgerrors.Newf(pkgerrors.ErrStorage, op, "%s is not a sanesearch index", path)
	}
	s, err := schema.Decode(raw)
	if err != nil {
		idx.Close()
		return nil, pkgerrors.Wrap(pkgerrors.ErrStorage, op, err)
	}
	if err := tokenizer.Verify(idx.Mapping()); err != nil {
		idx.Close()
		return nil, pkgerrors.Wrap(pkgerrors.ErrConfiguration, op, err)
	}
	id, err := idx.GetInternal(keyIdentity)
	if err != nil {
		idx.Close()
		return nil, pkgerrors.Wrap(pkgerrors.ErrStorage, op, fmt.Errorf("reading index id: %w", err))
	}

	st := &Store{
		idx:    idx,
		schema: s,
		path:   path,
		id:     string(id),
		logger: slog.Default().With("component", "index-store", "path", path),
	}
	gen, _ := st.Generation()
	st.logger.Info("index opened", "fields", s.Len(), "generation", gen)
	return st, nil
}

func (s *Store) Schema() *schema.Schema { return s.schema }

func (s *Store) Path() string { return s.path }

// ID is the random identity assigned when the index was created. An index
// deleted and recreated at the same path gets a new one.
func (s *Store) ID() string { return s.id }

func (s *Store) Mapping() mapping.IndexMapping { return s.idx.Mapping() }

// Generation is the number of successful commits.
func (s *Store) Generation() (uint64, error) {
	return s.counter(keyGeneration)
}

func (s *Store) nextDoc() (uint64, error) {
	return s.counter(keyNextDoc)
}

func (s *Store) counter(key []byte) (uint64, error) {
	raw, err := s.idx.GetInternal(key)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.ErrStorage, "read_metadata", err)
	}
	return decodeCounter(raw)
}

// DocCount is the number of committed documents.
func (s *Store) DocCount() (uint64, error) {
	n, err := s.idx.DocCount()
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.ErrStorage, "doc_count", err)
	}
	return n, nil
}

// Reader opens a point-in-time view of the committed documents. The caller
// must close it.
func (s *Store) Reader() (index.IndexReader, error) {
	adv, err := s.idx.Advanced()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrStorage, "open_snapshot", err)
	}
	r, err := adv.Reader()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrStorage, "open_snapshot", err)
	}
	return r, nil
}

// ReaderGeneration is the commit generation a reader observes.
func ReaderGeneration(r index.IndexReader) (uint64, error) {
	raw, err := r.GetInternal(keyGeneration)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.ErrStorage, "read_metadata", err)
	}
	return decodeCounter(raw)
}

func (s *Store) Close() error {
	if err := s.idx.Close(); err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrStorage, "close", err)
	}
	s.logger.Info("index closed")
	return nil
}

// DocID renders a document ordinal as an index id. Ids sort in commit order.
func DocID(ordinal uint64) string {
	return fmt.Sprintf("%016x", ordinal)
}

func encodeCounter(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func decodeCounter(raw []byte) (uint64, error) {
	if raw == nil {
		return 0, nil
	}
	if len(raw) != 8 {
		return 0, pkgerrors.Wrap(pkgerrors.ErrStorage, "read_metadata",
			errors.New("corrupt counter"))
	}
	return binary.BigEndian.Uint64(raw), nil
}

// removeIndexFiles undoes a partially created index. A directory the caller
// supplied is kept; only the engine's files inside it are removed.
func removeIndexFiles(path string, keepDir bool) {
	if !keepDir {
		os.RemoveAll(path)
		return
	}
	os.Remove(filepath.Join(path, "index_meta.json"))
	os.RemoveAll(filepath.Join(path, "store"))
}
