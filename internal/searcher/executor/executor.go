// Package executor runs queries against one point-in-time index reader and
// renders the stored fields of the hits.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/collector"
	"github.com/blevesearch/bleve/v2/search/query"
	index "github.com/blevesearch/bleve_index_api"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/schema"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/errors"
)

// ScoredDocument is one hit: its relevance score, the internal id and the
// stored fields serialized as JSON in schema order.
type ScoredDocument struct {
	Score    float64 `json:"score"`
	DocID    string  `json:"doc_id"`
	Document string  `json:"document"`
}

type SearchResult struct {
	TotalHits uint64           `json:"total_hits"`
	Results   []ScoredDocument `json:"results"`
}

type Executor struct {
	schema  *schema.Schema
	mapping mapping.IndexMapping
	reader  index.IndexReader
	logger  *slog.Logger
}

// New binds an executor to reader. The reader stays owned by the caller.
func New(s *schema.Schema, m mapping.IndexMapping, reader index.IndexReader) *Executor {
	return &Executor{
		schema:  s,
		mapping: m,
		reader:  reader,
		logger:  slog.Default().With("component", "query-executor"),
	}
}

// Execute collects the hits ranked offset..offset+limit. Hits are ordered by
// descending score, ties by ascending document id, which follows commit
// order.
func (e *Executor) Execute(ctx context.Context, q query.Query, limit, offset int) (*SearchResult, error) {
	const op = "search"
	if limit <= 0 {
		return &SearchResult{Results: []ScoredDocument{}}, nil
	}
	if offset < 0 {
		offset = 0
	}

	searcher, err := q.Searcher(ctx, e.reader, e.mapping, search.SearcherOptions{})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrStorage, op, fmt.Errorf("building searcher: %w", err))
	}
	defer func() {
		if cerr := searcher.Close(); cerr != nil {
			e.logger.Error("closing searcher", "error", cerr)
		}
	}()

	coll := collector.NewTopNCollector(limit, offset, search.SortOrder{
		&search.SortScore{Desc: true},
		&search.SortDocID{},
	})
	if err := coll.Collect(ctx, searcher, e.reader); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrStorage, op, fmt.Errorf("collecting hits: %w", err))
	}

	hits := coll.Results()
	results := make([]ScoredDocument, 0, len(hits))
	for _, hit := range hits {
		id := hit.ID
		if id == "" {
			if id, err = e.reader.ExternalID(hit.IndexInternalID); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.ErrStorage, op, err)
			}
		}
		doc, err := e.Stored(id)
		if err != nil {
			return nil, err
		}
		results = append(results, ScoredDocument{Score: hit.Score, DocID: id, Document: doc})
	}
	e.logger.Debug("query executed",
		"total_hits", coll.Total(),
		"results", len(results),
		"limit", limit,
		"offset", offset,
	)
	return &SearchResult{TotalHits: coll.Total(), Results: results}, nil
}

// Stored loads and serializes the stored fields of one document.
func (e *Executor) Stored(id string) (string, error) {
	doc, err := e.reader.Document(id)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.ErrStorage, "load_document", fmt.Errorf("loading %s: %w", id, err))
	}
	values := make(map[string][]string)
	if doc != nil {
		doc.VisitFields(func(f index.Field) {
			name := f.Name()
			if strings.HasPrefix(name, "_") {
				return
			}
			values[name] = append(values[name], string(f.Value()))
		})
	}
	out, err := ingestion.Serialize(e.schema, values)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.ErrStorage, "load_document", err)
	}
	return out, nil
}

// DocCount is the number of documents visible to the reader.
func (e *Executor) DocCount() (uint64, error) {
	n, err := e.reader.DocCount()
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.ErrStorage, "doc_count", err)
	}
	return n, nil
}
