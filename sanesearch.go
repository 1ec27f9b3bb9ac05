// Package sanesearch is an embeddable full-text search session.
//
// A host declares fields with a SchemaBuilder, creates or opens an index
// directory through a Session, ingests JSON documents through the session's
// single writer, commits them, and runs ranked queries against point-in-time
// snapshots:
//
//	b := sanesearch.NewSchemaBuilder()
//	title, _ := b.AddTextField("title", []string{"TEXT", "STORED"})
//	b.AddFacetField("category")
//
//	s := sanesearch.New()
//	if err := s.CreateIndex(b.Build(), "data/products"); err != nil { ... }
//	s.CreateWriter(50_000_000)
//	s.AddDocument(`{"title": "red shoes", "category": "/apparel/footwear"}`)
//	s.Commit()
//	s.SetDefaultFields(title)
//	docs, err := s.SimpleSearch("red")
//
// Every failure is returned as an error of one of five kinds, which callers
// test with errors.Is: ErrConfiguration, ErrPrecondition, ErrStorage,
// ErrQueryParse and ErrDocumentValidation.
package sanesearch

import (
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/schema"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/searcher/executor"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/errors"
)

type (
	// Field is the stable handle of a declared field.
	Field = schema.Field
	// Schema is a frozen field list.
	Schema = schema.Schema
	// SchemaBuilder accumulates field declarations.
	SchemaBuilder = schema.Builder
	// FieldEntry describes one declared field.
	FieldEntry = schema.Entry
	// FieldOptions is the set of option tokens a text field was declared with.
	FieldOptions = schema.FieldOptions

	// ScoredDocument is one TopSearch hit.
	ScoredDocument = executor.ScoredDocument

	// CacheStore backs the optional simple-search result cache.
	CacheStore = cache.Store

	// Recorder receives search and commit events.
	Recorder = analytics.Recorder
	SearchEvent = analytics.SearchEvent
	CommitEvent = analytics.CommitEvent
)

// Field option tokens accepted by AddTextField.
const (
	TEXT   = string(schema.TEXT)
	STORED = string(schema.STORED)
	STRING = string(schema.STRING)
)

// Tokenizer names a text field may select.
const (
	TokenizerDefault = tokenizer.Default
	TokenizerRaw     = tokenizer.Raw
	TokenizerEnStem  = tokenizer.EnStem
	TokenizerDeStem  = tokenizer.DeStem
	TokenizerEsStem  = tokenizer.EsStem
	TokenizerFrStem  = tokenizer.FrStem
)

// MinHeapSize is the smallest writer heap budget CreateWriter accepts.
const MinHeapSize = indexer.MinHeapSize

// SimpleSearchLimit is the number of documents SimpleSearch returns at most.
const SimpleSearchLimit = 10

// Error kinds.
var (
	ErrConfiguration      = pkgerrors.ErrConfiguration
	ErrPrecondition       = pkgerrors.ErrPrecondition
	ErrStorage            = pkgerrors.ErrStorage
	ErrQueryParse         = pkgerrors.ErrQueryParse
	ErrDocumentValidation = pkgerrors.ErrDocumentValidation
)

// Precondition reasons, reported together with ErrPrecondition.
var (
	ErrNoSchema        = pkgerrors.ErrNoSchema
	ErrNoIndex         = pkgerrors.ErrNoIndex
	ErrNoWriter        = pkgerrors.ErrNoWriter
	ErrNoDefaultFields = pkgerrors.ErrNoDefaultFields
	ErrIndexExists     = pkgerrors.ErrIndexExists
)

// NewSchemaBuilder returns an empty builder.
func NewSchemaBuilder() *SchemaBuilder {
	return schema.NewBuilder()
}
