// Package schema builds the frozen field layout an index is created with and
// translates it into a bleve index mapping.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/indexer/tokenizer"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/errors"
)

// Field is the stable handle of a declared field. Handles are assigned in
// declaration order starting at 0.
type Field uint32

// Kind distinguishes free-text fields from hierarchical facet fields.
type Kind string

const (
	KindText  Kind = "text"
	KindFacet Kind = "facet"
)

// Entry is one declared field.
type Entry struct {
	Field    Field
	Name     string
	Kind     Kind
	Options  FieldOptions
	Indexing TextIndexing
}

// Stored reports whether values of the field are returned with results.
// Facet values are always stored.
func (e Entry) Stored() bool {
	return e.Kind == KindFacet || e.Options.IsStored()
}

// Tokenized reports whether the field is analysed into several terms.
func (e Entry) Tokenized() bool {
	return e.Kind == KindText && e.Indexing.Tokenizer != tokenizer.Raw
}

// Schema is an immutable, ordered set of field declarations.
type Schema struct {
	entries []Entry
	byName  map[string]int
}

func newSchema(entries []Entry) *Schema {
	s := &Schema{
		entries: make([]Entry, len(entries)),
		byName:  make(map[string]int, len(entries)),
	}
	copy(s.entries, entries)
	for i, e := range s.entries {
		// a later declaration shadows an earlier one with the same name
		s.byName[e.Name] = i
	}
	return s
}

// Fields returns the declarations in order.
func (s *Schema) Fields() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Schema) Len() int { return len(s.entries) }

// Entry returns the declaration behind a handle.
func (s *Schema) Entry(f Field) (Entry, bool) {
	if int(f) >= len(s.entries) {
		return Entry{}, false
	}
	return s.entries[f], true
}

// Lookup resolves a field name to its last declaration.
func (s *Schema) Lookup(name string) (Entry, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Entry{}, false
	}
	return s.entries[i], true
}

// Shadowed reports whether the handle was superseded by a later declaration
// of the same name.
func (s *Schema) Shadowed(f Field) bool {
	e, ok := s.Entry(f)
	if !ok {
		return false
	}
	return s.byName[e.Name] != int(f)
}

// Equal reports whether both schemas declare the same fields in the same
// order with the same options.
func (s *Schema) Equal(other *Schema) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.entries) != len(other.entries) {
		return false
	}
	for i, e := range s.entries {
		o := other.entries[i]
		if e.Field != o.Field || e.Name != o.Name || e.Kind != o.Kind ||
			e.Indexing != o.Indexing || e.Options.String() != o.Options.String() {
			return false
		}
	}
	return true
}

// IndexMapping translates the schema into a bleve mapping with the named
// analyzers registered. Only the last declaration of a name is mapped.
func (s *Schema) IndexMapping() (*mapping.IndexMappingImpl, error) {
	im := mapping.NewIndexMapping()
	if err := tokenizer.RegisterAnalyzers(im); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrConfiguration, "create_index", err)
	}
	doc := mapping.NewDocumentStaticMapping()
	for i, e := range s.entries {
		if s.byName[e.Name] != i {
			continue
		}
		analyzer := tokenizer.AnalyzerName(e.Indexing.Tokenizer)
		if im.AnalyzerNamed(analyzer) == nil {
			return nil, pkgerrors.Newf(pkgerrors.ErrConfiguration, "create_index",
				"field %q selects unknown tokenizer %q", e.Name, e.Indexing.Tokenizer)
		}
		fm := mapping.NewTextFieldMapping()
		fm.Analyzer = analyzer
		fm.Store = e.Stored()
		fm.Index = true
		fm.IncludeInAll = false
		fm.IncludeTermVectors = e.Indexing.Record == WithFreqsAndPositions
		fm.DocValues = e.Kind == KindFacet
		doc.AddFieldMappingsAt(e.Name, fm)
	}
	im.DefaultMapping = doc
	im.StoreDynamic = false
	im.IndexDynamic = false
	im.DocValuesDynamic = false
	if err := im.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrConfiguration, "create_index", err)
	}
	return im, nil
}

const formatVersion = 1

type schemaJSON struct {
	Version int         `json:"version"`
	Fields  []entryJSON `json:"fields"`
}

type entryJSON struct {
	ID        Field             `json:"id"`
	Name      string            `json:"name"`
	Kind      Kind              `json:"kind"`
	Options   []Option          `json:"options,omitempty"`
	Tokenizer string            `json:"tokenizer"`
	Record    IndexRecordOption `json:"record"`
}

// MarshalJSON encodes the schema for storage inside the index.
func (s *Schema) MarshalJSON() ([]byte, error) {
	out := schemaJSON{Version: formatVersion, Fields: make([]entryJSON, 0, len(s.entries))}
	for _, e := range s.entries {
		out.Fields = append(out.Fields, entryJSON{
			ID:        e.Field,
			Name:      e.Name,
			Kind:      e.Kind,
			Options:   e.Options.List(),
			Tokenizer: e.Indexing.Tokenizer,
			Record:    e.Indexing.Record,
		})
	}
	return json.Marshal(out)
}

// Decode restores a schema written by MarshalJSON.
func Decode(data []byte) (*Schema, error) {
	var in schemaJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("decoding schema: %w", err)
	}
	if in.Version != formatVersion {
		return nil, fmt.Errorf("unsupported schema version %d", in.Version)
	}
	entries := make([]Entry, 0, len(in.Fields))
	for i, f := range in.Fields {
		if f.ID != Field(i) {
			return nil, fmt.Errorf("schema field %q has id %d, want %d", f.Name, f.ID, i)
		}
		entries = append(entries, Entry{
			Field:    f.ID,
			Name:     f.Name,
			Kind:     f.Kind,
			Options:  NewFieldOptions(f.Options...),
			Indexing: TextIndexing{Tokenizer: f.Tokenizer, Record: f.Record},
		})
	}
	return newSchema(entries), nil
}
