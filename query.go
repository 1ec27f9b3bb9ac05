package sanesearch

import (
	"encoding/json"

	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/searcher/parser"
)

// Query is an engine query. Build one with ParseQuery or the helpers below.
type Query = query.Query

// TermQuery matches documents whose field holds term exactly, without
// analysis.
func TermQuery(field, term string) Query {
	q := query.NewTermQuery(term)
	q.SetField(field)
	return q
}

// PhraseQuery matches the terms at consecutive positions of field. The field
// must be indexed with positions.
func PhraseQuery(field string, terms ...string) Query {
	return query.NewPhraseQuery(terms, field)
}

// FacetQuery matches documents whose facet value is path or lies below it.
func FacetQuery(field, path string) Query {
	return parser.FacetTerm(field, path)
}

// AllQuery matches every document with the same score.
func AllQuery() Query {
	return query.NewMatchAllQuery()
}

// BooleanQuery requires every must query, excludes every mustNot query and,
// when must is empty, requires at least one should query.
func BooleanQuery(must, should, mustNot []Query) Query {
	bq := query.NewBooleanQuery(must, should, mustNot)
	if len(must) == 0 && len(should) > 0 {
		bq.SetMinShould(1)
	}
	return bq
}

// describe renders q for event logs.
func describe(q Query) string {
	data, err := json.Marshal(q)
	if err != nil {
		return "<unprintable query>"
	}
	return string(data)
}
