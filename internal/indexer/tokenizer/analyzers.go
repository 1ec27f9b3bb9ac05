package tokenizer

import (
	"fmt"

	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/length"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
	"github.com/blevesearch/bleve/v2/mapping"

	// snowball stemmer token filters register themselves on import
	_ "github.com/blevesearch/bleve/v2/analysis/lang/de"
	_ "github.com/blevesearch/bleve/v2/analysis/lang/en"
	_ "github.com/blevesearch/bleve/v2/analysis/lang/es"
	_ "github.com/blevesearch/bleve/v2/analysis/lang/fr"
)

// Tokenizer names a field may select.
const (
	Default = "default"
	Raw     = "raw"
	EnStem  = "en_stem"
	DeStem  = "de_stem"
	EsStem  = "es_stem"
	FrStem  = "fr_stem"

	// FacetPath is the analyzer used by facet fields.
	FacetPath = "facet_path"
)

// MaxTokenLength is the longest token, in characters, the text analyzers
// keep. Longer tokens (base64 blobs and the like) are dropped.
const MaxTokenLength = 40

const maxLengthFilter = "sane_max_len_40"

// Analyzer names are prefixed inside the engine so they never collide with
// analyzers bleve registers globally.
const analyzerPrefix = "sane_"

type pipeline struct {
	tokenizer string
	filters   []string
}

var pipelines = map[string]pipeline{
	Default:   {tokenizer: SimpleName, filters: []string{maxLengthFilter, lowercase.Name}},
	Raw:       {tokenizer: single.Name},
	EnStem:    {tokenizer: SimpleName, filters: []string{maxLengthFilter, lowercase.Name, "stemmer_en_snowball"}},
	DeStem:    {tokenizer: SimpleName, filters: []string{maxLengthFilter, lowercase.Name, "stemmer_de_snowball"}},
	EsStem:    {tokenizer: SimpleName, filters: []string{maxLengthFilter, lowercase.Name, "stemmer_es_snowball"}},
	FrStem:    {tokenizer: SimpleName, filters: []string{maxLengthFilter, lowercase.Name, "stemmer_fr_snowball"}},
	FacetPath: {tokenizer: FacetPathName},
}

// Names lists every analyzer RegisterAnalyzers installs.
func Names() []string {
	return []string{Default, Raw, EnStem, DeStem, EsStem, FrStem, FacetPath}
}

// IsKnown reports whether name is one of the analyzers sanesearch registers.
func IsKnown(name string) bool {
	_, ok := pipelines[name]
	return ok
}

// AnalyzerName maps a tokenizer selection to the analyzer name used inside
// the index mapping. Unknown names pass through untouched so analyzers bleve
// ships with (for example "standard") stay selectable.
func AnalyzerName(tokenizer string) string {
	if IsKnown(tokenizer) {
		return analyzerPrefix + tokenizer
	}
	return tokenizer
}

// RegisterAnalyzers defines the length filter and every named analyzer on m.
func RegisterAnalyzers(m *mapping.IndexMappingImpl) error {
	if err := m.AddCustomTokenFilter(maxLengthFilter, map[string]interface{}{
		"type": length.Name,
		"max":  float64(MaxTokenLength),
	}); err != nil {
		return fmt.Errorf("registering token filter %s: %w", maxLengthFilter, err)
	}
	for _, name := range Names() {
		p := pipelines[name]
		config := map[string]interface{}{
			"type":      custom.Name,
			"tokenizer": p.tokenizer,
		}
		if len(p.filters) > 0 {
			config["token_filters"] = p.filters
		}
		if err := m.AddCustomAnalyzer(AnalyzerName(name), config); err != nil {
			return fmt.Errorf("registering analyzer %s: %w", name, err)
		}
	}
	m.DefaultAnalyzer = AnalyzerName(Default)
	return nil
}

// Verify checks that every named analyzer resolves on m. Indexes opened from
// disk carry their analyzer definitions in the persisted mapping; this
// confirms the process has the tokenizer types they reference.
func Verify(m mapping.IndexMapping) error {
	for _, name := range Names() {
		if m.AnalyzerNamed(AnalyzerName(name)) == nil {
			return fmt.Errorf("analyzer %s is not available", name)
		}
	}
	return nil
}

// Analyze runs the analyzer selected by tokenizer over text and returns the
// resulting terms. Unknown analyzers yield an error.
func Analyze(m mapping.IndexMapping, tokenizer string, text string) ([]string, error) {
	a := m.AnalyzerNamed(AnalyzerName(tokenizer))
	if a == nil {
		return nil, fmt.Errorf("unknown tokenizer %q", tokenizer)
	}
	stream := a.Analyze([]byte(text))
	terms := make([]string, 0, len(stream))
	for _, tok := range stream {
		terms = append(terms, string(tok.Term))
	}
	return terms, nil
}
