// Package tokenizer provides the text analysis pipelines sanesearch registers
// on every index: a simple letter/digit tokenizer, a facet path tokenizer and
// the named analyzers fields select by name (default, raw, en_stem, de_stem,
// es_stem, fr_stem).
package tokenizer

import (
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/registry"
)

// SimpleName is the registry name of SimpleTokenizer.
const SimpleName = "sane_simple"

// SimpleTokenizer splits input on every rune that is neither a letter nor a
// digit. Positions start at 1 and byte offsets point into the input.
type SimpleTokenizer struct{}

func (SimpleTokenizer) Tokenize(input []byte) analysis.TokenStream {
	stream := make(analysis.TokenStream, 0, len(input)/6+1)
	pos := 1
	start := -1
	for i := 0; i < len(input); {
		r, size := utf8.DecodeRune(input[i:])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
		} else if start >= 0 {
			stream = append(stream, newToken(input, start, i, pos))
			pos++
			start = -1
		}
		i += size
	}
	if start >= 0 {
		stream = append(stream, newToken(input, start, len(input), pos))
	}
	return stream
}

func newToken(input []byte, start, end, pos int) *analysis.Token {
	term := make([]byte, end-start)
	copy(term, input[start:end])
	return &analysis.Token{
		Term:     term,
		Start:    start,
		End:      end,
		Position: pos,
		Type:     analysis.AlphaNumeric,
	}
}

func simpleTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return SimpleTokenizer{}, nil
}

func init() {
	if err := registry.RegisterTokenizer(SimpleName, simpleTokenizerConstructor); err != nil {
		panic(err)
	}
	if err := registry.RegisterTokenizer(FacetPathName, facetPathTokenizerConstructor); err != nil {
		panic(err)
	}
}
