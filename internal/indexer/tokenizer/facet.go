package tokenizer

import (
	"bytes"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/registry"
)

// FacetPathName is the registry name of FacetPathTokenizer.
const FacetPathName = "sane_facet_path"

// FacetPathTokenizer emits one token per ancestor of a hierarchical path, so
// "/apparel/footwear" indexes "/apparel" and "/apparel/footwear". The root
// path "/" is a single token.
type FacetPathTokenizer struct{}

func (FacetPathTokenizer) Tokenize(input []byte) analysis.TokenStream {
	path := bytes.TrimRight(input, "/")
	if len(path) == 0 {
		if len(input) == 0 {
			return analysis.TokenStream{}
		}
		return analysis.TokenStream{facetToken(input[:1], 1)}
	}
	stream := make(analysis.TokenStream, 0, bytes.Count(path, []byte{'/'})+1)
	pos := 1
	for i := 1; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			stream = append(stream, facetToken(path[:i], pos))
			pos++
		}
	}
	return stream
}

func facetToken(prefix []byte, pos int) *analysis.Token {
	term := make([]byte, len(prefix))
	copy(term, prefix)
	return &analysis.Token{
		Term:     term,
		Start:    0,
		End:      len(prefix),
		Position: pos,
		Type:     analysis.Single,
	}
}

func facetPathTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return FacetPathTokenizer{}, nil
}
