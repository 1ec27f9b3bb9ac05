package parser

import (
	"sort"
	"testing"

	"github.com/blevesearch/bleve/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/schema"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/errors"
)

type fixture struct {
	parser *Parser
	index  bleve.Index
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := schema.NewBuilder()
	title, err := b.AddTextField("title", []string{"TEXT", "STORED"})
	require.NoError(t, err)
	body, err := b.AddTextField("body", []string{"TEXT"}, tokenizer.EnStem)
	require.NoError(t, err)
	_, err = b.AddTextField("sku", []string{"STRING", "STORED"})
	require.NoError(t, err)
	_, err = b.AddFacetField("category")
	require.NoError(t, err)
	s := b.Build()

	im, err := s.IndexMapping()
	require.NoError(t, err)
	idx, err := bleve.NewMemOnly(im)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	docs := map[string]map[string]interface{}{
		"1": {"title": "Red shoes", "body": "running in the park", "sku": "RS-1", "category": "/apparel/footwear"},
		"2": {"title": "Blue shirt", "body": "cotton runs small", "sku": "BS-2", "category": "/apparel/tops"},
		"3": {"title": "Green tea", "body": "a calming drink", "sku": "GT-3", "category": "/grocery/tea"},
		"4": {"title": "Red tea", "body": "shoes not included", "sku": "RT-4", "category": "/grocery/tea"},
	}
	batch := idx.NewBatch()
	for id, doc := range docs {
		require.NoError(t, batch.Index(id, doc))
	}
	require.NoError(t, idx.Batch(batch))

	return &fixture{
		parser: New(s, im, []schema.Field{title, body}),
		index:  idx,
	}
}

func (f *fixture) ids(t *testing.T, text string) []string {
	t.Helper()
	q, err := f.parser.Parse(text)
	require.NoError(t, err, text)
	req := bleve.NewSearchRequestOptions(q, 100, 0, false)
	res, err := f.index.Search(req)
	require.NoError(t, err, text)
	out := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		out = append(out, h.ID)
	}
	sort.Strings(out)
	return out
}

func TestParseMatches(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		query string
		want  []string
	}{
		{"red", []string{"1", "4"}},
		{"RED", []string{"1", "4"}},
		{"red shirt", []string{"1", "2", "4"}},
		{"red OR shirt", []string{"1", "2", "4"}},
		{"red AND tea", []string{"4"}},
		{"red AND NOT tea", []string{"1"}},
		{"red -tea", []string{"1"}},
		{"+red tea", []string{"1", "4"}},
		{"-red", []string{"2", "3"}},
		{`red -"red tea"`, []string{"1"}},
		{"red -(tea)", []string{"1"}},
		{"red -(tea OR park)", []string{}},
		{"+(red) tea", []string{"1", "4"}},
		{"+(green OR blue) tea", []string{"2", "3"}},
		{"NOT red", []string{"2", "3"}},
		{"title:shoes", []string{"1"}},
		{"shoes", []string{"1", "4"}},
		{`"red shoes"`, []string{"1"}},
		{`title:"red tea"`, []string{"4"}},
		{`"shoes red"`, []string{}},
		{"run", []string{"1", "2"}},
		{"(red OR blue) AND (shoes OR shirt)", []string{"1", "2", "4"}},
		{"(green OR blue) AND shirt", []string{"2"}},
		{"title:(green OR blue)", []string{"2", "3"}},
		{"sku:RS-1", []string{"1"}},
		{"sku:rs-1", []string{}},
		{"category:/apparel", []string{"1", "2"}},
		{"category:/grocery/tea", []string{"3", "4"}},
		{"category:/grocery/tea/", []string{"3", "4"}},
		{"*", []string{"1", "2", "3", "4"}},
		{"", []string{}},
		{"   ", []string{}},
		{"zebra", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, f.ids(t, tt.query))
		})
	}
}

func TestParseErrors(t *testing.T) {
	f := newFixture(t)
	tests := []string{
		`"unterminated`,
		`title:"open`,
		`(red`,
		`red)`,
		`((red)`,
		`red AND`,
		`AND red`,
		`red OR`,
		`OR red`,
		`NOT`,
		`red AND OR blue`,
		`nope:red`,
		`nope:(red)`,
		`title:`,
	}
	for _, q := range tests {
		t.Run(q, func(t *testing.T) {
			_, err := f.parser.Parse(q)
			require.Error(t, err)
			assert.ErrorIs(t, err, pkgerrors.ErrQueryParse)
		})
	}
}

func TestParseWithoutDefaultFields(t *testing.T) {
	b := schema.NewBuilder()
	_, _ = b.AddTextField("title", []string{"TEXT"})
	s := b.Build()
	im, err := s.IndexMapping()
	require.NoError(t, err)
	p := New(s, im, nil)

	_, err = p.Parse("red")
	assert.ErrorIs(t, err, pkgerrors.ErrQueryParse)
	_, err = p.Parse("title:red")
	assert.NoError(t, err)
}

func TestParseDepthLimit(t *testing.T) {
	f := newFixture(t)
	q := ""
	for i := 0; i <= maxDepth; i++ {
		q += "("
	}
	q += "red"
	for i := 0; i <= maxDepth; i++ {
		q += ")"
	}
	_, err := f.parser.Parse(q)
	assert.ErrorIs(t, err, pkgerrors.ErrQueryParse)
}

func TestLexOperatorsAreUpperCase(t *testing.T) {
	toks, err := lex("red and blue")
	require.NoError(t, err)
	require.Len(t, toks, 4)
	assert.Equal(t, tWord, toks[1].kind)
	assert.Equal(t, "and", toks[1].text)
}

func BenchmarkParse(b *testing.B) {
	bs := schema.NewBuilder()
	title, _ := bs.AddTextField("title", []string{"TEXT"})
	body, _ := bs.AddTextField("body", []string{"TEXT"})
	s := bs.Build()
	im, _ := s.IndexMapping()
	p := New(s, im, []schema.Field{title, body})
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = p.Parse(`(distributed OR search) AND "inverted index" -legacy title:engine`)
	}
}
