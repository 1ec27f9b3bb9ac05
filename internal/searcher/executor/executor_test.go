package executor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/schema"
)

func setup(t *testing.T, docs ...map[string][]string) (*Executor, *indexer.Store) {
	t.Helper()
	b := schema.NewBuilder()
	_, err := b.AddTextField("title", []string{"TEXT", "STORED"})
	require.NoError(t, err)
	_, err = b.AddTextField("body", []string{"TEXT"})
	require.NoError(t, err)
	_, err = b.AddTextField("tags", []string{"STRING", "STORED"})
	require.NoError(t, err)

	st, err := indexer.Create(filepath.Join(t.TempDir(), "idx"), b.Build())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	w, err := indexer.NewWriter(st, indexer.MinHeapSize, nil)
	require.NoError(t, err)
	for _, d := range docs {
		require.NoError(t, w.Add(ingestion.Document{Fields: d}))
	}
	require.NoError(t, w.Commit())

	r, err := st.Reader()
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return New(st.Schema(), st.Mapping(), r), st
}

func term(field, text string) query.Query {
	q := query.NewTermQuery(text)
	q.SetField(field)
	return q
}

func TestExecuteRendersStoredFields(t *testing.T) {
	e, _ := setup(t, map[string][]string{
		"title": {"Red shoes"},
		"body":  {"comfortable"},
		"tags":  {"sale", "new"},
	})
	res, err := e.Execute(context.Background(), term("title", "red"), 10, 0)
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, uint64(1), res.TotalHits)
	assert.Equal(t, indexer.DocID(0), res.Results[0].DocID)
	assert.Greater(t, res.Results[0].Score, 0.0)
	assert.JSONEq(t, `{"title":"Red shoes","tags":["sale","new"]}`, res.Results[0].Document)
}

func TestExecuteTieBreakFollowsCommitOrder(t *testing.T) {
	var docs []map[string][]string
	for i := 0; i < 5; i++ {
		docs = append(docs, map[string][]string{"title": {"same words"}})
	}
	e, _ := setup(t, docs...)
	res, err := e.Execute(context.Background(), term("title", "same"), 10, 0)
	require.NoError(t, err)
	require.Len(t, res.Results, 5)
	for i, r := range res.Results {
		assert.Equal(t, indexer.DocID(uint64(i)), r.DocID)
	}
}

func TestExecuteScoreOrder(t *testing.T) {
	e, _ := setup(t,
		map[string][]string{"title": {"tea and other things to drink"}},
		map[string][]string{"title": {"tea tea"}},
	)
	res, err := e.Execute(context.Background(), term("title", "tea"), 10, 0)
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, indexer.DocID(1), res.Results[0].DocID)
	assert.GreaterOrEqual(t, res.Results[0].Score, res.Results[1].Score)
}

func TestExecuteLimitAndOffset(t *testing.T) {
	var docs []map[string][]string
	for i := 0; i < 15; i++ {
		docs = append(docs, map[string][]string{"title": {"match"}})
	}
	e, _ := setup(t, docs...)

	res, err := e.Execute(context.Background(), term("title", "match"), 10, 0)
	require.NoError(t, err)
	assert.Len(t, res.Results, 10)
	assert.Equal(t, uint64(15), res.TotalHits)

	res, err = e.Execute(context.Background(), term("title", "match"), 10, 10)
	require.NoError(t, err)
	require.Len(t, res.Results, 5)
	assert.Equal(t, indexer.DocID(10), res.Results[0].DocID)

	res, err = e.Execute(context.Background(), term("title", "match"), 0, 0)
	require.NoError(t, err)
	assert.Empty(t, res.Results)
}

func TestExecuteNoMatches(t *testing.T) {
	e, _ := setup(t, map[string][]string{"title": {"alpha"}})
	res, err := e.Execute(context.Background(), query.NewMatchNoneQuery(), 10, 0)
	require.NoError(t, err)
	assert.Empty(t, res.Results)

	n, err := e.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestStoredOmitsUnstoredOnlyDocument(t *testing.T) {
	e, _ := setup(t, map[string][]string{"body": {"hidden"}})
	out, err := e.Stored(indexer.DocID(0))
	require.NoError(t, err)
	assert.Equal(t, `{}`, out)
}
