package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	for i, q := range []string{"red", "red", "blue", "nothing"} {
		hits := uint64(3)
		if q == "nothing" {
			hits = 0
		}
		agg.RecordSearch(NewSearchEvent(SearchEvent{
			Query:     q,
			TotalHits: hits,
			LatencyMs: int64(i + 1),
			CacheHit:  i == 1,
		}))
	}
	agg.RecordCommit(NewCommitEvent(CommitEvent{Documents: 7, Generation: 1}))

	stats := agg.Stats()
	assert.Equal(t, int64(4), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.TotalCommits)
	assert.Equal(t, int64(7), stats.TotalDocCommitted)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(3), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.InDelta(t, 2.5, stats.AvgLatencyMs, 1e-9)
	assert.Equal(t, int64(3), stats.P50LatencyMs)
	assert.Equal(t, int64(4), stats.P99LatencyMs)
	require.NotEmpty(t, stats.TopQueries)
	assert.Equal(t, QueryCount{Query: "red", Count: 2}, stats.TopQueries[0])
	assert.Equal(t, []QueryCount{{Query: "nothing", Count: 1}}, stats.ZeroResultQueries)
}

func TestAggregatorLatencyWindowIsBounded(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < maxLatencySamples+50; i++ {
		agg.RecordSearch(SearchEvent{Query: "q", TotalHits: 1, LatencyMs: 5})
	}
	assert.Len(t, agg.latencies, maxLatencySamples)
	assert.Equal(t, int64(maxLatencySamples+50), agg.Stats().TotalSearches)
}

func TestTopNOrdersTiesByQuery(t *testing.T) {
	got := topN(map[string]int64{"b": 1, "a": 1, "c": 5}, 2)
	assert.Equal(t, []QueryCount{{"c", 5}, {"a", 1}}, got)
}

func TestHandleEventDecodesBothKinds(t *testing.T) {
	agg := NewAggregator()
	handle := HandleEvent(agg)
	ctx := context.Background()

	search, err := json.Marshal(NewSearchEvent(SearchEvent{Query: "x", TotalHits: 0}))
	require.NoError(t, err)
	commit, err := json.Marshal(NewCommitEvent(CommitEvent{Documents: 2}))
	require.NoError(t, err)

	require.NoError(t, handle(ctx, nil, search))
	require.NoError(t, handle(ctx, nil, commit))
	require.NoError(t, handle(ctx, nil, []byte("not json")))
	require.NoError(t, handle(ctx, nil, []byte(`{"type":"other"}`)))

	stats := agg.Stats()
	assert.Equal(t, int64(1), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.Equal(t, int64(2), stats.TotalDocCommitted)
}

func TestNewEventsAreStamped(t *testing.T) {
	a := NewSearchEvent(SearchEvent{Query: "q"})
	b := NewSearchEvent(SearchEvent{Query: "q"})
	assert.Equal(t, EventSearch, a.Type)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.Timestamp.IsZero())
	assert.Equal(t, EventCommit, NewCommitEvent(CommitEvent{}).Type)
}

type countingRecorder struct{ searches, commits int }

func (c *countingRecorder) RecordSearch(SearchEvent) { c.searches++ }
func (c *countingRecorder) RecordCommit(CommitEvent) { c.commits++ }

func TestMultiSkipsNil(t *testing.T) {
	a, b := &countingRecorder{}, &countingRecorder{}
	r := Multi(a, nil, b)
	r.RecordSearch(SearchEvent{})
	r.RecordCommit(CommitEvent{})
	assert.Equal(t, 1, a.searches)
	assert.Equal(t, 1, b.commits)
}

func TestHandlerServesStats(t *testing.T) {
	agg := NewAggregator()
	agg.RecordSearch(SearchEvent{Query: "q", TotalHits: 1})
	h := NewHandler(agg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalSearches)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stats", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandlerTopParameter(t *testing.T) {
	agg := NewAggregator()
	for _, q := range []string{"a", "b", "b", "c", "c", "c"} {
		agg.RecordSearch(SearchEvent{Query: q, Path: "simple", TotalHits: 1})
	}
	agg.RecordSearch(SearchEvent{Query: "d", Path: "top", TotalHits: 1})
	h := NewHandler(agg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, []QueryCount{{Query: "c", Count: 3}, {Query: "b", Count: 2}}, stats.TopQueries)
	assert.Equal(t, map[string]int64{"simple": 6, "top": 1}, stats.SearchesByPath)

	for _, bad := range []string{"0", "101", "x"} {
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top="+bad, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestLastGenerationIsMonotonic(t *testing.T) {
	agg := NewAggregator()
	agg.RecordCommit(CommitEvent{Generation: 4, Documents: 1})
	agg.RecordCommit(CommitEvent{Generation: 2, Documents: 1})
	stats := agg.Stats()
	assert.Equal(t, uint64(4), stats.LastGeneration)
	assert.Equal(t, int64(2), stats.TotalCommits)
}
