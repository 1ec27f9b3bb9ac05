package indexer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	index "github.com/blevesearch/bleve_index_api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/schema"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/metrics"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	b := schema.NewBuilder()
	_, err := b.AddTextField("title", []string{"TEXT", "STORED"})
	require.NoError(t, err)
	_, err = b.AddTextField("body", []string{"TEXT"})
	require.NoError(t, err)
	return b.Build()
}

func newStore(t *testing.T) *Store {
	t.Helper()
	st, err := Create(filepath.Join(t.TempDir(), "idx"), testSchema(t))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func titleDoc(title string) ingestion.Document {
	return ingestion.Document{Fields: map[string][]string{"title": {title}}}
}

func TestCreateAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")
	s := testSchema(t)
	st, err := Create(path, s)
	require.NoError(t, err)

	gen, err := st.Generation()
	require.NoError(t, err)
	assert.Zero(t, gen)
	require.NoError(t, st.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.True(t, s.Equal(reopened.Schema()))
	assert.Equal(t, path, reopened.Path())
	assert.NotEmpty(t, st.ID())
	assert.Equal(t, st.ID(), reopened.ID())
}

func TestCreateInExistingEmptyDir(t *testing.T) {
	dir := t.TempDir()
	st, err := Create(dir, testSchema(t))
	require.NoError(t, err)
	require.NoError(t, st.Close())
}

func TestCreateOverExistingIndexFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")
	st, err := Create(path, testSchema(t))
	require.NoError(t, err)
	require.NoError(t, st.Close())

	_, err = Create(path, testSchema(t))
	assert.ErrorIs(t, err, pkgerrors.ErrStorage)
}

func TestCreateUnknownTokenizer(t *testing.T) {
	b := schema.NewBuilder()
	_, err := b.AddTextField("title", []string{"TEXT"}, "klingon_stem")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "idx")
	_, err = Create(path, b.Build())
	assert.ErrorIs(t, err, pkgerrors.ErrConfiguration)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, pkgerrors.ErrStorage)
}

func TestWriterHeapMinimum(t *testing.T) {
	st := newStore(t)
	_, err := NewWriter(st, MinHeapSize-1, nil)
	assert.ErrorIs(t, err, pkgerrors.ErrConfiguration)
	_, err = NewWriter(st, MinHeapSize, nil)
	assert.NoError(t, err)
}

func TestCommitMakesDocumentsVisible(t *testing.T) {
	st := newStore(t)
	w, err := NewWriter(st, 50_000_000, nil)
	require.NoError(t, err)

	require.NoError(t, w.Add(titleDoc("alpha")))
	require.NoError(t, w.Add(titleDoc("beta")))
	assert.Equal(t, 2, w.Pending())

	n, err := st.DocCount()
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, w.Commit())
	assert.Zero(t, w.Pending())

	n, err = st.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	gen, err := st.Generation()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gen)

	next, err := st.nextDoc()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), next)
}

func TestReaderIsPointInTime(t *testing.T) {
	st := newStore(t)
	w, err := NewWriter(st, MinHeapSize, nil)
	require.NoError(t, err)
	require.NoError(t, w.Add(titleDoc("alpha")))
	require.NoError(t, w.Commit())

	r, err := st.Reader()
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, w.Add(titleDoc("beta")))
	require.NoError(t, w.Commit())

	n, err := r.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	doc, err := r.Document(DocID(0))
	require.NoError(t, err)
	require.NotNil(t, doc)
}

func TestReleaseDiscardsPending(t *testing.T) {
	st := newStore(t)
	w, err := NewWriter(st, MinHeapSize, nil)
	require.NoError(t, err)
	require.NoError(t, w.Add(titleDoc("alpha")))
	require.NoError(t, w.Release())
	assert.Zero(t, w.Pending())

	require.NoError(t, w.Commit())
	n, err := st.DocCount()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSpillAndCommitInOrder(t *testing.T) {
	st := newStore(t)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	w, err := NewWriter(st, MinHeapSize, m)
	require.NoError(t, err)

	// each document is roughly 1MB, so every third add spills
	big := strings.Repeat("x", 1_000_000)
	for i := 0; i < 7; i++ {
		require.NoError(t, w.Add(ingestion.Document{Fields: map[string][]string{
			"title": {string(rune('a' + i))},
			"body":  {big},
		}}))
	}
	assert.Equal(t, 7, w.Pending())
	spillDir := w.SpillDir()
	require.NotEmpty(t, spillDir)
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.SpillsTotal), 2.0)

	require.NoError(t, w.Commit())
	_, err = os.Stat(spillDir)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommitsTotal.WithLabelValues("ok")))

	r, err := st.Reader()
	require.NoError(t, err)
	defer r.Close()
	n, err := r.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), n)

	for i := 0; i < 7; i++ {
		doc, err := r.Document(DocID(uint64(i)))
		require.NoError(t, err)
		require.NotNil(t, doc)
		var title string
		doc.VisitFields(func(f index.Field) {
			if f.Name() == "title" {
				title = string(f.Value())
			}
		})
		assert.Equal(t, string(rune('a'+i)), title)
	}
}

func TestFailedSpillRejectsDocument(t *testing.T) {
	st := newStore(t)
	w, err := NewWriter(st, MinHeapSize, nil)
	require.NoError(t, err)
	t.Setenv("TMPDIR", filepath.Join(t.TempDir(), "missing"))

	big := strings.Repeat("z", 1_000_000)
	for i := 0; i < 2; i++ {
		require.NoError(t, w.Add(ingestion.Document{Fields: map[string][]string{"body": {big}}}))
	}
	err = w.Add(ingestion.Document{Fields: map[string][]string{"body": {big}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrStorage)
	assert.Equal(t, 2, w.Pending())
	assert.Empty(t, w.SpillDir())

	require.NoError(t, w.Commit())
	n, err := st.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
}

func TestReleaseRemovesSpills(t *testing.T) {
	st := newStore(t)
	w, err := NewWriter(st, MinHeapSize, nil)
	require.NoError(t, err)
	big := strings.Repeat("y", 3_200_000)
	require.NoError(t, w.Add(ingestion.Document{Fields: map[string][]string{"body": {big}}}))
	spillDir := w.SpillDir()
	require.NotEmpty(t, spillDir)

	require.NoError(t, w.Release())
	_, err = os.Stat(spillDir)
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, w.SpillDir())
}

func TestDocIDOrdering(t *testing.T) {
	assert.Less(t, DocID(9), DocID(10))
	assert.Less(t, DocID(255), DocID(256))
	assert.Len(t, DocID(0), 16)
}
