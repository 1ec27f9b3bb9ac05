package segment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/ingestion"
)

func docs(titles ...string) []ingestion.Document {
	out := make([]ingestion.Document, 0, len(titles))
	for _, title := range titles {
		out = append(out, ingestion.Document{Fields: map[string][]string{"title": {title}}})
	}
	return out
}

func readAll(t *testing.T, path string) []string {
	t.Helper()
	r, err := OpenReader(path)
	require.NoError(t, err)
	var titles []string
	require.NoError(t, r.Each(func(d ingestion.Document) error {
		titles = append(titles, d.Fields["title"][0])
		return nil
	}))
	return titles
}

func TestWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	name, err := w.Write(docs("alpha", "beta", "gamma"))
	require.NoError(t, err)
	assert.Equal(t, "seg_000000.spill", name)

	path := filepath.Join(dir, name)
	r, err := OpenReader(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), r.DocCount())
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, readAll(t, path))
}

func TestWriteEmpty(t *testing.T) {
	_, err := NewWriter(t.TempDir()).Write(nil)
	assert.Error(t, err)
}

func TestListIsWriteOrdered(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	for _, title := range []string{"a", "b", "c"} {
		_, err := w.Write(docs(title))
		require.NoError(t, err)
	}
	paths, err := List(dir)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	var got []string
	for _, p := range paths {
		got = append(got, readAll(t, p)...)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)

	tmp, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, tmp)
}

func TestOpenReaderDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	name, err := NewWriter(dir).Write(docs("alpha"))
	require.NoError(t, err)
	path := filepath.Join(dir, name)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[HeaderSize] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err = OpenReader(path)
	assert.ErrorContains(t, err, "checksum")
}

func TestOpenReaderBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seg_000000.spill")
	require.NoError(t, os.WriteFile(path, make([]byte, HeaderSize+FooterSize), 0644))
	_, err := OpenReader(path)
	assert.ErrorContains(t, err, "magic")
}

func TestOpenReaderTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seg_000000.spill")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	_, err := OpenReader(path)
	assert.Error(t, err)
}
