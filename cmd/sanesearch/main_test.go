package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/logger"
)

func TestMain(m *testing.M) {
	slog.SetDefault(logger.Discard())
	os.Exit(m.Run())
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Logging.Level = "error"
	cfg.Index.Path = filepath.Join(t.TempDir(), "products")
	cfg.Index.CommitEvery = 2
	cfg.Index.DefaultFields = []string{"title"}
	cfg.Index.Fields = []config.FieldConfig{
		{Name: "title", Type: "text", Options: []string{"TEXT", "STORED"}, Tokenizer: "en_stem"},
		{Name: "sku", Type: "text", Options: []string{"STRING", "STORED"}},
		{Name: "category", Type: "facet"},
	}
	return cfg
}

func writeLines(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docs.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestBuildSchema(t *testing.T) {
	sch, err := buildSchema(testConfig(t).Index.Fields)
	require.NoError(t, err)
	assert.Equal(t, 3, sch.Len())

	fields, err := fieldHandles(sch, []string{"sku", "title"})
	require.NoError(t, err)
	assert.Len(t, fields, 2)

	_, err = fieldHandles(sch, []string{"price"})
	assert.Error(t, err)

	_, err = buildSchema(nil)
	assert.Error(t, err)

	_, err = buildSchema([]config.FieldConfig{{Name: "x", Type: "text", Options: []string{"INDEXED"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `index.fields[0] "x"`)
}

func TestCreateIngestSearch(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	require.NoError(t, run(ctx, cfg, "create", nil))
	require.Error(t, run(ctx, cfg, "create", nil), "creating over an existing index")

	path := writeLines(t,
		`{"title":"red running shoes","sku":"RS-1","category":"/apparel/footwear"}`,
		``,
		`{"title":"blue shoe","sku":"BS-2"}`,
		`{"colour":"green"}`,
		`{"title":"red hat","category":"/apparel/hats"}`,
	)
	require.NoError(t, run(ctx, cfg, "ingest", []string{path}))

	h, err := newHost(ctx, cfg)
	require.NoError(t, err)
	defer h.Close()
	require.NoError(t, h.openIndex())

	n, err := h.session.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	docs, err := h.session.SimpleSearch("shoes")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Contains(t, docs, `{"title":"red running shoes","sku":"RS-1","category":"/apparel/footwear"}`)

	docs, err = h.session.SimpleSearch("category:/apparel")
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestSearchCommand(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	require.NoError(t, run(ctx, cfg, "create", nil))
	require.NoError(t, run(ctx, cfg, "search", []string{"red", "shoes"}))
	assert.Error(t, run(ctx, cfg, "search", []string{`"unterminated`}))
}

func TestRunArgumentErrors(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	assert.Error(t, run(ctx, cfg, "ingest", nil))
	assert.Error(t, run(ctx, cfg, "search", nil))
	assert.Error(t, run(ctx, cfg, "publish", nil))
	assert.Error(t, run(ctx, cfg, "launch", nil))
	assert.Error(t, run(ctx, cfg, "ingest", []string{filepath.Join(t.TempDir(), "absent.jsonl")}))
}

func TestEachLineSkipsBlankLines(t *testing.T) {
	path := writeLines(t, "a", "   ", "", "b")
	var got []string
	var nums []int
	require.NoError(t, eachLine(path, func(n int, line []byte) error {
		got = append(got, string(line))
		nums = append(nums, n)
		return nil
	}))
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, []int{1, 4}, nums)
}
