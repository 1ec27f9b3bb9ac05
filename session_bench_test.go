package sanesearch_test

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/sanesearch"
)

var benchWords = []string{
	"distributed", "search", "analytics", "platform", "indexing", "query",
	"processing", "ranking", "caching", "segment", "commit", "snapshot",
}

func benchDoc(i int) string {
	return fmt.Sprintf(`{"title":"%s %s","body":"%s engine with %s and %s","category":"/bench/%d"}`,
		benchWords[i%len(benchWords)], benchWords[(i*7)%len(benchWords)],
		benchWords[(i*3)%len(benchWords)], benchWords[(i*5)%len(benchWords)],
		benchWords[(i*11)%len(benchWords)], i%8)
}

func benchSession(b *testing.B, docs int) *sanesearch.Session {
	b.Helper()
	sb := sanesearch.NewSchemaBuilder()
	title, _ := sb.AddTextField("title", []string{sanesearch.TEXT, sanesearch.STORED})
	body, _ := sb.AddTextField("body", []string{sanesearch.TEXT}, sanesearch.TokenizerEnStem)
	sb.AddFacetField("category")

	s := sanesearch.New()
	if err := s.CreateIndex(sb.Build(), filepath.Join(b.TempDir(), "idx")); err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { s.Close() })
	if err := s.CreateWriter(heap); err != nil {
		b.Fatal(err)
	}
	for i := 0; i < docs; i++ {
		if err := s.AddDocument(benchDoc(i)); err != nil {
			b.Fatal(err)
		}
	}
	if err := s.Commit(); err != nil {
		b.Fatal(err)
	}
	if err := s.SetDefaultFields(title, body); err != nil {
		b.Fatal(err)
	}
	return s
}

// BenchmarkAddDocument measures validation and buffering per document.
func BenchmarkAddDocument(b *testing.B) {
	s := benchSession(b, 0)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.AddDocument(benchDoc(i)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkCommit measures commits of batches of varying size.
func BenchmarkCommit(b *testing.B) {
	for _, size := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("docs_%d", size), func(b *testing.B) {
			s := benchSession(b, 0)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				b.StopTimer()
				for j := 0; j < size; j++ {
					if err := s.AddDocument(benchDoc(i*size + j)); err != nil {
						b.Fatal(err)
					}
				}
				b.StartTimer()
				if err := s.Commit(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkParseQuery measures parsing for queries of varying complexity.
func BenchmarkParseQuery(b *testing.B) {
	s := benchSession(b, 0)
	queries := []struct {
		name  string
		query string
	}{
		{"simple", "distributed search"},
		{"boolean_and", "search AND analytics AND platform"},
		{"boolean_or", "indexing OR caching OR ranking"},
		{"with_not", "distributed -monolithic"},
		{"phrase", `title:"query processing"`},
		{"facet", "category:/bench/3 search"},
	}
	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := s.ParseQuery(q.query); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkSimpleSearch measures end-to-end search latency by index size.
func BenchmarkSimpleSearch(b *testing.B) {
	for _, docs := range []int{100, 1000, 10000} {
		b.Run(fmt.Sprintf("docs_%d", docs), func(b *testing.B) {
			s := benchSession(b, docs)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := s.SimpleSearch("search ranking"); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkSimpleSearchParallel measures concurrent read throughput.
func BenchmarkSimpleSearchParallel(b *testing.B) {
	s := benchSession(b, 10000)
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := s.SimpleSearch("distributed analytics"); err != nil {
				b.Error(err)
				return
			}
		}
	})
}
