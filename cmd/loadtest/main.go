// Command loadtest drives GET /api/v1/search of a running "sanesearch
// serve" with concurrent workers and prints a latency report.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

var defaultQueries = []string{
	"distributed systems",
	"search engine",
	"analytics platform",
	"indexing documents",
	"query processing",
	"cache optimization",
	"ranking algorithm",
	"circuit breaker",
	"load balancing",
	"full text search",
	"inverted index",
	"token stemming",
	"document ingestion",
	`"red shoes"`,
	"shoes -blue",
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of sanesearch serve")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	queryFile := flag.String("queries", "", "file with one query per line (built-in set when empty)")
	flag.Parse()

	queries := defaultQueries
	if *queryFile != "" {
		var err error
		if queries, err = readQueries(*queryFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	fmt.Printf("target %s, %d workers, %s, %d queries\n", *baseURL, *concurrency, *duration, len(queries))
	stats := NewStats()
	start := time.Now()
	if err := run(context.Background(), *baseURL, *concurrency, *duration, queries, stats); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	printReport(os.Stdout, stats.Report(time.Since(start)))
}

func run(ctx context.Context, baseURL string, workers int, d time.Duration, queries []string, stats *Stats) error {
	if len(queries) == 0 {
		return fmt.Errorf("no queries")
	}
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        workers * 2,
			MaxIdleConnsPerHost: workers * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		next := w
		g.Go(func() error {
			for ctx.Err() == nil {
				q := queries[next%len(queries)]
				next++
				searchOnce(ctx, client, baseURL, q, stats)
			}
			return nil
		})
	}
	return g.Wait()
}

func searchOnce(ctx context.Context, client *http.Client, baseURL, query string, stats *Stats) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		baseURL+"/api/v1/search?q="+url.QueryEscape(query), nil)
	if err != nil {
		stats.Record(0, 0, 0, err)
		return
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			stats.Record(time.Since(start), 0, 0, err)
		}
		return
	}
	defer resp.Body.Close()
	var body struct {
		Returned int `json:"returned"`
	}
	if resp.StatusCode == http.StatusOK {
		json.NewDecoder(resp.Body).Decode(&body)
	}
	io.Copy(io.Discard, resp.Body)
	stats.Record(time.Since(start), resp.StatusCode, body.Returned, nil)
}

func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening queries: %w", err)
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if q := strings.TrimSpace(sc.Text()); q != "" {
			out = append(out, q)
		}
	}
	return out, sc.Err()
}

func printReport(w io.Writer, r Report) {
	fmt.Fprintf(w, "\nrequests  %s (%s ok, %s failed, %s with no results)\n",
		humanize.Comma(r.Total), humanize.Comma(r.Success), humanize.Comma(r.Failed), humanize.Comma(r.ZeroResults))
	if r.Total == 0 {
		fmt.Fprintln(w, "no requests completed; is the server running?")
		return
	}
	fmt.Fprintf(w, "rate      %s req/s, %.2f%% errors\n",
		humanize.CommafWithDigits(r.RPS, 1), float64(r.Failed)/float64(r.Total)*100)
	fmt.Fprintf(w, "latency   min %s  avg %s  p50 %s  p90 %s  p99 %s  max %s  stddev %s\n",
		r.Min, r.Avg, r.P50, r.P90, r.P99, r.Max, r.StdDev)

	codes := make([]int, 0, len(r.Statuses))
	for c := range r.Statuses {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	for _, c := range codes {
		fmt.Fprintf(w, "status    %d: %s\n", c, humanize.Comma(r.Statuses[c]))
	}
}
