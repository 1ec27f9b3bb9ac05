package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Adithya-Monish-Kumar-K/sanesearch"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/ingestion/consumer"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/metrics"
)

const (
	maxLineBytes = 16 << 20
	publishBatch = 500
)

func runCreate(ctx context.Context, cfg *config.Config) error {
	sch, err := buildSchema(cfg.Index.Fields)
	if err != nil {
		return err
	}
	h, err := newHost(ctx, cfg)
	if err != nil {
		return err
	}
	defer h.Close()

	if err := h.session.CreateIndex(sch, cfg.Index.Path); err != nil {
		return err
	}
	fmt.Printf("created index %s with %d fields\n", cfg.Index.Path, sch.Len())
	return nil
}

func runIngest(ctx context.Context, cfg *config.Config, path string) error {
	h, err := newHost(ctx, cfg)
	if err != nil {
		return err
	}
	defer h.Close()
	if err := h.openIndex(); err != nil {
		return err
	}
	if err := h.session.CreateWriter(cfg.Index.HeapSizeBytes); err != nil {
		return err
	}

	start := time.Now()
	var added, rejected, sinceCommit int
	var bytesRead uint64
	err = eachLine(path, func(n int, line []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		bytesRead += uint64(len(line)) + 1
		if err := h.session.AddDocument(string(line)); err != nil {
			if errors.Is(err, sanesearch.ErrDocumentValidation) {
				rejected++
				slog.Warn("document rejected", "line", n, "error", err)
				return nil
			}
			return fmt.Errorf("line %d: %w", n, err)
		}
		added++
		sinceCommit++
		if cfg.Index.CommitEvery > 0 && sinceCommit >= cfg.Index.CommitEvery {
			if err := h.session.Commit(); err != nil {
				return err
			}
			sinceCommit = 0
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := h.session.Commit(); err != nil {
		return err
	}
	total, err := h.session.DocCount()
	if err != nil {
		return err
	}
	fmt.Printf("added %s documents (%s), rejected %s, in %s; index holds %s documents\n",
		humanize.Comma(int64(added)),
		humanize.Bytes(bytesRead),
		humanize.Comma(int64(rejected)),
		time.Since(start).Round(time.Millisecond),
		humanize.Comma(int64(total)),
	)
	return nil
}

func runSearch(ctx context.Context, cfg *config.Config, args []string) error {
	h, err := newHost(ctx, cfg)
	if err != nil {
		return err
	}
	defer h.Close()
	if err := h.openIndex(); err != nil {
		return err
	}

	docs, err := h.session.SimpleSearch(strings.Join(args, " "))
	if err != nil {
		return err
	}
	for _, d := range docs {
		fmt.Println(d)
	}
	fmt.Fprintf(os.Stderr, "%d results\n", len(docs))
	return nil
}

// runPublish validates documents against the configured schema and queues
// them. Batches containing an invalid document are retried one by one so
// only the invalid lines are skipped.
func runPublish(ctx context.Context, cfg *config.Config, path string) error {
	sch, err := buildSchema(cfg.Index.Fields)
	if err != nil {
		return err
	}
	producer, err := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest)
	if err != nil {
		return err
	}
	defer producer.Close()
	pub := publisher.New(producer, sch)

	var queued, rejected int
	batch := make([]ingestion.IngestRequest, 0, publishBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		defer func() { batch = batch[:0] }()
		_, err := pub.IngestBatch(ctx, batch)
		switch {
		case err == nil:
			queued += len(batch)
			return nil
		case !errors.Is(err, sanesearch.ErrDocumentValidation):
			return err
		}
		for i := range batch {
			if _, err := pub.Ingest(ctx, &batch[i]); err != nil {
				if errors.Is(err, sanesearch.ErrDocumentValidation) {
					rejected++
					slog.Warn("document rejected", "error", err)
					continue
				}
				return err
			}
			queued++
		}
		return nil
	}

	err = eachLine(path, func(_ int, line []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch = append(batch, ingestion.IngestRequest{Document: json.RawMessage(append([]byte(nil), line...))})
		if len(batch) == publishBatch {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		return err
	}
	fmt.Printf("queued %s documents on %s, rejected %s\n",
		humanize.Comma(int64(queued)), cfg.Kafka.Topics.DocumentIngest, humanize.Comma(int64(rejected)))
	return nil
}

// runConsume indexes documents from the ingest topic until interrupted.
// Offsets advance only after the commit that made their documents durable.
func runConsume(ctx context.Context, cfg *config.Config) error {
	h, err := newHost(ctx, cfg)
	if err != nil {
		return err
	}
	defer h.Close()
	if err := h.openIndex(); err != nil {
		return err
	}
	if err := h.session.CreateWriter(cfg.Index.HeapSizeBytes); err != nil {
		return err
	}
	if cfg.Metrics.Enabled {
		checker := h.healthChecker()
		shutdown := metrics.StartServer(cfg.Metrics.Port, h.registry,
			metrics.Route{Pattern: "GET /health/live", Handler: checker.LiveHandler()},
			metrics.Route{Pattern: "GET /health/ready", Handler: checker.ReadyHandler()},
		)
		defer shutdown(context.Background())
	}

	feeder := consumer.New(h.session)
	c := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest, feeder.HandleMessage()).
		WithCheckpoint(feeder.Checkpoint, cfg.Index.CommitEvery, cfg.Index.CommitInterval)

	slog.Info("consuming documents",
		"topic", cfg.Kafka.Topics.DocumentIngest,
		"index", cfg.Index.Path,
		"commit_every", cfg.Index.CommitEvery,
		"commit_interval", cfg.Index.CommitInterval,
	)
	if err := c.Start(ctx); err != nil {
		return err
	}
	added, rejected := feeder.Stats()
	slog.Info("consumer stopped", "added", added, "rejected", rejected)
	return nil
}

// eachLine calls fn for every non-blank line of path ("-" reads stdin).
func eachLine(path string, fn func(n int, line []byte) error) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	n := 0
	for sc.Scan() {
		n++
		line := sc.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		if err := fn(n, line); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}
