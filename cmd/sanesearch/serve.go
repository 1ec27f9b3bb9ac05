package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/gateway/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/gateway/router"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/sanesearch/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/ingestion/publisher"
	searchhandler "github.com/Adithya-Monish-Kumar-K/sanesearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/metrics"
)

const shutdownTimeout = 15 * time.Second

func runServe(ctx context.Context, cfg *config.Config) error {
	h, err := newHost(ctx, cfg)
	if err != nil {
		return err
	}
	defer h.Close()
	if err := h.openIndex(); err != nil {
		return err
	}

	var ing ingesthandler.Ingester
	status := http.StatusOK
	switch cfg.Server.IngestMode {
	case "kafka":
		producer, err := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest)
		if err != nil {
			return err
		}
		defer producer.Close()
		ing = publisher.New(producer, h.session.Schema())
		status = http.StatusAccepted
	default:
		if err := h.session.CreateWriter(cfg.Index.HeapSizeBytes); err != nil {
			return err
		}
		ing = publisher.NewDirect(h.session)
	}

	checker := h.healthChecker()

	search := searchhandler.New(h.session)
	routes := router.Routes{
		Search:          search.Search,
		Ingest:          ingesthandler.New(ing, status).Ingest,
		CacheStats:      search.CacheStats,
		CacheInvalidate: search.CacheInvalidate,
		Live:            checker.LiveHandler(),
		Ready:           checker.ReadyHandler(),
		Metrics:         metrics.Handler(h.registry),
	}
	if h.aggregator != nil {
		routes.Analytics = analytics.NewHandler(h.aggregator)
	}

	opts := router.Options{
		Metrics:        h.metrics,
		CORSOrigins:    cfg.Server.CORSOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
	}
	var limiter *ratelimit.Limiter
	if cfg.Server.RateLimit > 0 {
		limiter = ratelimit.New(cfg.Server.RateLimit, time.Minute)
		opts.Limiter = limiter
	}

	return listen(ctx, cfg.Server.Port, router.New(routes, opts), limiter)
}

// runAnalytics aggregates analytics events published by hosts using the
// kafka sink, snapshots the aggregate to postgres when reachable and serves
// it over HTTP.
func runAnalytics(ctx context.Context, cfg *config.Config) error {
	agg := analytics.NewAggregator()

	ctx, cancel := context.WithCancel(ctx)
	h := newBareHost(cfg)
	h.cancel = cancel
	defer h.Close()
	checker := health.NewChecker(2 * time.Second)
	if err := h.connectPostgres(ctx); err != nil {
		slog.Warn("postgres unavailable, analytics snapshots disabled", "error", err)
	} else {
		store := aggregator.NewStore(h.pg)
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		if last, err := store.LatestSnapshot(ctx); err != nil {
			slog.Warn("loading latest analytics snapshot", "error", err)
		} else if last != nil {
			slog.Info("latest analytics snapshot",
				"total_searches", last.TotalSearches,
				"total_commits", last.TotalCommits,
			)
		}
		saved := store.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)
		h.closers = append(h.closers, func() { <-saved })
		checker.RegisterOptional("postgres", health.PingCheck(h.pg.Ping))
	}

	kcfg := cfg.Kafka
	kcfg.ConsumerGroup = cfg.Kafka.ConsumerGroup + "-analytics"
	c := kafka.NewConsumer(kcfg, cfg.Kafka.Topics.Analytics, analytics.HandleEvent(agg))

	handler := router.New(router.Routes{
		Analytics: analytics.NewHandler(agg),
		Live:      checker.LiveHandler(),
		Ready:     checker.ReadyHandler(),
		Metrics:   metrics.Handler(h.registry),
	}, router.Options{Metrics: h.metrics, RequestTimeout: cfg.Server.RequestTimeout})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("analytics consumer started", "topic", cfg.Kafka.Topics.Analytics)
		return c.Start(ctx)
	})
	g.Go(func() error {
		return listen(ctx, cfg.Server.Port, handler, nil)
	})
	return g.Wait()
}

// listen serves handler until ctx ends, then shuts down gracefully.
func listen(ctx context.Context, port int, handler http.Handler, limiter *ratelimit.Limiter) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	if limiter != nil {
		g.Go(func() error {
			limiter.Run(ctx)
			return nil
		})
	}
	g.Go(func() error {
		slog.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
