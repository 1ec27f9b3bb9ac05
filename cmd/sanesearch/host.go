package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/sanesearch"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/resilience"
)

var connectRetry = resilience.RetryConfig{
	MaxAttempts:    5,
	InitialDelay:   500 * time.Millisecond,
	MaxDelay:       5 * time.Second,
	AttemptTimeout: 5 * time.Second,
}

// host owns a session and the services wired around it.
type host struct {
	cfg        *config.Config
	session    *sanesearch.Session
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	aggregator *analytics.Aggregator
	redis      *pkgredis.Client
	pg         *postgres.Client

	cancel  context.CancelFunc
	closers []func()
}

// newHost builds a session with the cache and analytics the config enables.
// Unreachable optional services are logged and left out.
func newHost(ctx context.Context, cfg *config.Config) (*host, error) {
	ctx, cancel := context.WithCancel(ctx)
	h := newBareHost(cfg)
	h.cancel = cancel
	opts := []sanesearch.Option{
		sanesearch.WithLogger(slog.Default()),
		sanesearch.WithMetrics(h.metrics),
	}

	if cfg.Search.CacheEnabled {
		if err := h.connectRedis(ctx); err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			cb := resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
				FailureThreshold: 5,
				ResetTimeout:     30 * time.Second,
				OnStateChange: func(name string, _, to resilience.State) {
					h.metrics.CircuitState.WithLabelValues(name).Set(float64(to))
				},
			})
			h.metrics.CircuitState.WithLabelValues("redis-cache").Set(float64(resilience.StateClosed))
			opts = append(opts, sanesearch.WithResultCache(cache.NewBreakerStore(h.redis, cb), cfg.Search.CacheTTL))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Search.CacheTTL)
		}
	}

	if cfg.Analytics.Enabled {
		rec, err := h.startAnalytics(ctx)
		if err != nil {
			h.Close()
			return nil, err
		}
		opts = append(opts, sanesearch.WithRecorder(rec))
	}

	h.session = sanesearch.New(opts...)
	return h, nil
}

// newBareHost has metrics but no session or services.
func newBareHost(cfg *config.Config) *host {
	reg := metrics.NewRegistry()
	return &host{
		cfg:      cfg,
		registry: reg,
		metrics:  metrics.New(reg),
		cancel:   func() {},
	}
}

func (h *host) connectRedis(ctx context.Context) error {
	return resilience.Retry(ctx, "redis connect", connectRetry, func(ctx context.Context) error {
		c, err := pkgredis.NewClient(ctx, h.cfg.Redis)
		if err != nil {
			return err
		}
		h.redis = c
		h.closers = append(h.closers, func() { c.Close() })
		return nil
	})
}

func (h *host) connectPostgres(ctx context.Context) error {
	return resilience.Retry(ctx, "postgres connect", connectRetry, func(ctx context.Context) error {
		c, err := postgres.New(ctx, h.cfg.Postgres)
		if err != nil {
			return err
		}
		h.pg = c
		h.closers = append(h.closers, func() { c.Close() })
		return nil
	})
}

// startAnalytics records events into an in-process aggregator and ships
// them to the configured sink in batches.
func (h *host) startAnalytics(ctx context.Context) (analytics.Recorder, error) {
	cfg := h.cfg.Analytics
	h.aggregator = analytics.NewAggregator()

	var sink collector.Sink
	switch cfg.Sink {
	case "kafka":
		producer, err := kafka.NewProducer(h.cfg.Kafka, h.cfg.Kafka.Topics.Analytics)
		if err != nil {
			return nil, fmt.Errorf("analytics producer: %w", err)
		}
		h.closers = append(h.closers, func() { producer.Close() })
		sink = collector.NewKafkaSink(producer)
	default:
		if err := h.connectPostgres(ctx); err != nil {
			return nil, fmt.Errorf("analytics store: %w", err)
		}
		store := aggregator.NewStore(h.pg)
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		saved := store.StartPeriodicSave(ctx, h.aggregator, cfg.SnapshotInterval)
		h.closers = append(h.closers, func() { <-saved })
		sink = store
	}

	bc := collector.NewBatchCollector(sink, cfg.BatchSize, cfg.FlushInterval)
	bc.Start(ctx)
	h.closers = append(h.closers, bc.Close)
	slog.Info("analytics enabled", "sink", cfg.Sink)
	return analytics.Multi(bc, h.aggregator), nil
}

// openIndex opens the configured index and applies the configured default
// search fields.
func (h *host) openIndex() error {
	if err := h.session.OpenIndex(h.cfg.Index.Path); err != nil {
		return err
	}
	if len(h.cfg.Index.DefaultFields) == 0 {
		return nil
	}
	fields, err := fieldHandles(h.session.Schema(), h.cfg.Index.DefaultFields)
	if err != nil {
		return err
	}
	return h.session.SetDefaultFields(fields...)
}

// healthChecker reports the index as required and the optional services
// that connected as optional.
func (h *host) healthChecker() *health.Checker {
	checker := health.NewChecker(2 * time.Second)
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		n, err := h.session.DocCount()
		if err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d documents", n)}
	})
	if h.redis != nil {
		checker.RegisterOptional("redis", health.PingCheck(h.redis.Ping))
	}
	if h.pg != nil {
		checker.RegisterOptional("postgres", health.PingCheck(h.pg.Ping))
	}
	return checker
}

// Close closes the session, then stops background services and flushes
// buffered analytics before releasing connections.
func (h *host) Close() {
	if h.session != nil {
		if err := h.session.Close(); err != nil {
			slog.Error("closing session", "error", err)
		}
	}
	h.cancel()
	for i := len(h.closers) - 1; i >= 0; i-- {
		h.closers[i]()
	}
}
