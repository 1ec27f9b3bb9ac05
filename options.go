package sanesearch

import (
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/metrics"
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records writer and search metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithResultCache caches SimpleSearch results in store for ttl. Entries are
// keyed by commit generation, so a commit never serves stale results.
func WithResultCache(store CacheStore, ttl time.Duration) Option {
	return func(s *Session) {
		if store != nil {
			s.cacheStore = store
			s.cacheTTL = ttl
		}
	}
}

// WithRecorder sends a SearchEvent per search and a CommitEvent per
// successful commit to r.
func WithRecorder(r Recorder) Option {
	return func(s *Session) {
		s.recorder = r
	}
}
