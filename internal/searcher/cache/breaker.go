package cache

import (
	"context"
	"time"

	pkgredis "github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/resilience"
)

// BreakerStore guards a Store with a circuit breaker so an unreachable
// backend costs searches one fast failure instead of a timeout each.
// Key-not-found replies count as successes.
type BreakerStore struct {
	store   Store
	breaker *resilience.CircuitBreaker
}

func NewBreakerStore(store Store, cb *resilience.CircuitBreaker) *BreakerStore {
	return &BreakerStore{store: store, breaker: cb}
}

func (b *BreakerStore) Get(ctx context.Context, key string) (string, error) {
	var (
		val    string
		getErr error
	)
	err := b.breaker.Execute(ctx, func(ctx context.Context) error {
		val, getErr = b.store.Get(ctx, key)
		if pkgredis.IsNilError(getErr) {
			return nil
		}
		return getErr
	})
	if err != nil {
		return "", err
	}
	return val, getErr
}

func (b *BreakerStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return b.breaker.Execute(ctx, func(ctx context.Context) error {
		return b.store.Set(ctx, key, value, ttl)
	})
}

func (b *BreakerStore) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var n int64
	err := b.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		n, err = b.store.FlushByPattern(ctx, pattern)
		return err
	})
	return n, err
}
