package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgredis "github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/resilience"
)

func TestBreakerStoreMissIsNotFailure(t *testing.T) {
	cb := resilience.NewCircuitBreaker("cache", resilience.CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})
	b := NewBreakerStore(newMemStore(), cb)

	_, err := b.Get(context.Background(), "absent")
	assert.True(t, pkgredis.IsNilError(err))
	assert.Equal(t, resilience.StateClosed, cb.GetState())
}

func TestBreakerStoreOpensOnFailures(t *testing.T) {
	store := newMemStore()
	store.fail = errors.New("connection refused")
	cb := resilience.NewCircuitBreaker("cache", resilience.CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour})
	b := NewBreakerStore(store, cb)
	ctx := context.Background()

	_, err := b.Get(ctx, "k")
	require.Error(t, err)
	require.Error(t, b.Set(ctx, "k", []byte("v"), time.Minute))
	assert.Equal(t, resilience.StateOpen, cb.GetState())

	store.fail = nil
	_, err = b.Get(ctx, "k")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestQueryCacheOverOpenBreakerComputes(t *testing.T) {
	store := newMemStore()
	store.fail = errors.New("down")
	cb := resilience.NewCircuitBreaker("cache", resilience.CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})
	c := New(NewBreakerStore(store, cb), time.Minute, nil)

	key := Key{Index: "idx", Generation: 1, Query: "red", Limit: 10}
	for i := 0; i < 3; i++ {
		docs, cached, err := c.GetOrCompute(context.Background(), key, func() ([]string, error) {
			return []string{`{"title":"red"}`}, nil
		})
		require.NoError(t, err)
		assert.False(t, cached)
		assert.Len(t, docs, 1)
	}
	assert.Equal(t, resilience.StateOpen, cb.GetState())
}
