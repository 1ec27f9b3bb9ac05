package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/schema"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/redis"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]string
	fail error
}

func newMemStore() *memStore { return &memStore{data: make(map[string]string)} }

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return "", m.fail
	}
	v, ok := m.data[key]
	if !ok {
		return "", pkgredis.Nil
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.data[key] = string(value.([]byte))
	return nil
}

func (m *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func key(gen uint64, q string) Key {
	return Key{Index: "/data/idx", Generation: gen, DefaultFields: []schema.Field{0, 1}, Query: q, Limit: 10}
}

func TestGetOrCompute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	c := New(newMemStore(), time.Minute, m)
	ctx := context.Background()

	calls := 0
	compute := func() ([]string, error) {
		calls++
		return []string{`{"title":"a"}`}, nil
	}

	res, cached, err := c.GetOrCompute(ctx, key(1, "red"), compute)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, []string{`{"title":"a"}`}, res)

	res, cached, err = c.GetOrCompute(ctx, key(1, "red"), compute)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, []string{`{"title":"a"}`}, res)
	assert.Equal(t, 1, calls)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
}

func TestGenerationChangesKey(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	ctx := context.Background()
	c.Set(ctx, key(1, "red"), []string{"old"})

	_, ok := c.Get(ctx, key(2, "red"))
	assert.False(t, ok)
	assert.NotEqual(t, buildKey(key(1, "red")), buildKey(key(2, "red")))

	k := key(1, "red")
	k.DefaultFields = []schema.Field{1}
	assert.NotEqual(t, buildKey(key(1, "red")), buildKey(k))
	assert.Equal(t, buildKey(key(1, "red")), buildKey(key(1, "  red ")))

	k = key(1, "red")
	k.IndexID = "recreated"
	assert.NotEqual(t, buildKey(key(1, "red")), buildKey(k))
}

func TestComputeErrorNotCached(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute, nil)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), key(1, "x"), func() ([]string, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.data)
}

func TestStoreFailureFallsBackToCompute(t *testing.T) {
	store := newMemStore()
	store.fail = errors.New("connection refused")
	c := New(store, time.Minute, nil)
	res, cached, err := c.GetOrCompute(context.Background(), key(1, "x"), func() ([]string, error) {
		return []string{"fresh"}, nil
	})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, []string{"fresh"}, res)
}

func TestConcurrentComputeIsShared(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	var calls atomic.Int32
	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompute(context.Background(), key(1, "slow"), func() ([]string, error) {
				calls.Add(1)
				<-release
				return []string{"r"}, nil
			})
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, calls.Load(), int32(8))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute, nil)
	ctx := context.Background()
	c.Set(ctx, key(1, "a"), []string{"x"})
	c.Set(ctx, key(1, "b"), []string{"y"})
	store.data["unrelated"] = "keep"

	require.NoError(t, c.Invalidate(ctx))
	assert.Len(t, store.data, 1)
	assert.Contains(t, store.data, "unrelated")
}
