package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/sanesearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/sanesearch/pkg/kafka"
)

type fakeSink struct {
	mu      sync.Mutex
	batches [][]analytics.Envelope
	fail    error
}

func (f *fakeSink) WriteBatch(_ context.Context, events []analytics.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.batches = append(f.batches, append([]analytics.Envelope(nil), events...))
	return nil
}

func (f *fakeSink) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func TestFlushWritesBufferedEvents(t *testing.T) {
	sink := &fakeSink{}
	bc := NewBatchCollector(sink, 10, time.Hour)
	bc.RecordSearch(analytics.SearchEvent{Index: "/idx", Query: "a"})
	bc.RecordCommit(analytics.CommitEvent{Index: "/idx", Documents: 3})
	assert.Equal(t, 2, bc.BufferLen())

	bc.Flush(context.Background())
	assert.Equal(t, 0, bc.BufferLen())
	require.Len(t, sink.batches, 1)
	assert.Equal(t, "/idx", sink.batches[0][0].Key)
	assert.IsType(t, analytics.CommitEvent{}, sink.batches[0][1].Event)
}

func TestTrackFlushesAtBatchSize(t *testing.T) {
	sink := &fakeSink{}
	bc := NewBatchCollector(sink, 3, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer func() { cancel(); bc.Close() }()
	bc.Start(ctx)

	for i := 0; i < 3; i++ {
		bc.Track("k", i)
	}
	assert.Eventually(t, func() bool { return sink.total() == 3 }, time.Second, 5*time.Millisecond)
}

func TestTrackDropsWhenBufferFull(t *testing.T) {
	sink := &fakeSink{fail: errors.New("db down")}
	bc := NewBatchCollector(sink, 2, time.Hour)
	for i := 0; i < 10; i++ {
		bc.Track("k", i)
	}
	assert.Equal(t, 6, bc.BufferLen())
	assert.Equal(t, int64(4), bc.Dropped())

	sink.fail = nil
	bc.Flush(context.Background())
	assert.Equal(t, 6, sink.total())
	assert.Zero(t, bc.Dropped())
}

func TestCloseWithoutStart(t *testing.T) {
	bc := NewBatchCollector(&fakeSink{}, 1, time.Hour)
	bc.Close()
}

func TestFailedFlushRequeuesWithCap(t *testing.T) {
	sink := &fakeSink{fail: errors.New("db down")}
	bc := NewBatchCollector(sink, 2, time.Hour)
	bc.mu.Lock()
	for i := 0; i < 10; i++ {
		bc.buffer = append(bc.buffer, analytics.Envelope{Key: "k", Event: i})
	}
	bc.mu.Unlock()

	bc.Flush(context.Background())
	assert.Equal(t, 6, bc.BufferLen())

	sink.fail = nil
	bc.Flush(context.Background())
	assert.Equal(t, 0, bc.BufferLen())
	require.Len(t, sink.batches, 1)
	assert.Equal(t, 0, sink.batches[0][0].Event)
}

func TestStartFlushesOnCancel(t *testing.T) {
	sink := &fakeSink{}
	bc := NewBatchCollector(sink, 100, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	bc.Start(ctx)
	bc.Track("k", "v")
	cancel()
	bc.Close()
	assert.Equal(t, 1, sink.total())
}

type fakePublisher struct{ got []kafka.Event }

func (p *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.got = append(p.got, events...)
	return nil
}

func TestKafkaSinkKeepsKeys(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewKafkaSink(pub)
	ev := analytics.SearchEvent{Query: "q"}
	require.NoError(t, sink.WriteBatch(context.Background(), []analytics.Envelope{{Key: "/idx", Event: ev}}))
	require.Len(t, pub.got, 1)
	assert.Equal(t, "/idx", pub.got[0].Key)
	assert.Equal(t, ev, pub.got[0].Value)
}
