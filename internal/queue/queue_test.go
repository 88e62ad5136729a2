package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"eddn-ingester/internal/event"
	"eddn-ingester/internal/metrics"
	"eddn-ingester/internal/shared/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func task(kind event.Kind, ref string) Task {
	return Task{Kind: kind, Envelope: &event.Envelope{SchemaRef: ref}}
}

func TestQueuePreservesArrivalOrder(t *testing.T) {
	q := New(8, PolicyBlock, nil, logger.Discard())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(ctx, task(event.KindScan, string(rune('a'+i)))))
	}

	for i := 0; i < 5; i++ {
		got, ok := q.Dequeue(ctx)
		require.True(t, ok)
		assert.Equal(t, string(rune('a'+i)), got.Envelope.SchemaRef)
		assert.False(t, got.EnqueuedAt.IsZero())
	}
}

func TestDropPolicyLogsAndCountsWhenFull(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	q := New(1, PolicyDrop, m, logger.Discard())
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, task(event.KindCommodity, "first")))
	err := q.Enqueue(ctx, task(event.KindCommodity, "second"))

	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksDropped.WithLabelValues("Commodity", "queue_full")))
	assert.Equal(t, 1, q.Len())
}

func TestBlockPolicyWaitsForSpace(t *testing.T) {
	q := New(1, PolicyBlock, nil, logger.Discard())
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, task(event.KindScan, "first")))

	enqueued := make(chan error, 1)
	go func() {
		enqueued <- q.Enqueue(ctx, task(event.KindScan, "second"))
	}()

	select {
	case <-enqueued:
		t.Fatal("enqueue returned while the queue was full")
	case <-time.After(50 * time.Millisecond):
	}

	first, ok := q.Dequeue(ctx)
	require.True(t, ok)
	assert.Equal(t, "first", first.Envelope.SchemaRef)

	select {
	case err := <-enqueued:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("enqueue did not resume after space freed")
	}

	second, ok := q.Dequeue(ctx)
	require.True(t, ok)
	assert.Equal(t, "second", second.Envelope.SchemaRef)
}

func TestBlockPolicyHonoursContext(t *testing.T) {
	q := New(1, PolicyBlock, nil, logger.Discard())
	require.NoError(t, q.Enqueue(context.Background(), task(event.KindScan, "first")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, q.Enqueue(ctx, task(event.KindScan, "second")), context.DeadlineExceeded)
}

func TestDequeueBlocksUntilTaskArrives(t *testing.T) {
	q := New(4, PolicyBlock, nil, logger.Discard())
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	var got Task
	go func() {
		defer wg.Done()
		got, _ = q.Dequeue(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Enqueue(ctx, task(event.KindLocation, "late")))
	wg.Wait()

	assert.Equal(t, event.KindLocation, got.Kind)
}

func TestLifecycle(t *testing.T) {
	q := New(4, PolicyBlock, nil, logger.Discard())
	ctx := context.Background()

	assert.Equal(t, StateOpen, q.State())
	require.NoError(t, q.Enqueue(ctx, task(event.KindScan, "pending")))

	q.Close()
	q.Close()
	assert.Equal(t, StateClosed, q.State())
	assert.ErrorIs(t, q.Enqueue(ctx, task(event.KindScan, "late")), ErrQueueClosed)

	got, ok := q.Dequeue(ctx)
	require.True(t, ok)
	assert.Equal(t, "pending", got.Envelope.SchemaRef)

	_, ok = q.Dequeue(ctx)
	assert.False(t, ok)
	assert.Equal(t, StateDrained, q.State())
}

func TestDequeueReturnsOnCancel(t *testing.T) {
	q := New(1, PolicyBlock, nil, logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := q.Dequeue(ctx)
	assert.False(t, ok)
}
