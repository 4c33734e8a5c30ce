package pool

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marianozunino/keeper/internal/queue"
)

type countingRefresher struct {
	active    atomic.Int64
	peak      atomic.Int64
	processed atomic.Int64
	delay     time.Duration

	mu   sync.Mutex
	seen map[string]int
}

func (r *countingRefresher) Refresh(_ context.Context, id string) {
	n := r.active.Add(1)
	for {
		peak := r.peak.Load()
		if n <= peak || r.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	time.Sleep(r.delay)

	r.mu.Lock()
	if r.seen == nil {
		r.seen = make(map[string]int)
	}
	r.seen[id]++
	r.mu.Unlock()

	r.active.Add(-1)
	r.processed.Add(1)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 10*time.Second, 5*time.Millisecond)
}

func TestPoolBoundsConcurrency(t *testing.T) {
	q := queue.New()
	defer q.Close()

	const total = 1000
	for i := 0; i < total; i++ {
		q.Enqueue(fmt.Sprintf("id-%d", i))
	}

	r := &countingRefresher{delay: time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := New(DefaultSize, q, r, zerolog.Nop())
	p.Start(ctx)

	waitFor(t, func() bool { return r.processed.Load() == total })
	cancel()
	p.Wait()

	assert.LessOrEqual(t, r.peak.Load(), int64(DefaultSize))
	assert.Greater(t, r.peak.Load(), int64(1), "workers should run in parallel")
	assert.Len(t, r.seen, total)
	for id, n := range r.seen {
		assert.Equal(t, 1, n, "task %s processed more than once", id)
	}
}

func TestPoolSizeIsClamped(t *testing.T) {
	assert.Equal(t, DefaultSize, New(0, nil, nil, zerolog.Nop()).Size())
	assert.Equal(t, DefaultSize, New(50, nil, nil, zerolog.Nop()).Size())
	assert.Equal(t, 3, New(3, nil, nil, zerolog.Nop()).Size())
}

func TestPoolSmallSize(t *testing.T) {
	q := queue.New()
	defer q.Close()
	for i := 0; i < 50; i++ {
		q.Enqueue(fmt.Sprintf("id-%d", i))
	}

	r := &countingRefresher{delay: time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := New(2, q, r, zerolog.Nop())
	p.Start(ctx)

	waitFor(t, func() bool { return r.processed.Load() == 50 })
	assert.LessOrEqual(t, r.peak.Load(), int64(2))
}

type panickyRefresher struct {
	calls atomic.Int64
}

func (r *panickyRefresher) Refresh(_ context.Context, id string) {
	r.calls.Add(1)
	if id == "boom" {
		panic("refresh exploded")
	}
}

func TestPoolSurvivesPanics(t *testing.T) {
	q := queue.New()
	defer q.Close()

	var buf bytes.Buffer
	r := &panickyRefresher{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := New(1, q, r, zerolog.New(&buf))
	p.Start(ctx)

	q.Enqueue("boom")
	q.Enqueue("fine")

	waitFor(t, func() bool { return r.calls.Load() == 2 })
	cancel()
	p.Wait()

	assert.Contains(t, buf.String(), "Refresh panicked")
}

func TestPoolStopsOnCancel(t *testing.T) {
	q := queue.New()
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	p := New(DefaultSize, q, &countingRefresher{}, zerolog.Nop())
	p.Start(ctx)

	cancel()

	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("workers did not stop")
	}
}
