package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compresr/assist-gateway/internal/config"
	"github.com/compresr/assist-gateway/internal/host"
	"github.com/compresr/assist-gateway/internal/ratelimit"
)

// switchAdmitter admits only while open is true.
type switchAdmitter struct {
	mu    sync.Mutex
	open  bool
	calls int
}

func (a *switchAdmitter) TryAdmit() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return a.open
}

func (a *switchAdmitter) Set(open bool) {
	a.mu.Lock()
	a.open = open
	a.mu.Unlock()
}

func testQueueConfig(maxSize int) config.QueueConfig {
	return config.QueueConfig{Enabled: true, MaxSize: maxSize, BackoffBaseMs: 100, BackoffMaxMs: 1000}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		retry int
		want  int
	}{
		{0, 100},
		{1, 200},
		{2, 400},
		{3, 800},
		{4, 1000},
		{10, 1000},
		{200, 1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Backoff(100, 1000, tt.retry), "retry %d", tt.retry)
	}
	assert.Equal(t, 500, Backoff(500, 500, 3))
}

// Scenario: limit exhausted, queue of one, two more requests.
func TestEnqueue_FullWhenLimitExhausted(t *testing.T) {
	limiter := ratelimit.New(config.RateLimitConfig{MaxRequestsPerWindow: 1, WindowSeconds: 60, BurstSize: 1})
	require.True(t, limiter.TryAdmit())

	sched := &host.ManualScheduler{}
	q := New(testQueueConfig(1), limiter, sched)

	err1 := q.Enqueue(func() {})
	sched.RunPending()
	err2 := q.Enqueue(func() {})

	assert.NoError(t, err1)
	assert.ErrorIs(t, err2, ErrQueueFull)
	assert.Equal(t, 1, q.Len())

	stats := q.Stats()
	assert.Equal(t, int64(1), stats.Enqueued)
	assert.Equal(t, int64(1), stats.Rejected)
}

func TestDrain_FIFO(t *testing.T) {
	admit := &switchAdmitter{}
	sched := &host.ManualScheduler{}
	q := New(testQueueConfig(10), admit, sched)

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		require.NoError(t, q.Enqueue(func() { order = append(order, i) }))
	}
	require.Equal(t, 5, q.Len())

	sched.Advance(2000) // denied throughout
	assert.Empty(t, order)

	admit.Set(true)
	sched.Advance(2000)

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, sched.Pending(), "drain loop stops when empty")
}

func TestDrain_BackoffSequenceAndReset(t *testing.T) {
	admit := &switchAdmitter{}
	sched := &host.ManualScheduler{}
	q := New(testQueueConfig(10), admit, sched)

	resumed := 0
	require.NoError(t, q.Enqueue(func() { resumed++ }))

	sched.Advance(0)    // first attempt
	sched.Advance(100)  // retry 1
	sched.Advance(200)  // retry 2
	sched.Advance(400)  // retry 3
	sched.Advance(800)  // retry 4
	sched.Advance(1000) // retry 5, capped
	assert.Equal(t, []int{0, 100, 200, 400, 800, 1000, 1000}, sched.Delays())
	assert.Equal(t, 0, resumed)

	admit.Set(true)
	sched.Advance(1010) // admit, then the yield step finds the queue empty
	assert.Equal(t, 1, resumed)
	assert.Equal(t, 0, sched.Pending())

	// next contention episode starts again from the base delay
	admit.Set(false)
	require.NoError(t, q.Enqueue(func() { resumed++ }))
	before := len(sched.Delays())
	sched.Advance(0)
	delays := sched.Delays()[before:]
	assert.Equal(t, []int{0, 100}, delays)
}

func TestDrain_RetryCountOnHeadItem(t *testing.T) {
	admit := &switchAdmitter{}
	sched := &host.ManualScheduler{}
	q := New(testQueueConfig(10), admit, sched)

	item := &Item{Resume: func() {}}
	require.NoError(t, q.EnqueueItem(item))

	sched.Advance(0)
	sched.Advance(100)
	sched.Advance(200)

	assert.Equal(t, 3, item.RetryCount)
	assert.Equal(t, int64(3), q.Stats().Retries)
}

func TestDrain_SingleDriver(t *testing.T) {
	admit := &switchAdmitter{}
	sched := &host.ManualScheduler{}
	q := New(testQueueConfig(10), admit, sched)

	for i := 0; i < 4; i++ {
		require.NoError(t, q.Enqueue(func() {}))
	}
	assert.Equal(t, 1, sched.Pending(), "only the first enqueue starts a drain")

	sched.Advance(0)
	assert.Equal(t, 1, admit.calls)
	assert.Equal(t, 1, sched.Pending())
}

func TestDrain_ResumePanicDoesNotStopLoop(t *testing.T) {
	admit := &switchAdmitter{open: true}
	sched := &host.ManualScheduler{}
	q := New(testQueueConfig(10), admit, sched)

	ran := false
	require.NoError(t, q.Enqueue(func() { panic("boom") }))
	require.NoError(t, q.Enqueue(func() { ran = true }))

	sched.Advance(10)
	assert.True(t, ran)
}

func TestMaxWait_ExpiresStaleItems(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	cfg := testQueueConfig(10)
	cfg.MaxWaitMs = 500
	admit := &switchAdmitter{}
	sched := &host.ManualScheduler{}
	q := New(cfg, admit, sched, WithClock(clock))

	var expired []error
	resumed := false
	require.NoError(t, q.EnqueueItem(&Item{
		Resume: func() { resumed = true },
		Expire: func(err error) { expired = append(expired, err) },
	}))

	sched.Advance(0)
	assert.Empty(t, expired)

	now = now.Add(600 * time.Millisecond)
	admit.Set(true)
	sched.Advance(100)

	require.Len(t, expired, 1)
	assert.ErrorIs(t, expired[0], ErrQueueTimeout)
	assert.False(t, resumed)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, int64(1), q.Stats().Expired)
}

func TestClose_FailsPendingItems(t *testing.T) {
	admit := &switchAdmitter{}
	sched := &host.ManualScheduler{}
	q := New(testQueueConfig(10), admit, sched)

	var got []error
	for i := 0; i < 3; i++ {
		require.NoError(t, q.EnqueueItem(&Item{
			Resume: func() { t.Error("resumed after close") },
			Expire: func(err error) { got = append(got, err) },
		}))
	}

	q.Close()
	sched.Advance(5000)

	require.Len(t, got, 3)
	for _, err := range got {
		assert.ErrorIs(t, err, ErrClosed)
	}
	assert.ErrorIs(t, q.Enqueue(func() {}), ErrClosed)
	assert.Equal(t, 0, sched.Pending())
}

func TestBoundHolds(t *testing.T) {
	admit := &switchAdmitter{}
	sched := &host.ManualScheduler{}
	q := New(testQueueConfig(3), admit, sched)

	full := 0
	for i := 0; i < 10; i++ {
		if err := q.Enqueue(func() {}); err != nil {
			full++
		}
		assert.LessOrEqual(t, q.Len(), 3)
	}
	assert.Equal(t, 7, full)
}

// flagCtx reports Canceled once set, but its Done channel never closes, so
// only the drain loop can notice it.
type flagCtx struct {
	context.Context
	canceled atomic.Bool
}

func (c *flagCtx) Err() error {
	if c.canceled.Load() {
		return context.Canceled
	}
	return nil
}

func TestCancel_RemovesItemAndFreesSlot(t *testing.T) {
	admit := &switchAdmitter{}
	sched := &host.ManualScheduler{}
	q := New(testQueueConfig(1), admit, sched)

	ctx, cancel := context.WithCancel(context.Background())
	expired := make(chan error, 1)
	require.NoError(t, q.EnqueueItem(&Item{
		Ctx:    ctx,
		Resume: func() { t.Error("canceled item resumed") },
		Expire: func(err error) { expired <- err },
	}))
	assert.ErrorIs(t, q.Enqueue(func() {}), ErrQueueFull)

	cancel()
	select {
	case err := <-expired:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("canceled item not expired")
	}

	assert.Equal(t, 0, q.Len())
	assert.Equal(t, int64(1), q.Stats().Canceled)
	assert.NoError(t, q.Enqueue(func() {}), "slot freed for live callers")
}

func TestCancel_NeverTakesAdmission(t *testing.T) {
	admit := &switchAdmitter{open: true}
	sched := &host.ManualScheduler{}
	q := New(testQueueConfig(5), admit, sched)

	ctx := &flagCtx{Context: context.Background()}
	var expired error
	require.NoError(t, q.EnqueueItem(&Item{
		Ctx:    ctx,
		Resume: func() { t.Error("canceled item resumed") },
		Expire: func(err error) { expired = err },
	}))

	ctx.canceled.Store(true)
	sched.Advance(0)

	assert.ErrorIs(t, expired, context.Canceled)
	assert.Equal(t, 0, admit.calls, "no admission spent on a canceled item")
	assert.Equal(t, int64(1), q.Stats().Canceled)
	assert.Equal(t, int64(0), q.Stats().Dispatched)
}

func TestCancel_SkippedItemDoesNotBlockOthers(t *testing.T) {
	admit := &switchAdmitter{open: true}
	sched := &host.ManualScheduler{}
	q := New(testQueueConfig(5), admit, sched)

	ctx := &flagCtx{Context: context.Background()}
	require.NoError(t, q.EnqueueItem(&Item{Ctx: ctx, Resume: func() { t.Error("canceled item resumed") }}))
	ran := false
	require.NoError(t, q.Enqueue(func() { ran = true }))

	ctx.canceled.Store(true)
	sched.Advance(10)

	assert.True(t, ran)
	assert.Equal(t, 1, admit.calls)
}

func TestEnqueue_AlreadyCanceled(t *testing.T) {
	q := New(testQueueConfig(5), &switchAdmitter{}, &host.ManualScheduler{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := q.EnqueueItem(&Item{Ctx: ctx, Resume: func() {}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, int64(0), q.Stats().Enqueued)
}
