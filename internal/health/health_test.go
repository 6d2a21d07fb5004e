package health

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compresr/assist-gateway/internal/transport"
)

type fakeProber struct {
	mu       sync.Mutex
	response string
	err      error
	delay    time.Duration
	calls    atomic.Int64
	lastReq  transport.Request
	lastTime time.Duration
}

func (f *fakeProber) Execute(ctx context.Context, req transport.Request, timeout time.Duration) (json.RawMessage, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, &transport.RequestFailedError{ExitCode: -1, Err: err}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastReq = req
	f.lastTime = timeout
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.response), nil
}

func (f *fakeProber) set(response string, err error) {
	f.mu.Lock()
	f.response = response
	f.err = err
	f.mu.Unlock()
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestMonitor(p Prober) (*Monitor, *clock) {
	c := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(p, 2*time.Second, WithClock(c.Now)), c
}

func TestIsAvailable_Healthy(t *testing.T) {
	p := &fakeProber{response: `{"status":"healthy","version":"1.2.0"}`}
	m, _ := newTestMonitor(p)

	ok, reason := m.IsAvailable(context.Background())

	assert.True(t, ok)
	assert.Empty(t, reason)
	assert.Equal(t, transport.MethodGet, p.lastReq.Method)
	assert.Equal(t, Endpoint, p.lastReq.Endpoint)
	assert.Nil(t, p.lastReq.Body)
	assert.Equal(t, 2*time.Second, p.lastTime)
}

func TestIsAvailable_Unhealthy(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
		reason   string
	}{
		{"degraded", `{"status":"degraded"}`, nil, `backend reports status "degraded"`},
		{"missing status", `{"ok":true}`, nil, "health check returned no status"},
		{"transport error", "", &transport.RequestFailedError{ExitCode: 7}, "health check failed: request failed with exit code 7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestMonitor(&fakeProber{response: tt.response, err: tt.err})

			ok, reason := m.IsAvailable(context.Background())

			assert.False(t, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestIsAvailable_CachedWithinTTL(t *testing.T) {
	p := &fakeProber{response: `{"status":"healthy"}`}
	m, c := newTestMonitor(p)

	m.IsAvailable(context.Background())
	c.Advance(29 * time.Second)
	ok, _ := m.IsAvailable(context.Background())

	assert.True(t, ok)
	assert.Equal(t, int64(1), p.calls.Load())

	c.Advance(time.Second) // 30s old: stale
	m.IsAvailable(context.Background())
	assert.Equal(t, int64(2), p.calls.Load())
}

func TestIsAvailable_FailureIsCached(t *testing.T) {
	p := &fakeProber{err: errors.New("connection refused")}
	m, c := newTestMonitor(p)

	for i := 0; i < 5; i++ {
		ok, _ := m.IsAvailable(context.Background())
		assert.False(t, ok)
		c.Advance(time.Second)
	}
	assert.Equal(t, int64(1), p.calls.Load())

	// recovery is noticed once the failed result ages out
	p.set(`{"status":"healthy"}`, nil)
	c.Advance(30 * time.Second)
	ok, _ := m.IsAvailable(context.Background())
	assert.True(t, ok)
}

func TestInvalidate_ForcesProbe(t *testing.T) {
	p := &fakeProber{response: `{"status":"healthy"}`}
	m, _ := newTestMonitor(p)

	m.IsAvailable(context.Background())
	_, ok := m.Status()
	require.True(t, ok)

	m.Invalidate()
	_, ok = m.Status()
	assert.False(t, ok)

	m.IsAvailable(context.Background())
	assert.Equal(t, int64(2), p.calls.Load())
	assert.Equal(t, int64(2), m.Probes())
}

func TestIsAvailable_ConcurrentCallersShareProbe(t *testing.T) {
	p := &fakeProber{response: `{"status":"healthy"}`, delay: 50 * time.Millisecond}
	m, _ := newTestMonitor(p)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := m.IsAvailable(context.Background())
			assert.True(t, ok)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), p.calls.Load())
}

func TestIsAvailable_CallerCancellationNotCached(t *testing.T) {
	p := &fakeProber{response: `{"status":"healthy"}`}
	m, _ := newTestMonitor(p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, reason := m.IsAvailable(ctx)
	assert.True(t, ok, reason)

	ok, reason = m.IsAvailable(context.Background())
	assert.True(t, ok)
	assert.Empty(t, reason)
	assert.Equal(t, int64(1), m.Probes())
}

func TestIsAvailable_CallerDeadlineNotCached(t *testing.T) {
	p := &fakeProber{response: `{"status":"healthy"}`}
	m, _ := newTestMonitor(p)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	ok, _ := m.IsAvailable(ctx)
	assert.True(t, ok)

	st, probed := m.Status()
	require.True(t, probed)
	assert.True(t, st.Available)
}
