// Package health probes the intelligence backend and caches the verdict.
//
// DESIGN: A probe result, good or bad, is reused for config.HealthTTL so an
// outage does not turn every gateway call into a probe. Concurrent callers
// that find the cache stale share one in-flight probe (singleflight).
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"

	"github.com/compresr/assist-gateway/internal/config"
	"github.com/compresr/assist-gateway/internal/transport"
)

// Endpoint is the backend liveness path.
const Endpoint = "/health"

const healthyStatus = "healthy"

// Prober executes a backend request. *transport.Client satisfies it.
type Prober interface {
	Execute(ctx context.Context, req transport.Request, timeout time.Duration) (json.RawMessage, error)
}

// Status is a cached probe outcome.
type Status struct {
	Available bool
	CheckedAt time.Time
	Reason    string // why the backend is unavailable; empty when available
}

// Monitor caches backend availability. Safe for concurrent use.
type Monitor struct {
	prober  Prober
	timeout time.Duration
	ttl     time.Duration
	now     func() time.Time

	mu     sync.Mutex
	status Status
	valid  bool

	group  singleflight.Group
	probes int64
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// WithTTL overrides how long a probe result is reused.
func WithTTL(ttl time.Duration) Option {
	return func(m *Monitor) {
		m.ttl = ttl
	}
}

// New creates a monitor that probes with the given timeout.
func New(prober Prober, timeout time.Duration, opts ...Option) *Monitor {
	m := &Monitor{
		prober:  prober,
		timeout: timeout,
		ttl:     config.HealthTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsAvailable reports whether the backend is healthy, probing only when the
// cached status is older than the TTL. The probe is bounded by the monitor's
// timeout only; the caller's cancellation never becomes a cached outage.
func (m *Monitor) IsAvailable(ctx context.Context) (bool, string) {
	if st, ok := m.cached(); ok {
		return st.Available, st.Reason
	}

	v, _, shared := m.group.Do("probe", func() (any, error) {
		// Another caller may have refreshed while we waited for the group.
		if st, ok := m.cached(); ok {
			return st, nil
		}
		// Shared by every waiter, so detached from the first caller's ctx.
		st := m.probe(context.WithoutCancel(ctx))
		m.mu.Lock()
		m.status = st
		m.valid = true
		m.mu.Unlock()
		return st, nil
	})
	st := v.(Status)
	if shared {
		log.Debug().Bool("available", st.Available).Msg("health: shared in-flight probe")
	}
	return st.Available, st.Reason
}

// Status returns the last probe result without probing. ok is false when no
// probe has run since construction or the last Invalidate.
func (m *Monitor) Status() (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.valid
}

// Invalidate forces the next IsAvailable to probe.
func (m *Monitor) Invalidate() {
	m.mu.Lock()
	m.valid = false
	m.mu.Unlock()
}

// Probes returns how many probes have been issued.
func (m *Monitor) Probes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.probes
}

func (m *Monitor) cached() (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.valid {
		return Status{}, false
	}
	if m.now().Sub(m.status.CheckedAt) >= m.ttl {
		return Status{}, false
	}
	return m.status, true
}

func (m *Monitor) probe(ctx context.Context) Status {
	m.mu.Lock()
	m.probes++
	m.mu.Unlock()

	st := Status{CheckedAt: m.now()}
	resp, err := m.prober.Execute(ctx, transport.Request{Method: transport.MethodGet, Endpoint: Endpoint}, m.timeout)
	if err != nil {
		st.Reason = fmt.Sprintf("health check failed: %v", err)
		log.Warn().Err(err).Msg("health: backend probe failed")
		return st
	}

	status := gjson.GetBytes(resp, "status").String()
	if status != healthyStatus {
		if status == "" {
			st.Reason = "health check returned no status"
		} else {
			st.Reason = fmt.Sprintf("backend reports status %q", status)
		}
		log.Warn().Str("status", status).Msg("health: backend not healthy")
		return st
	}

	st.Available = true
	log.Debug().Msg("health: backend healthy")
	return st
}
