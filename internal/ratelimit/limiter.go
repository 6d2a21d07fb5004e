// Package ratelimit implements sliding-window admission control for backend requests.
//
// DESIGN: A sliding-window counter, not a token bucket. The limiter keeps the
// timestamps of admitted requests and prunes those older than the window on
// every check, so no trailing window ever holds more than MaxRequests
// admissions. BurstSize is carried in the config but not consulted.
package ratelimit

import (
	"sync"
	"time"

	"github.com/compresr/assist-gateway/internal/config"
)

// Limiter is a sliding-window rate limiter. Safe for concurrent use.
type Limiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	timestamps  []time.Time // admission times, oldest first
	now         func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a limiter from the rate limit settings.
func New(cfg config.RateLimitConfig, opts ...Option) *Limiter {
	l := &Limiter{
		maxRequests: cfg.MaxRequestsPerWindow,
		window:      time.Duration(cfg.WindowSeconds) * time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TryAdmit records and admits a request if the trailing window has room.
func (l *Limiter) TryAdmit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.pruneLocked(now)
	if len(l.timestamps) >= l.maxRequests {
		return false
	}
	l.timestamps = append(l.timestamps, now)
	return true
}

// Remaining returns how many admissions the current window still allows.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(l.now())
	return l.maxRequests - len(l.timestamps)
}

// RetryAfter returns how long until the next admission can succeed.
// Zero means a request would be admitted now.
func (l *Limiter) RetryAfter() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.pruneLocked(now)
	if len(l.timestamps) < l.maxRequests {
		return 0
	}
	return l.timestamps[0].Add(l.window).Sub(now)
}

// Reset forgets all recorded admissions.
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.timestamps = nil
	l.mu.Unlock()
}

// pruneLocked drops timestamps that left the window. A timestamp exactly
// one window old no longer counts.
func (l *Limiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.timestamps) && !l.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.timestamps = append(l.timestamps[:0], l.timestamps[i:]...)
	}
}
