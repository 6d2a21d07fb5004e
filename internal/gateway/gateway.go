// Package gateway is the facade every editor feature calls to reach the
// intelligence backend.
//
// DESIGN: One Gateway owns the cache, limiter, queue, health monitor and
// counters for a session; nothing is global, so tests build independent
// instances. Each operation exists in two forms:
//   - FooAsync(ctx, ..., cb): returns immediately, cb runs exactly once
//   - Foo(ctx, ...):          same pipeline, waits for the outcome
//
// Pipeline: health gate → sanitize → cache lookup → admit or enqueue →
// transport → cache store → callback. Every stage runs inside an error
// boundary that turns panics into *UnexpectedError.
//
// FILES:
//   - gateway.go:    Gateway construction, lifecycle, stats
//   - request.go:    Pipeline stages and error boundary
//   - operations.go: Public async/blocking operations
//   - errors.go:     Error taxonomy and Kind
//   - types.go:      Endpoints, Callback, call
//   - stats.go:      Structured stats report
package gateway

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/compresr/assist-gateway/internal/cache"
	"github.com/compresr/assist-gateway/internal/config"
	"github.com/compresr/assist-gateway/internal/health"
	"github.com/compresr/assist-gateway/internal/host"
	"github.com/compresr/assist-gateway/internal/monitoring"
	"github.com/compresr/assist-gateway/internal/queue"
	"github.com/compresr/assist-gateway/internal/ratelimit"
	"github.com/compresr/assist-gateway/internal/sanitize"
	"github.com/compresr/assist-gateway/internal/transport"
	"github.com/compresr/assist-gateway/internal/utils"
)

// Gateway mediates all calls to the intelligence backend. Safe for concurrent use.
type Gateway struct {
	cfg config.Config

	sanitizer *sanitize.Sanitizer
	cache     *cache.Manager
	limiter   *ratelimit.Limiter
	queue     *queue.Queue
	client    *transport.Client
	health    *health.Monitor
	metrics   *monitoring.MetricsCollector
	notifier  host.Notifier

	newID  func() string
	closed atomic.Bool
}

type options struct {
	runner    transport.Runner
	scheduler host.Scheduler
	notifier  host.Notifier
	now       func() time.Time
	newID     func() string
}

// Option configures a Gateway.
type Option func(*options)

// WithRunner replaces the process runner used by the transport.
func WithRunner(r transport.Runner) Option {
	return func(o *options) { o.runner = r }
}

// WithScheduler replaces the scheduler that drives queue retries.
func WithScheduler(s host.Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

// WithNotifier replaces the user notification sink.
func WithNotifier(n host.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithClock replaces the time source of the cache, limiter, queue and health monitor.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithRequestIDs replaces the request id generator.
func WithRequestIDs(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

// New validates cfg and builds a gateway.
func New(cfg config.Config, opts ...Option) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := options{
		runner:    transport.ExecRunner{},
		scheduler: host.TimerScheduler{},
		notifier:  host.LogNotifier{},
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(&o)
	}

	limiter := ratelimit.New(cfg.RateLimit, ratelimit.WithClock(o.now))
	client := transport.New(cfg.Backend, transport.WithRunner(o.runner))

	g := &Gateway{
		cfg:       cfg,
		sanitizer: sanitize.New(cfg.Privacy),
		cache:     cache.New(cfg.Cache, cache.WithClock(o.now)),
		limiter:   limiter,
		queue:     queue.New(cfg.Queue, limiter, o.scheduler, queue.WithClock(o.now)),
		client:    client,
		health:    health.New(client, cfg.HealthTimeout(), health.WithClock(o.now)),
		metrics:   monitoring.NewMetricsCollector(),
		notifier:  o.notifier,
		newID:     o.newID,
	}

	log.Info().
		Bool("enabled", cfg.Enabled).
		Str("base_url", cfg.Backend.BaseURL).
		Str("api_key", utils.MaskKey(cfg.Backend.APIKey)).
		Bool("cache", cfg.Cache.Enabled).
		Bool("queue", cfg.Queue.Enabled).
		Int("max_requests_per_window", cfg.RateLimit.MaxRequestsPerWindow).
		Bool("redact_secrets", cfg.Privacy.RedactSecrets).
		Msg("gateway: initialized")

	return g, nil
}

// Config returns the session configuration.
func (g *Gateway) Config() config.Config {
	return g.cfg
}

// Stats returns the current counters.
func (g *Gateway) Stats() monitoring.Stats {
	return g.metrics.Snapshot()
}

// Metrics returns the underlying counters, for exporters.
func (g *Gateway) Metrics() *monitoring.MetricsCollector {
	return g.metrics
}

// Gauges reports point-in-time state for the Prometheus collector.
func (g *Gateway) Gauges() monitoring.Gauges {
	st, _ := g.health.Status()
	return monitoring.Gauges{
		CacheEntries:     g.cache.Len(),
		QueuePending:     g.queue.Len(),
		BackendAvailable: st.Available,
		RateRemaining:    g.limiter.Remaining(),
	}
}

// ClearCache drops every cached response and resets the hit/miss counters.
// In-flight requests are unaffected.
func (g *Gateway) ClearCache() {
	g.cache.Clear()
	g.metrics.ResetCache()
	log.Info().Msg("gateway: cache cleared")
}

// InvalidateHealth forces the next operation to re-probe the backend.
func (g *Gateway) InvalidateHealth() {
	g.health.Invalidate()
}

// Close stops the queue and fails still-queued requests with ErrClosed.
// Later calls fail with ErrClosed. Requests already running complete normally.
func (g *Gateway) Close() error {
	if !g.closed.CompareAndSwap(false, true) {
		return nil
	}
	pending := g.queue.Len()
	g.queue.Close()
	log.Info().Int("dropped", pending).Msg("gateway: closed")
	return nil
}
