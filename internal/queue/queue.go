// Package queue holds requests that were denied admission by the rate limiter
// and releases them in FIFO order once the limiter admits again.
//
// DESIGN: One drain loop at a time. The loop never sleeps itself; every wait
// (backoff after a denial, the short yield between dispatches) goes through
// the host Scheduler, so the queue behaves identically under a real timer and
// under a manual scheduler in tests.
//
// Backoff is per drain episode, not per item: consecutive denials grow the
// delay as min(base*2^retry, max) and the first successful admission resets it.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/compresr/assist-gateway/internal/config"
	"github.com/compresr/assist-gateway/internal/host"
)

var (
	// ErrQueueFull is returned by Enqueue when the queue holds MaxSize items.
	ErrQueueFull = errors.New("request queue is full")
	// ErrQueueTimeout is passed to an item's expire callback when it waited longer than MaxWaitMs.
	ErrQueueTimeout = errors.New("request timed out waiting in queue")
	// ErrClosed is returned by Enqueue after Close, and passed to pending items on Close.
	ErrClosed = errors.New("request queue closed")
)

// Admitter decides whether one more request may proceed now.
type Admitter interface {
	TryAdmit() bool
}

// Item is one deferred request.
type Item struct {
	// RetryCount is the number of denied admission attempts while this item was at the head.
	RetryCount int
	// Resume continues the request after admission. It must not block.
	Resume func()
	// Expire is called instead of Resume when the item is dropped. May be nil.
	Expire func(error)
	// Ctx, when set, ties the item to its caller. Once Ctx ends the item
	// leaves the queue, Expire gets Ctx.Err(), and it never takes an admission.
	Ctx context.Context

	enqueuedAt time.Time
	stop       func() bool // unregisters the Ctx watcher
}

// Stats is a snapshot of queue activity.
type Stats struct {
	Pending    int   `json:"pending"`
	Enqueued   int64 `json:"enqueued"`
	Rejected   int64 `json:"rejected"`
	Dispatched int64 `json:"dispatched"`
	Expired    int64 `json:"expired"`
	Canceled   int64 `json:"canceled"`
	Retries    int64 `json:"retries"`
}

// Queue is a bounded FIFO drained against an Admitter. Safe for concurrent use.
type Queue struct {
	mu       sync.Mutex
	items    []*Item
	maxSize  int
	base     int
	max      int
	maxWait  time.Duration
	limiter  Admitter
	sched    host.Scheduler
	now      func() time.Time
	draining bool
	closed   bool
	retry    int
	stats    Stats
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock overrides the time source used for MaxWaitMs.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		q.now = now
	}
}

// New creates a queue that admits through limiter and waits through sched.
func New(cfg config.QueueConfig, limiter Admitter, sched host.Scheduler, opts ...Option) *Queue {
	q := &Queue{
		maxSize: cfg.MaxSize,
		base:    cfg.BackoffBaseMs,
		max:     cfg.BackoffMaxMs,
		maxWait: time.Duration(cfg.MaxWaitMs) * time.Millisecond,
		limiter: limiter,
		sched:   sched,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends resume to the queue. It fails immediately with
// ErrQueueFull instead of blocking when the queue is at capacity.
func (q *Queue) Enqueue(resume func()) error {
	return q.EnqueueItem(&Item{Resume: resume})
}

// EnqueueItem appends item to the queue and starts the drain loop if idle.
func (q *Queue) EnqueueItem(item *Item) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	if item.Ctx != nil && item.Ctx.Err() != nil {
		q.mu.Unlock()
		return item.Ctx.Err()
	}
	if len(q.items) >= q.maxSize {
		q.stats.Rejected++
		q.mu.Unlock()
		log.Debug().Int("size", q.maxSize).Msg("queue: full, rejecting request")
		return ErrQueueFull
	}
	item.enqueuedAt = q.now()
	if item.Ctx != nil {
		ctx := item.Ctx
		item.stop = context.AfterFunc(ctx, func() { q.cancel(item, ctx.Err()) })
	}
	q.items = append(q.items, item)
	q.stats.Enqueued++
	pending := len(q.items)
	start := !q.draining
	if start {
		q.draining = true
	}
	q.mu.Unlock()

	log.Debug().Int("pending", pending).Msg("queue: request deferred")
	if start {
		q.sched.DeferMs(0, q.drain)
	}
	return nil
}

// Len returns the number of pending items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stats returns a snapshot of queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.stats
	s.Pending = len(q.items)
	return s
}

// Close stops the drain loop and fails every pending item with ErrClosed.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	pending := q.items
	q.items = nil
	q.stats.Expired += int64(len(pending))
	q.mu.Unlock()

	for _, item := range pending {
		expire(item, ErrClosed)
	}
}

// cancel removes item if it is still pending and fails it with err.
func (q *Queue) cancel(item *Item, err error) {
	q.mu.Lock()
	idx := -1
	for i, it := range q.items {
		if it == item {
			idx = i
			break
		}
	}
	if idx < 0 {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items[:idx], q.items[idx+1:]...)
	q.stats.Canceled++
	pending := len(q.items)
	q.mu.Unlock()

	log.Debug().Int("pending", pending).Msg("queue: caller gave up, request removed")
	expire(item, err)
}

// Backoff returns the delay in milliseconds before admission attempt retry+1.
func Backoff(base, max, retry int) int {
	delay := base
	for i := 0; i < retry; i++ {
		if delay >= max {
			return max
		}
		delay *= 2
	}
	if delay > max {
		return max
	}
	return delay
}

// drain runs one step of the loop and reschedules itself while work remains.
// Only one drain chain is ever live, guarded by q.draining.
func (q *Queue) drain() {
	q.mu.Lock()
	if q.closed {
		q.draining = false
		q.mu.Unlock()
		return
	}

	stale := q.popStaleLocked()
	canceled := q.popCanceledLocked()

	if len(q.items) == 0 {
		q.draining = false
		q.retry = 0
		q.mu.Unlock()
		expireAll(stale, ErrQueueTimeout)
		expireCanceled(canceled)
		return
	}

	if !q.limiter.TryAdmit() {
		delay := Backoff(q.base, q.max, q.retry)
		q.retry++
		q.items[0].RetryCount++
		q.stats.Retries++
		pending := len(q.items)
		q.mu.Unlock()

		expireAll(stale, ErrQueueTimeout)
		expireCanceled(canceled)
		log.Debug().Int("delay_ms", delay).Int("pending", pending).Msg("queue: admission denied, backing off")
		q.sched.DeferMs(delay, q.drain)
		return
	}

	head := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	q.retry = 0
	q.stats.Dispatched++
	q.mu.Unlock()

	expireAll(stale, ErrQueueTimeout)
	expireCanceled(canceled)
	run(head)
	q.sched.DeferMs(int(config.QueueYield/time.Millisecond), q.drain)
}

// popStaleLocked removes head items that waited longer than maxWait.
func (q *Queue) popStaleLocked() []*Item {
	if q.maxWait <= 0 {
		return nil
	}
	now := q.now()
	var stale []*Item
	for len(q.items) > 0 && now.Sub(q.items[0].enqueuedAt) >= q.maxWait {
		stale = append(stale, q.items[0])
		q.items[0] = nil
		q.items = q.items[1:]
	}
	q.stats.Expired += int64(len(stale))
	return stale
}

// popCanceledLocked removes items whose context ended before the watcher ran.
func (q *Queue) popCanceledLocked() []*Item {
	var canceled []*Item
	kept := q.items[:0]
	for _, it := range q.items {
		if it.Ctx != nil && it.Ctx.Err() != nil {
			canceled = append(canceled, it)
			continue
		}
		kept = append(kept, it)
	}
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = nil
	}
	q.items = kept
	q.stats.Canceled += int64(len(canceled))
	return canceled
}

func run(item *Item) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("queue: resume panicked")
		}
	}()
	release(item)
	if item.Resume != nil {
		item.Resume()
	}
}

func expire(item *Item, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("queue: expire panicked")
		}
	}()
	release(item)
	if item.Expire != nil {
		item.Expire(err)
	}
}

func release(item *Item) {
	if item.stop != nil {
		item.stop()
	}
}

func expireCanceled(items []*Item) {
	for _, item := range items {
		expire(item, item.Ctx.Err())
	}
}

func expireAll(items []*Item, err error) {
	for _, item := range items {
		expire(item, err)
	}
	if len(items) > 0 {
		log.Warn().Int("count", len(items)).Msg("queue: dropped items that exceeded max wait")
	}
}
