// Request pipeline - stages shared by every facade operation.
//
// DESIGN:
//   - start():    Error boundary, request id, exactly-once completion
//   - gate():     Enabled + health checks
//   - dispatch(): Cache lookup, then admit / enqueue / reject
//   - execute():  Transport call and cache store
//
// A stage either finishes the call through done or hands it to the next
// stage. Queued calls resume on a fresh goroutine with their own boundary.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/compresr/assist-gateway/internal/host"
	"github.com/compresr/assist-gateway/internal/queue"
)

// start runs stage for c on a new goroutine. Whatever happens inside, cb is
// invoked exactly once.
func (g *Gateway) start(ctx context.Context, c *call, cb Callback, stage func(ctx context.Context, c *call, done Callback)) {
	g.metrics.RecordCall()
	c.id = g.newID()

	var once sync.Once
	started := time.Now()
	done := func(resp json.RawMessage, err error) {
		once.Do(func() {
			if err != nil {
				g.fail(c, err)
			} else {
				log.Debug().
					Str("op", c.op).
					Str("request_id", c.id).
					Dur("elapsed", time.Since(started)).
					Msg("gateway: call completed")
			}
			deliver(c, cb, resp, err)
		})
	}

	if g.closed.Load() {
		go done(nil, ErrClosed)
		return
	}

	go g.guarded(ctx, c, done, stage)
}

// guarded runs stage and converts a panic into an UnexpectedError.
func (g *Gateway) guarded(ctx context.Context, c *call, done Callback, stage func(ctx context.Context, c *call, done Callback)) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("op", c.op).
				Str("request_id", c.id).
				Interface("panic", r).
				Msg("gateway: recovered from panic")
			done(nil, &UnexpectedError{Op: c.op, Value: r})
		}
	}()
	stage(ctx, c, done)
}

// fail records a terminal failure and notifies the user when it points at
// an environment problem.
func (g *Gateway) fail(c *call, err error) {
	kind := Kind(err)
	g.metrics.RecordError(kind)

	log.Debug().
		Str("op", c.op).
		Str("request_id", c.id).
		Str("kind", kind).
		Err(err).
		Msg("gateway: call failed")

	switch kind {
	case KindUnavailable:
		g.notify(err.Error(), host.LevelWarn)
	case KindUnexpected:
		g.notify(fmt.Sprintf("AI gateway internal error: %v", err), host.LevelError)
	}
}

// notify forwards to the host notifier, which must not break completion.
func (g *Gateway) notify(msg string, level host.Level) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("gateway: notifier panicked")
		}
	}()
	g.notifier.Notify(msg, level)
}

// deliver invokes the caller's callback. A panicking callback is logged and
// swallowed so it cannot take the gateway goroutine down.
func deliver(c *call, cb Callback, resp json.RawMessage, err error) {
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("op", c.op).
				Str("request_id", c.id).
				Interface("panic", r).
				Msg("gateway: callback panicked")
		}
	}()
	cb(resp, err)
}

// gate fails the call unless the gateway is enabled and the backend healthy.
func (g *Gateway) gate(ctx context.Context) error {
	if !g.cfg.Enabled {
		return ErrDisabled
	}
	if ok, reason := g.health.IsAvailable(ctx); !ok {
		return fmt.Errorf("%w: %s", ErrUnavailable, reason)
	}
	return nil
}

// dispatch serves c from cache or sends it through admission control.
func (g *Gateway) dispatch(ctx context.Context, c *call, done Callback) {
	if c.cacheable {
		if resp, ok := g.cache.Lookup(c.endpoint, c.body); ok {
			g.metrics.RecordCacheHit()
			log.Debug().Str("op", c.op).Str("request_id", c.id).Msg("gateway: cache hit")
			done(resp, nil)
			return
		}
		g.metrics.RecordCacheMiss()
	}

	if g.limiter.TryAdmit() {
		g.execute(ctx, c, done)
		return
	}

	if !g.cfg.Queue.Enabled {
		done(nil, fmt.Errorf("%w: retry in %s", ErrRateLimited, g.limiter.RetryAfter().Round(time.Second)))
		return
	}

	item := &queue.Item{
		// Resume runs on the drain loop and must return promptly.
		Resume: func() { go g.guarded(ctx, c, done, g.resume) },
		Expire: func(err error) { done(nil, err) },
		Ctx:    ctx,
	}
	if err := g.queue.EnqueueItem(item); err != nil {
		done(nil, err)
		return
	}
	g.metrics.RecordEnqueued()
	log.Debug().Str("op", c.op).Str("request_id", c.id).Msg("gateway: rate limited, request queued")
}

// resume continues a queued call after the queue admitted it.
func (g *Gateway) resume(ctx context.Context, c *call, done Callback) {
	if err := ctx.Err(); err != nil {
		done(nil, err)
		return
	}
	g.execute(ctx, c, done)
}

// execute sends c to the backend and caches a successful response.
func (g *Gateway) execute(ctx context.Context, c *call, done Callback) {
	resp, err := g.client.Execute(ctx, c.request(), g.cfg.RequestTimeout())
	if err != nil {
		done(nil, err)
		return
	}
	if c.cacheable {
		if err := g.cache.Store(c.endpoint, c.body, resp); err != nil {
			log.Warn().Err(err).Str("request_id", c.id).Msg("gateway: failed to cache response")
		}
	}
	done(resp, nil)
}

// wait runs an async operation and blocks until it completes or ctx ends.
func wait(ctx context.Context, run func(cb Callback)) (json.RawMessage, error) {
	type outcome struct {
		resp json.RawMessage
		err  error
	}
	ch := make(chan outcome, 1)
	run(func(resp json.RawMessage, err error) {
		ch <- outcome{resp: resp, err: err}
	})

	select {
	case o := <-ch:
		return o.resp, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
