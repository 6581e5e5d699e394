// Package inflight coalesces concurrent work per key and lets the work be cancelled for
// every waiter at once.
package inflight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Borislavv/go-ash-fetch/model"
)

// ErrClosed is the cause of the cancellation returned by Run after Close.
var ErrClosed = errors.New("coordinator is closed")

// Work produces the value of one unit. Its context ends when the unit is cancelled or the
// coordinator closes, never because a waiter gave up.
type Work[V any] func(ctx context.Context) (V, error)

type unit[V any] struct {
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	value     V
	err       error
	settled   bool
	cancelled bool
}

// Coordinator runs at most one unit of work per key and fans its outcome out to every waiter.
type Coordinator[K comparable, V any] struct {
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *slog.Logger
	counters *counters
	wg       sync.WaitGroup

	mu     sync.Mutex
	units  map[K]*unit[V]
	closed bool
}

// New returns a coordinator whose units live no longer than ctx.
func New[K comparable, V any](ctx context.Context, logger *slog.Logger) *Coordinator[K, V] {
	ctx, cancel := context.WithCancel(ctx)
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator[K, V]{
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
		counters: &counters{},
		units:    make(map[K]*unit[V]),
	}
}

// Run attaches to the unit running for key, starting one with work if there is none, and
// waits for its outcome. All waiters of a unit get the same value or error.
// A waiter whose ctx ends leaves with ErrCancelled; the unit keeps running for the others.
func (c *Coordinator[K, V]) Run(ctx context.Context, key K, work Work[V]) (value V, err error) {
	if err = ctx.Err(); err != nil {
		return value, model.Cancelled(err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return value, model.Cancelled(ErrClosed)
	}
	u, found := c.units[key]
	if found {
		c.counters.joined.Add(1)
	} else {
		u = c.start(key, work)
	}
	c.mu.Unlock()

	select {
	case <-u.done:
		return u.value, u.err
	case <-ctx.Done():
		c.counters.detached.Add(1)
		return value, model.Cancelled(ctx.Err())
	}
}

// start registers a unit and runs work on its own goroutine. Must be called under c.mu.
func (c *Coordinator[K, V]) start(key K, work Work[V]) *unit[V] {
	ctx, cancel := context.WithCancel(c.ctx)
	u := &unit[V]{ctx: ctx, cancel: cancel, done: make(chan struct{})}
	c.units[key] = u
	c.counters.started.Add(1)

	c.wg.Go(func() { c.execute(key, u, work) })
	return u
}

func (c *Coordinator[K, V]) execute(key K, u *unit[V], work Work[V]) {
	var (
		value V
		err   error
	)
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("work for %v panicked: %v", key, p)
				c.logger.Error("inflight work panicked", "key", fmt.Sprint(key), "panic", p)
			}
		}()
		value, err = work(u.ctx)
	}()

	c.mu.Lock()
	if !u.settled {
		if u.cancelled {
			var zero V
			value, err = zero, model.Cancelled(nil)
		}
		u.settle(value, err)
		c.counters.completed.Add(1)
	}
	if c.units[key] == u {
		delete(c.units, key)
	}
	c.mu.Unlock()

	u.cancel()
}

// Cancel settles every waiter of key's unit with ErrCancelled and signals its work to stop.
// The unit stays registered until the work returns, so late waiters get ErrCancelled too.
func (c *Coordinator[K, V]) Cancel(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelUnlocked(key)
}

// CancelAll cancels every registered unit.
func (c *Coordinator[K, V]) CancelAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key := range c.units {
		if c.cancelUnlocked(key) {
			n++
		}
	}
	return n
}

func (c *Coordinator[K, V]) cancelUnlocked(key K) bool {
	u, ok := c.units[key]
	if !ok || u.cancelled {
		return false
	}
	u.cancelled = true
	u.cancel()
	if !u.settled {
		var zero V
		u.settle(zero, model.Cancelled(nil))
	}
	c.counters.cancelled.Add(1)
	return true
}

// Close cancels all units, rejects further Run calls and waits for running work to return.
func (c *Coordinator[K, V]) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	for key := range c.units {
		c.cancelUnlocked(key)
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	return nil
}

// Len is the number of registered units, cancelled ones still winding down included.
func (c *Coordinator[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.units)
}

// Metrics returns the lifetime unit counters.
func (c *Coordinator[K, V]) Metrics() (started, joined, detached, cancelled, completed int64) {
	return c.counters.snapshot()
}

func (u *unit[V]) settle(value V, err error) {
	u.value, u.err, u.settled = value, err, true
	close(u.done)
}

type counters struct {
	started   atomic.Int64
	joined    atomic.Int64
	detached  atomic.Int64
	cancelled atomic.Int64
	completed atomic.Int64
}

func (c *counters) snapshot() (started, joined, detached, cancelled, completed int64) {
	return c.started.Load(), c.joined.Load(), c.detached.Load(), c.cancelled.Load(), c.completed.Load()
}
