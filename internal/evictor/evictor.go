// Package evictor runs background soft-limit eviction for a memory tier so inserts rarely
// have to pay for hard-limit eviction themselves.
package evictor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Borislavv/go-ash-fetch/config"
	"github.com/Borislavv/go-ash-fetch/internal/shared/rate"
)

var ErrEvictorNotResponded = errors.New("evictor not responded")

const defaultEvictionSpinsBackoff = 2048

type Evictor interface {
	ForceCall(timeout time.Duration) error
	EvictorMetrics() (scans, hits, evictedItems, evictedBytes int64)
	Close() error
}

// Target is the memory tier the worker keeps under its soft limit.
type Target interface {
	Len() int64
	Mem() int64
	SoftMemoryLimitOvercome() bool
	SoftEvictUntilWithinLimit(backoff int64) (freed, evicted int64)
}

type EvictionWorker struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *config.EvictionCfg
	logger   *slog.Logger
	target   Target
	counters *evictorCounters
	invokeCh chan struct{}
	done     chan struct{}
}

func New(
	ctx context.Context,
	cfg *config.EvictionCfg,
	logger *slog.Logger,
	target Target,
) Evictor {
	if !cfg.Enabled() {
		return &NoOpEvictor{}
	}

	ctx, cancel := context.WithCancel(ctx)
	return (&EvictionWorker{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		logger:   logger,
		target:   target,
		counters: newEvictorCounters(),
		invokeCh: make(chan struct{}),
		done:     make(chan struct{}),
	}).run()
}

// ForceCall hands one eviction pass to the consumer, waiting at most timeout for it to accept.
func (w *EvictionWorker) ForceCall(timeout time.Duration) error {
	after := time.NewTimer(timeout)
	defer after.Stop()

	select {
	case <-w.ctx.Done():
	case w.invokeCh <- struct{}{}:
	case <-after.C:
		return ErrEvictorNotResponded
	}
	return nil
}

func (w *EvictionWorker) EvictorMetrics() (scans, hits, evictedItems, evictedBytes int64) {
	return w.counters.snapshot()
}

// Close stops the worker and waits for its goroutines.
func (w *EvictionWorker) Close() error {
	w.cancel()
	<-w.done
	return nil
}

func (w *EvictionWorker) run() *EvictionWorker {
	w.logger.Info("evictor is running", "calls_per_sec", w.cfg.CallsPerSec, "backoff_spins", w.cfg.BackoffSpinsPerCall)

	go func() {
		defer close(w.done)
		defer w.logger.Info("evictor is stopped")
		var wg sync.WaitGroup
		wg.Go(w.consumer)
		wg.Go(w.provider)
		wg.Wait()
	}()

	return w
}

// provider - calls the evictor consumer when the memory overcomes the soft limit.
func (w *EvictionWorker) provider() {
	callsPerSec := int(w.cfg.CallsPerSec)
	if callsPerSec <= 0 {
		callsPerSec = 1
	}
	limiter := rate.NewLimiter(w.ctx, callsPerSec)
	w.logger.Debug("evictor provider is paced", "calls_per_sec", limiter.Limit())

	for {
		// a stopped limiter stops blocking, so ctx is checked on every turn
		if err := limiter.Wait(w.ctx); err != nil || w.ctx.Err() != nil {
			return
		}
		if w.target.Len() == 0 || w.target.Mem() == 0 {
			continue
		}
		w.counters.scans.Add(1)
		if w.target.SoftMemoryLimitOvercome() {
			select {
			case <-w.ctx.Done():
				return
			case w.invokeCh <- struct{}{}:
				w.counters.scanHits.Add(1)
			}
		}
	}
}

// consumer - evicts items until within the soft limit or backoff by spins.
func (w *EvictionWorker) consumer() {
	var evictionSpinsBackoff = w.cfg.BackoffSpinsPerCall
	if w.cfg.BackoffSpinsPerCall <= 0 {
		evictionSpinsBackoff = defaultEvictionSpinsBackoff
	}

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.invokeCh:
			if w.target.Len() > 0 && w.target.Mem() > 0 {
				freedBytes, items := w.target.SoftEvictUntilWithinLimit(evictionSpinsBackoff)
				if items > 0 || freedBytes > 0 {
					w.counters.evictedItems.Add(items)
					w.counters.evictedBytes.Add(freedBytes)
				}
			}
		}
	}
}

type evictorCounters struct {
	scans        atomic.Int64
	scanHits     atomic.Int64
	evictedItems atomic.Int64
	evictedBytes atomic.Int64
}

func newEvictorCounters() *evictorCounters { return &evictorCounters{} }

func (c *evictorCounters) snapshot() (scans, hits, evictedItems, evictedBytes int64) {
	return c.scans.Load(), c.scanHits.Load(), c.evictedItems.Load(), c.evictedBytes.Load()
}
