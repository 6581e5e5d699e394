// Package resolver serves keyed values through the memory, disk and origin tiers, sharing
// one producer per key between concurrent callers.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Borislavv/go-ash-fetch/internal/diskstore"
	"github.com/Borislavv/go-ash-fetch/internal/inflight"
	"github.com/Borislavv/go-ash-fetch/internal/memcache"
	"github.com/Borislavv/go-ash-fetch/internal/metrics"
	"github.com/Borislavv/go-ash-fetch/internal/origin"
	"github.com/Borislavv/go-ash-fetch/internal/transform"
	"github.com/Borislavv/go-ash-fetch/model"
)

// Pipeline wires the tiers of one resource kind.
type Pipeline[V any] struct {
	Namespace string
	Memory    memcache.Cacher[V]
	Store     diskstore.Storer
	Loader    origin.Loader
	Codec     transform.Codec[V]
	Locate    Locator
	Metrics   *metrics.Pipeline
}

type Service[V any] struct {
	Pipeline[V]
	logger   *slog.Logger
	inflight *inflight.Coordinator[model.Key, outcome[V]]
}

// outcome carries the tier that produced the value to every waiter of a unit.
type outcome[V any] struct {
	value V
	tier  string
}

func New[V any](ctx context.Context, p Pipeline[V], logger *slog.Logger) *Service[V] {
	if logger == nil {
		logger = slog.Default()
	}
	if p.Metrics == nil {
		p.Metrics = metrics.NewMetrics(nil).Pipeline(p.Namespace)
	}
	logger = logger.With("pipeline", p.Namespace)
	return &Service[V]{
		Pipeline: p,
		logger:   logger,
		inflight: inflight.New[model.Key, outcome[V]](ctx, logger),
	}
}

// Fetch returns the value for key from the first tier that has it. Misses of the memory tier
// are resolved by a single producer per key; every concurrent caller gets its outcome.
func (s *Service[V]) Fetch(ctx context.Context, key model.Key) (value V, err error) {
	started := time.Now()

	locator, err := s.locate(key)
	if err != nil {
		s.fail(err)
		return value, err
	}

	if v, ok := s.Memory.Get(key); ok {
		s.resolved(metrics.TierMemory, started)
		return v, nil
	}

	out, err := s.inflight.Run(ctx, key, func(ctx context.Context) (outcome[V], error) {
		return s.produce(ctx, key, locator)
	})
	if err != nil {
		s.fail(err)
		return value, err
	}

	s.resolved(out.tier, started)
	return out.value, nil
}

// Cancel aborts the in-flight fetch of key for all its callers.
func (s *Service[V]) Cancel(key model.Key) bool {
	return s.inflight.Cancel(key)
}

func (s *Service[V]) CancelAll() int {
	return s.inflight.CancelAll()
}

// Invalidate drops key from the memory and disk tiers.
func (s *Service[V]) Invalidate(ctx context.Context, key model.Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	s.Memory.Remove(key)
	return s.Store.Remove(ctx, key.Projection())
}

// Purge empties the memory and disk tiers of the pipeline.
func (s *Service[V]) Purge(ctx context.Context) error {
	s.Memory.Clear()
	return s.Store.Purge(ctx)
}

func (s *Service[V]) InFlight() int { return s.inflight.Len() }

func (s *Service[V]) CoordinatorMetrics() (started, joined, detached, cancelled, completed int64) {
	return s.inflight.Metrics()
}

// Close cancels all in-flight fetches and waits for their producers to return.
func (s *Service[V]) Close() error {
	return s.inflight.Close()
}

func (s *Service[V]) locate(key model.Key) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}
	locator, err := s.Locate(key)
	if err != nil {
		if !errors.Is(err, model.ErrInvalidInput) {
			err = fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
		}
		return "", err
	}
	return locator, nil
}

// produce runs once per unit: memory re-check, disk, then origin with write-through.
func (s *Service[V]) produce(ctx context.Context, key model.Key, locator string) (out outcome[V], err error) {
	s.Metrics.InFlight.Inc()
	defer s.Metrics.InFlight.Dec()

	if v, ok := s.Memory.Get(key); ok {
		return outcome[V]{value: v, tier: metrics.TierMemory}, nil
	}

	name := key.Projection()
	if v, ok, err := s.fromDisk(ctx, key, name); err != nil {
		return out, err
	} else if ok {
		return outcome[V]{value: v, tier: metrics.TierDisk}, nil
	}

	if err = ctx.Err(); err != nil {
		return out, model.Cancelled(err)
	}
	raw, err := s.Loader.Load(ctx, locator)
	if err != nil {
		return out, transportErr(ctx, err)
	}
	s.Metrics.OriginBytes.Add(float64(len(raw)))

	v, persisted, err := s.Codec.Transform(ctx, key, raw)
	if err != nil {
		if ctx.Err() != nil {
			return out, model.Cancelled(ctx.Err())
		}
		return out, err
	}

	if err = ctx.Err(); err != nil {
		return out, model.Cancelled(err)
	}
	if err = s.Store.Write(ctx, persisted, name); err != nil {
		if ctx.Err() != nil {
			return out, model.Cancelled(ctx.Err())
		}
		// served, but kept out of memory so memory never holds what disk does not
		s.Metrics.PersistFailure.Inc()
		s.logger.Warn("persisting fetched value failed, memory tier not populated", "key", key.String(), "err", err)
		return outcome[V]{value: v, tier: metrics.TierOrigin}, nil
	}

	s.Memory.Set(key, v, s.Codec.Cost(v))
	return outcome[V]{value: v, tier: metrics.TierOrigin}, nil
}

// fromDisk decodes the persisted blob of key. A blob that fails to decode is removed and
// reported as a miss.
func (s *Service[V]) fromDisk(ctx context.Context, key model.Key, name string) (value V, ok bool, err error) {
	if err = ctx.Err(); err != nil {
		return value, false, model.Cancelled(err)
	}
	data := s.Store.Read(ctx, name)
	if data == nil {
		return value, false, nil
	}

	value, err = s.Codec.Decode(ctx, data)
	if err != nil {
		if ctx.Err() != nil {
			return value, false, model.Cancelled(ctx.Err())
		}
		s.Metrics.CorruptBlobs.Inc()
		s.logger.Warn("removing undecodable persisted blob", "key", key.String(), "err", err)
		if rmErr := s.Store.Remove(ctx, name); rmErr != nil {
			s.logger.Error("removing undecodable persisted blob failed", "key", key.String(), "err", rmErr)
		}
		return value, false, nil
	}

	s.Memory.Set(key, value, s.Codec.Cost(value))
	return value, true, nil
}

// transportErr keeps cancellation and input errors distinct and files everything else as transport.
func transportErr(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return model.Cancelled(ctx.Err())
	case errors.Is(err, model.ErrCancelled), errors.Is(err, model.ErrTransport), errors.Is(err, model.ErrInvalidInput):
		return err
	default:
		return fmt.Errorf("%w: %w", model.ErrTransport, err)
	}
}

func (s *Service[V]) resolved(tier string, started time.Time) {
	s.Metrics.Resolved.WithLabelValues(tier).Inc()
	s.Metrics.FetchDuration.WithLabelValues(tier).Observe(time.Since(started).Seconds())
}

func (s *Service[V]) fail(err error) {
	s.Metrics.Failures.WithLabelValues(metrics.ErrorKind(err)).Inc()
	if !model.IsCancellation(err) && !errors.Is(err, model.ErrInvalidInput) {
		s.logger.Warn("fetch failed", "err", err)
	}
}
