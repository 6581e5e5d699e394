// Package telemetry periodically logs per-interval deltas of the pipeline counters.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/Borislavv/go-ash-fetch/config"
	"github.com/Borislavv/go-ash-fetch/internal/evictor"
	"github.com/Borislavv/go-ash-fetch/internal/shared/bytes"
)

type Logger interface {
	Interval() time.Duration
	Close() error
}

// Memory is the memory tier as seen by telemetry.
type Memory interface {
	Len() int64
	Mem() int64
	Metrics() (hits, misses, rejected, hardEvictedItems, hardEvictedBytes int64)
}

// Coordinator is the in-flight table as seen by telemetry.
type Coordinator interface {
	InFlight() int
	CoordinatorMetrics() (started, joined, detached, cancelled, completed int64)
}

// Source is one pipeline to report on.
type Source struct {
	Namespace   string
	Memory      Memory
	Evictor     evictor.Evictor
	Coordinator Coordinator
	SoftLimit   int64 // 0 when soft eviction is off
	HardLimit   int64
}

type Logs struct {
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *slog.Logger
	sources  []Source
	interval time.Duration
	done     chan struct{}
}

// New starts the periodic logger when cfg enables it; otherwise the returned Logs is inert.
func New(ctx context.Context, cfg config.TelemetryCfg, logger *slog.Logger, sources ...Source) *Logs {
	ctx, cancel := context.WithCancel(ctx)
	l := &Logs{
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
		sources:  sources,
		interval: cfg.LogsInterval,
		done:     make(chan struct{}),
	}
	if cfg.LogsEnabled && l.interval > 0 {
		go l.loop()
	} else {
		close(l.done)
	}
	return l
}

func (l *Logs) Interval() time.Duration {
	return l.interval
}

func (l *Logs) Close() error {
	l.cancel()
	<-l.done
	return nil
}

func (l *Logs) loop() {
	defer close(l.done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	samplers := make([]sampler, len(l.sources))
	prev := make([]snapshot, len(l.sources))
	for i, src := range l.sources {
		samplers[i] = sampler{src: src}
		prev[i] = samplers[i].snapshot()
	}

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			for i, s := range samplers {
				cur := s.snapshot()
				l.report(s.src, deltaSnapshot(prev[i], cur))
				prev[i] = cur
			}
		}
	}
}

func (l *Logs) report(src Source, d snapshot) {
	common := []any{"pipeline", src.Namespace, "interval", l.interval.String()}

	if src.Coordinator != nil {
		l.logger.Info("inflight",
			append(common,
				"running", src.Coordinator.InFlight(),
				"started", int64(d.started),
				"joined", int64(d.joined),
				"detached", int64(d.detached),
				"cancelled", int64(d.cancelled),
				"completed", int64(d.completed),
			)...,
		)
	}

	if src.SoftLimit > 0 {
		l.logger.Info("soft_evictor",
			append(common,
				"scans", int64(d.softScans),
				"hits", int64(d.softHits),
				"freed_items", int64(d.softEvictedItems),
				"freed_bytes", bytes.FmtMem(int64(d.softEvictedBytes)),
			)...,
		)
	}

	if d.hardEvictedItems > 0 || d.hardEvictedBytes > 0 || d.rejected > 0 {
		l.logger.Info("hard_evictor",
			append(common,
				"freed_items", int64(d.hardEvictedItems),
				"freed_bytes", bytes.FmtMem(int64(d.hardEvictedBytes)),
				"rejected", int64(d.rejected),
			)...,
		)
	}

	softLimit := "INF"
	if src.SoftLimit > 0 {
		softLimit = bytes.FmtMem(src.SoftLimit)
	}
	l.logger.Info("memory",
		append(common,
			"size", bytes.FmtMem(src.Memory.Mem()),
			"entries", src.Memory.Len(),
			"hits", int64(d.hits),
			"misses", int64(d.misses),
			"soft_limit", softLimit,
			"hard_limit", bytes.FmtMem(src.HardLimit),
		)...,
	)
}
