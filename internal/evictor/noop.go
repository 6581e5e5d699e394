package evictor

import "time"

// NoOpEvictor stands in for the worker when a pipeline has no eviction section;
// inserts then rely on hard-limit eviction only.
type NoOpEvictor struct{}

func (NoOpEvictor) ForceCall(time.Duration) error { return nil }

func (NoOpEvictor) EvictorMetrics() (scans, hits, evictedItems, evictedBytes int64) {
	return 0, 0, 0, 0
}

func (NoOpEvictor) Close() error { return nil }
