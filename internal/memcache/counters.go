package memcache

import "sync/atomic"

type counters struct {
	hits                  atomic.Int64
	misses                atomic.Int64
	rejected              atomic.Int64
	evictedHardLimitItems atomic.Int64
	evictedHardLimitBytes atomic.Int64
}

func newCounters() *counters {
	return &counters{}
}

func (c *counters) snapshot() (hits, misses, rejected, hardEvictedItems, hardEvictedBytes int64) {
	return c.hits.Load(), c.misses.Load(), c.rejected.Load(), c.evictedHardLimitItems.Load(), c.evictedHardLimitBytes.Load()
}
