package memcache

import (
	"log/slog"

	"github.com/Borislavv/go-ash-fetch/config"
	"github.com/Borislavv/go-ash-fetch/model"
)

// Cacher is the bounded memory tier: a cost-accounted key→value store.
type Cacher[V any] interface {
	Get(key model.Key) (value V, ok bool)
	Set(key model.Key, value V, cost int64) (stored bool)
	Remove(key model.Key) (ok bool)
	Clear()
	Len() int64
	Mem() int64
}

// Cache is safe for concurrent use; no operation blocks on I/O.
type Cache[V any] struct {
	cfg      config.MemoryCfg
	eviction *config.EvictionCfg
	db       *Map[V]
	logger   *slog.Logger
	counters *counters
}

func New[V any](cfg config.MemoryCfg, eviction *config.EvictionCfg, logger *slog.Logger) *Cache[V] {
	mode := Listing
	if eviction.Enabled() && !eviction.IsListing {
		mode = Sampling
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache[V]{
		cfg:      cfg,
		eviction: eviction,
		logger:   logger,
		counters: newCounters(),
		db:       NewMap[V](cfg.Shards, mode),
	}
}

func (c *Cache[V]) Get(key model.Key) (value V, ok bool) {
	h := key.Hash()
	if e, found := c.db.Get(h); found && e.key == key {
		c.db.Touch(h, e)
		c.counters.hits.Add(1)
		return e.value, true
	}
	// miss or hash collision
	c.counters.misses.Add(1)
	return value, false
}

// Set stores the value unless its cost alone exceeds the memory limit.
// Entries are evicted before (and, under concurrent inserts, after) the insert until both
// the cost and the count limits hold.
func (c *Cache[V]) Set(key model.Key, value V, cost int64) (stored bool) {
	if cost < 0 {
		cost = 0
	}
	if cost > c.cfg.SizeBytes {
		c.counters.rejected.Add(1)
		c.logger.Debug("value exceeds memory limit, not cached", "key", key.String(), "cost", cost, "limit", c.cfg.SizeBytes)
		c.Remove(key)
		return false
	}

	h := key.Hash()
	delta, lenDelta := cost, int64(1)
	if old, found := c.db.Get(h); found {
		delta, lenDelta = cost-old.Weight(), 0
	}
	if lenDelta > 0 || delta > 0 {
		c.hardEvict(c.cfg.SizeBytes-delta, c.lenLimit(lenDelta))
	}

	c.db.Set(h, newEntry(key, h, value, cost, c.db.Tick()))

	// concurrent inserts may have raced past the pre-insert check
	c.hardEvict(c.cfg.SizeBytes, c.lenLimit(0))
	return true
}

func (c *Cache[V]) Remove(key model.Key) bool {
	h := key.Hash()
	if e, found := c.db.Get(h); found && e.key == key {
		_, ok := c.db.Remove(h)
		return ok
	}
	return false
}

func (c *Cache[V]) Clear()     { c.db.Clear() }
func (c *Cache[V]) Len() int64 { return c.db.Len() }
func (c *Cache[V]) Mem() int64 { return c.db.Mem() }

func (c *Cache[V]) Metrics() (hits, misses, rejected, hardEvictedItems, hardEvictedBytes int64) {
	return c.counters.snapshot()
}

// SoftEvictUntilWithinLimit is called by the background evictor.
func (c *Cache[V]) SoftEvictUntilWithinLimit(backoff int64) (freed, evicted int64) {
	if c.eviction.Enabled() {
		freed, evicted = c.db.EvictUntilWithinLimit(c.eviction.SoftMemoryLimitBytes, c.lenLimit(0), backoff)
	}
	return
}

func (c *Cache[V]) SoftMemoryLimitOvercome() bool {
	return c.eviction.Enabled() && c.db.Len() > 0 && c.db.Mem() > c.eviction.SoftMemoryLimitBytes
}

// lenLimit is the count the map may hold while reserving room for reserve new entries; -1 is unlimited.
func (c *Cache[V]) lenLimit(reserve int64) int64 {
	if c.cfg.MaxEntries <= 0 {
		return -1
	}
	return max(c.cfg.MaxEntries-reserve, 0)
}

func (c *Cache[V]) hardEvict(maxMem, maxLen int64) {
	if !c.db.overLimit(maxMem, maxLen) {
		return
	}
	// each pop may need a full round over empty shards
	backoff := int64(c.db.NumShards()) * (c.db.Len() + 1)
	if freed, evicted := c.db.EvictUntilWithinLimit(maxMem, maxLen, backoff); evicted > 0 {
		c.counters.evictedHardLimitItems.Add(evicted)
		c.counters.evictedHardLimitBytes.Add(freed)
	}
}
