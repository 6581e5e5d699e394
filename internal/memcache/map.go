// Package memcache implements a cost-aware, capacity-limited sharded map with approximate
// LRU eviction. Hot paths (Get/Set/Remove) keep critical sections short and per-shard;
// global counters are atomics so they can be read without locks.
package memcache

import (
	"sync/atomic"
)

// Map is a sharded concurrent map with precise global counters.
type Map[V any] struct {
	mode LRUMode

	len  int64  // aggregated number of items (atomic)
	mem  int64  // aggregated cost (atomic)
	iter uint64 // round-robin cursor for NextShard()
	tick int64  // logical access clock (atomic)

	mask   uint64
	shards []*Shard[V]
}

// NewMap creates the map with n shards; n must be a power of two.
func NewMap[V any](n int, mode LRUMode) *Map[V] {
	if n <= 0 || n&(n-1) != 0 {
		n = 1
	}
	m := &Map[V]{mode: mode, mask: uint64(n - 1), shards: make([]*Shard[V], n)}
	for i := range m.shards {
		m.shards[i] = newShard[V]()
	}

	if mode == Listing {
		m.useListingMode()
	} else {
		m.useSamplingMode()
	}
	return m
}

// Set inserts/updates a value and adjusts global counters via per‑shard deltas.
func (m *Map[V]) Set(key uint64, value *entry[V]) {
	bytesDelta, lenDelta := m.Shard(key).Set(key, value)
	if bytesDelta != 0 {
		atomic.AddInt64(&m.mem, bytesDelta)
	}
	if lenDelta != 0 {
		atomic.AddInt64(&m.len, lenDelta)
	}
}

// Get reads a value.
func (m *Map[V]) Get(key uint64) (value *entry[V], ok bool) {
	return m.Shard(key).Get(key)
}

// Remove deletes a key and adjusts global counters.
func (m *Map[V]) Remove(key uint64) (freedBytes int64, hit bool) {
	freedBytes, hit = m.Shard(key).Remove(key)
	if hit {
		atomic.AddInt64(&m.len, -1)
		atomic.AddInt64(&m.mem, -freedBytes)
	}
	return
}

// Clear wipes all shards and fixes global counters atomically.
func (m *Map[V]) Clear() {
	for _, shard := range m.shards {
		freedBytes, items := shard.Clear()
		if freedBytes != 0 {
			atomic.AddInt64(&m.mem, -freedBytes)
		}
		if items != 0 {
			atomic.AddInt64(&m.len, -items)
		}
	}
}

// Touch moves the key toward the "keep" end of its shard.
func (m *Map[V]) Touch(key uint64, e *entry[V]) {
	e.touch(m.Tick())
	if m.mode == Listing {
		m.Shard(key).touchLRU(key)
	}
}

func (m *Map[V]) Shard(key uint64) *Shard[V] { return m.shards[key&m.mask] }
func (m *Map[V]) NextShard() *Shard[V]       { return m.shards[atomic.AddUint64(&m.iter, 1)&m.mask] }
func (m *Map[V]) NumShards() int             { return len(m.shards) }
func (m *Map[V]) Len() int64                 { return atomic.LoadInt64(&m.len) }
func (m *Map[V]) Mem() int64                 { return atomic.LoadInt64(&m.mem) }
func (m *Map[V]) Tick() int64                { return atomic.AddInt64(&m.tick, 1) }

func (m *Map[V]) useListingMode() {
	m.mode = Listing
	for _, s := range m.shards {
		s.enableLRU()
	}
}

func (m *Map[V]) useSamplingMode() {
	m.mode = Sampling
	for _, s := range m.shards {
		s.disableLRU()
	}
}
