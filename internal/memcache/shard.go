package memcache

import (
	"container/list"
	"runtime"
	"sync"
	"sync/atomic"
)

const rLockSpins, rwLockSpins = 8, 16

// Shard is an independent segment of the sharded map.
// It keeps per-shard counters read with atomics so global readers can avoid locks.
type Shard[V any] struct {
	sync.RWMutex
	items map[uint64]*entry[V]

	mem int64 // total cost of resident entries (atomic)
	len int64 // number of items (atomic)

	// LRU (enabled in Listing mode)
	lruOn bool
	lru   *list.List
	lidx  map[uint64]*list.Element
}

func newShard[V any]() *Shard[V] {
	return &Shard[V]{items: make(map[uint64]*entry[V])}
}

func (sh *Shard[V]) Weight() int64 { return atomic.LoadInt64(&sh.mem) }
func (sh *Shard[V]) Len() int64    { return atomic.LoadInt64(&sh.len) }

// Set inserts or replaces a key. Returns deltas for global aggregations.
func (sh *Shard[V]) Set(key uint64, new *entry[V]) (bytesDelta int64, lenDelta int64) {
	sh.Lock()
	if old, hit := sh.items[key]; hit {
		sh.items[key] = new
		sh.lruOnAccessUnlocked(key)

		bytesDelta = new.Weight() - old.Weight()
		atomic.AddInt64(&sh.mem, bytesDelta)
	} else {
		sh.items[key] = new
		sh.lruOnInsertUnlocked(key)

		lenDelta = 1
		bytesDelta = new.Weight()
		atomic.AddInt64(&sh.len, lenDelta)
		atomic.AddInt64(&sh.mem, bytesDelta)
	}
	sh.Unlock()
	return
}

// Get reads a value under a shared lock.
func (sh *Shard[V]) Get(key uint64) (value *entry[V], hit bool) {
	sh.RLock()
	value, hit = sh.items[key]
	sh.RUnlock()
	return
}

// Remove deletes a key under the write lock.
func (sh *Shard[V]) Remove(key uint64) (freedBytes int64, hit bool) {
	sh.Lock()
	freedBytes, hit = sh.RemoveUnlocked(key)
	sh.Unlock()
	return
}

// RemoveUnlocked deletes a key when the shard is already exclusively locked.
func (sh *Shard[V]) RemoveUnlocked(key uint64) (freedBytes int64, hit bool) {
	var old *entry[V]
	if old, hit = sh.items[key]; hit {
		delete(sh.items, key)
		sh.lruOnDeleteUnlocked(key)

		freedBytes = old.Weight()
		atomic.AddInt64(&sh.mem, -freedBytes)
		atomic.AddInt64(&sh.len, -1)
	}
	return
}

// Clear removes all entries and returns (freedBytes, itemsRemoved).
func (sh *Shard[V]) Clear() (freedBytes int64, items int64) {
	sh.Lock()
	items = atomic.LoadInt64(&sh.len)
	freedBytes = atomic.LoadInt64(&sh.mem)

	sh.items = make(map[uint64]*entry[V])

	atomic.StoreInt64(&sh.len, 0)
	atomic.StoreInt64(&sh.mem, 0)
	if sh.lru != nil {
		sh.lru.Init()
	}
	if sh.lidx != nil {
		clear(sh.lidx)
	}
	sh.Unlock()
	return
}

func (sh *Shard[V]) tryRLock() bool {
	for i := 0; i < rLockSpins; i++ {
		if sh.TryRLock() {
			return true
		}
		runtime.Gosched()
	}
	return false
}

func (sh *Shard[V]) tryLock() bool {
	for i := 0; i < rwLockSpins; i++ {
		if sh.TryLock() {
			return true
		}
		runtime.Gosched()
	}
	return false
}
