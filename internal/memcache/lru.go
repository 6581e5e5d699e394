package memcache

import (
	"container/list"
	"sync/atomic"
)

type LRUMode int

const (
	Listing LRUMode = iota
	Sampling
)

func (sh *Shard[V]) enableLRU() {
	sh.Lock()
	if sh.lru == nil {
		sh.lru = list.New()
		sh.lidx = make(map[uint64]*list.Element, len(sh.items))
		for k := range sh.items {
			sh.lidx[k] = sh.lru.PushFront(k)
		}
	}
	sh.lruOn = true
	sh.Unlock()
}

func (sh *Shard[V]) disableLRU() {
	sh.Lock()
	sh.lruOn = false
	sh.lru = nil
	sh.lidx = nil
	sh.Unlock()
}

// lruOnInsertUnlocked - is unsafe without shard.Lock due to it mutates the list.
func (sh *Shard[V]) lruOnInsertUnlocked(key uint64) {
	if !sh.lruOn {
		return
	}
	if el := sh.lidx[key]; el != nil {
		sh.lru.MoveToFront(el)
		return
	}
	sh.lidx[key] = sh.lru.PushFront(key)
}

// lruOnAccessUnlocked - is unsafe without shard.Lock due to it mutates the list otherwise use touchLRU.
func (sh *Shard[V]) lruOnAccessUnlocked(key uint64) {
	if !sh.lruOn {
		return
	}
	if el := sh.lidx[key]; el != nil {
		sh.lru.MoveToFront(el)
	}
}

// lruOnDeleteUnlocked - is unsafe without shard.Lock due to it mutates the list.
func (sh *Shard[V]) lruOnDeleteUnlocked(key uint64) {
	if !sh.lruOn {
		return
	}
	if el := sh.lidx[key]; el != nil {
		sh.lru.Remove(el)
		delete(sh.lidx, key)
	}
}

// touchLRU - threadsafe, best effort: a contended shard keeps its order.
func (sh *Shard[V]) touchLRU(key uint64) {
	if sh.TryLock() {
		if sh.lruOn {
			if el := sh.lidx[key]; el != nil {
				sh.lru.MoveToFront(el)
			}
		}
		sh.Unlock()
	}
}

// lruPopTail removes the least recently used entry of the shard.
func (sh *Shard[V]) lruPopTail() (val *entry[V], ok bool) {
	sh.Lock()
	defer sh.Unlock()
	if !sh.lruOn {
		return nil, false
	}
	for el := sh.lru.Back(); el != nil; el = sh.lru.Back() {
		k := el.Value.(uint64)
		sh.lru.Remove(el)
		delete(sh.lidx, k)

		v, found := sh.items[k]
		if !found {
			continue
		}
		delete(sh.items, k)
		atomic.AddInt64(&sh.len, -1)
		atomic.AddInt64(&sh.mem, -v.Weight())
		return v, true
	}
	return nil, false
}
