package memcache

import (
	"runtime"
	"sync/atomic"
)

const shardsSample, keysSample = 4, 8

// overLimit reports whether either limit is exceeded; a negative maxLen means no count limit.
func (m *Map[V]) overLimit(maxMem, maxLen int64) bool {
	if m.Len() == 0 {
		return false
	}
	return atomic.LoadInt64(&m.mem) > maxMem || (maxLen >= 0 && m.Len() > maxLen)
}

// EvictUntilWithinLimit removes stale entries until both limits hold, the map is empty,
// or backoff unsuccessful probes were spent.
func (m *Map[V]) EvictUntilWithinLimit(maxMem, maxLen, backoff int64) (freed, evicted int64) {
	if m.mode == Listing {
		return m.evictUntilWithinLimitByList(maxMem, maxLen, backoff)
	}
	return m.evictUntilWithinLimitBySample(maxMem, maxLen, backoff)
}

func (m *Map[V]) evictUntilWithinLimitByList(maxMem, maxLen, backoff int64) (freed, evicted int64) {
	for backoff > 0 && m.overLimit(maxMem, maxLen) {
		sh := m.NextShard()
		if sh.Len() == 0 {
			backoff--
			runtime.Gosched()
			continue
		}
		if v, ok := sh.lruPopTail(); ok {
			w := v.Weight()
			atomic.AddInt64(&m.mem, -w)
			atomic.AddInt64(&m.len, -1)
			freed += w
			evicted++
		} else {
			backoff--
		}
	}
	return
}

func (m *Map[V]) evictUntilWithinLimitBySample(maxMem, maxLen, backoff int64) (freed, evicted int64) {
	for backoff > 0 && m.overLimit(maxMem, maxLen) {
		sh, victim, found := m.pickVictimBySample(shardsSample, keysSample)
		if !found || !sh.tryLock() {
			backoff--
			continue
		}
		bytesFreed, hit := sh.RemoveUnlocked(victim.hash)
		sh.Unlock()
		if hit {
			atomic.AddInt64(&m.mem, -bytesFreed)
			atomic.AddInt64(&m.len, -1)
			freed += bytesFreed
			evicted++
		} else {
			backoff--
		}
	}
	return freed, evicted
}

// pickVictimBySample returns the stalest of keysSample entries in each of shardsSample shards.
func (m *Map[V]) pickVictimBySample(shardsSample, keysSample int64) (bestShard *Shard[V], victim *entry[V], ok bool) {
	var bestAt int64

	for i := int64(0); i < shardsSample; i++ {
		sh := m.NextShard()
		if sh.Len() == 0 {
			continue
		} else if !sh.tryRLock() {
			runtime.Gosched()
			continue
		}

		toScanPerShard := keysSample
		for _, reviewEntry := range sh.items {
			at := reviewEntry.TouchedAt()
			if !ok || at < bestAt {
				victim, bestAt, bestShard, ok = reviewEntry, at, sh, true
			}

			if toScanPerShard--; toScanPerShard <= 0 {
				break
			}
		}
		sh.RUnlock()
	}
	return bestShard, victim, ok
}
