package memcache

import (
	"sync/atomic"

	"github.com/Borislavv/go-ash-fetch/model"
)

// entry is a resident value with its accounting cost.
type entry[V any] struct {
	key       model.Key
	hash      uint64
	value     V
	cost      int64
	touchedAt atomic.Int64 // logical clock tick of the last access (used by sampling eviction)
}

func newEntry[V any](key model.Key, hash uint64, value V, cost int64, tick int64) *entry[V] {
	e := &entry[V]{key: key, hash: hash, value: value, cost: cost}
	e.touchedAt.Store(tick)
	return e
}

func (e *entry[V]) Weight() int64    { return e.cost }
func (e *entry[V]) TouchedAt() int64 { return e.touchedAt.Load() }
func (e *entry[V]) touch(tick int64) { e.touchedAt.Store(tick) }
