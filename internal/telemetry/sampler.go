package telemetry

type sampler struct {
	src Source
}

// snapshot holds cumulative counters (monotonic).
type snapshot struct {
	hits             uint64
	misses           uint64
	rejected         uint64
	hardEvictedItems uint64
	hardEvictedBytes uint64

	softScans        uint64
	softHits         uint64
	softEvictedItems uint64
	softEvictedBytes uint64

	started   uint64
	joined    uint64
	detached  uint64
	cancelled uint64
	completed uint64
}

func (s sampler) snapshot() (snap snapshot) {
	hits, misses, rejected, hardItems, hardBytes := s.src.Memory.Metrics()
	snap.hits = uint64(max(hits, 0))
	snap.misses = uint64(max(misses, 0))
	snap.rejected = uint64(max(rejected, 0))
	snap.hardEvictedItems = uint64(max(hardItems, 0))
	snap.hardEvictedBytes = uint64(max(hardBytes, 0))

	if s.src.Evictor != nil {
		scans, softHits, items, freed := s.src.Evictor.EvictorMetrics()
		snap.softScans = uint64(max(scans, 0))
		snap.softHits = uint64(max(softHits, 0))
		snap.softEvictedItems = uint64(max(items, 0))
		snap.softEvictedBytes = uint64(max(freed, 0))
	}

	if s.src.Coordinator != nil {
		started, joined, detached, cancelled, completed := s.src.Coordinator.CoordinatorMetrics()
		snap.started = uint64(max(started, 0))
		snap.joined = uint64(max(joined, 0))
		snap.detached = uint64(max(detached, 0))
		snap.cancelled = uint64(max(cancelled, 0))
		snap.completed = uint64(max(completed, 0))
	}
	return snap
}

// deltaSnapshot converts cumulative snapshots to per-interval deltas.
// If counters reset (cur < prev), it treats cur as the delta.
func deltaSnapshot(prev, cur snapshot) snapshot {
	return snapshot{
		hits:             delta(prev.hits, cur.hits),
		misses:           delta(prev.misses, cur.misses),
		rejected:         delta(prev.rejected, cur.rejected),
		hardEvictedItems: delta(prev.hardEvictedItems, cur.hardEvictedItems),
		hardEvictedBytes: delta(prev.hardEvictedBytes, cur.hardEvictedBytes),

		softScans:        delta(prev.softScans, cur.softScans),
		softHits:         delta(prev.softHits, cur.softHits),
		softEvictedItems: delta(prev.softEvictedItems, cur.softEvictedItems),
		softEvictedBytes: delta(prev.softEvictedBytes, cur.softEvictedBytes),

		started:   delta(prev.started, cur.started),
		joined:    delta(prev.joined, cur.joined),
		detached:  delta(prev.detached, cur.detached),
		cancelled: delta(prev.cancelled, cur.cancelled),
		completed: delta(prev.completed, cur.completed),
	}
}

func delta(prev, cur uint64) uint64 {
	if cur >= prev {
		return cur - prev
	}
	return cur
}
