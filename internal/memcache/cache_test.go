package memcache

import (
	"strconv"
	"sync"
	"testing"

	"github.com/Borislavv/go-ash-fetch/config"
	"github.com/Borislavv/go-ash-fetch/model"
	"github.com/stretchr/testify/require"
)

func key(i int) model.Key {
	return model.NewKey("https://cdn.example.com/"+strconv.Itoa(i)+".jpg", model.NewSize(64, 64))
}

func newTestCache(sizeBytes, maxEntries int64, eviction *config.EvictionCfg) *Cache[[]byte] {
	mem := config.MemoryCfg{SizeBytes: sizeBytes, MaxEntries: maxEntries, Shards: 8}
	if eviction.Enabled() {
		eviction.IsListing = eviction.LRUMode != config.LRUModeSampling
		eviction.SoftMemoryLimitBytes = int64(float64(sizeBytes) * eviction.SoftLimitCoefficient)
	}
	return New[[]byte](mem, eviction, nil)
}

// TestCache_GetSet stores and returns values by key.
func TestCache_GetSet(t *testing.T) {
	c := newTestCache(1024, 0, nil)

	_, ok := c.Get(key(1))
	require.False(t, ok)

	require.True(t, c.Set(key(1), []byte("one"), 3))
	v, ok := c.Get(key(1))
	require.True(t, ok)
	require.Equal(t, []byte("one"), v)
	require.Equal(t, int64(1), c.Len())
	require.Equal(t, int64(3), c.Mem())

	hits, misses, _, _, _ := c.Metrics()
	require.Equal(t, int64(1), hits)
	require.Equal(t, int64(1), misses)
}

// TestCache_VariantsAreDistinct keeps different variants of one identity apart.
func TestCache_VariantsAreDistinct(t *testing.T) {
	c := newTestCache(1024, 0, nil)
	small := model.NewKey("img", model.NewSize(10, 10))
	large := model.NewKey("img", model.NewSize(20, 20))

	c.Set(small, []byte("s"), 1)
	c.Set(large, []byte("l"), 1)

	v, _ := c.Get(small)
	require.Equal(t, []byte("s"), v)
	v, _ = c.Get(large)
	require.Equal(t, []byte("l"), v)
}

// TestCache_Replace updates cost accounting on overwrite.
func TestCache_Replace(t *testing.T) {
	c := newTestCache(1024, 0, nil)
	c.Set(key(1), []byte("a"), 10)
	c.Set(key(1), []byte("bb"), 30)

	require.Equal(t, int64(1), c.Len())
	require.Equal(t, int64(30), c.Mem())
	v, _ := c.Get(key(1))
	require.Equal(t, []byte("bb"), v)
}

// TestCache_RemoveClear drops entries and resets counters.
func TestCache_RemoveClear(t *testing.T) {
	c := newTestCache(1024, 0, nil)
	for i := 0; i < 10; i++ {
		c.Set(key(i), []byte("x"), 5)
	}

	require.True(t, c.Remove(key(3)))
	require.False(t, c.Remove(key(3)))
	require.Equal(t, int64(9), c.Len())
	require.Equal(t, int64(45), c.Mem())

	c.Clear()
	require.Equal(t, int64(0), c.Len())
	require.Equal(t, int64(0), c.Mem())
	_, ok := c.Get(key(1))
	require.False(t, ok)
}

// TestCache_CostLimit never lets total resident cost exceed the limit.
func TestCache_CostLimit(t *testing.T) {
	for _, mode := range []config.LRUMode{config.LRUModeListing, config.LRUModeSampling} {
		t.Run(string(mode), func(t *testing.T) {
			c := newTestCache(1000, 0, &config.EvictionCfg{LRUMode: mode, SoftLimitCoefficient: 1})
			for i := 0; i < 500; i++ {
				require.True(t, c.Set(key(i), []byte("v"), int64(10+i%90)))
				require.LessOrEqual(t, c.Mem(), int64(1000))
			}
			require.Greater(t, c.Len(), int64(0))

			_, _, _, evictedItems, evictedBytes := c.Metrics()
			require.Greater(t, evictedItems, int64(0))
			require.Greater(t, evictedBytes, int64(0))
		})
	}
}

// TestCache_CountLimit evicts when the entry count limit is reached first.
func TestCache_CountLimit(t *testing.T) {
	c := newTestCache(1<<20, 16, nil)
	for i := 0; i < 100; i++ {
		c.Set(key(i), []byte("v"), 1)
		require.LessOrEqual(t, c.Len(), int64(16))
	}
	require.Equal(t, int64(16), c.Len())
}

// TestCache_SingleEntryCountLimit keeps exactly the last value with MaxEntries=1.
func TestCache_SingleEntryCountLimit(t *testing.T) {
	c := newTestCache(1<<20, 1, nil)
	c.Set(key(1), []byte("1"), 1)
	c.Set(key(2), []byte("2"), 1)

	require.Equal(t, int64(1), c.Len())
	v, ok := c.Get(key(2))
	require.True(t, ok)
	require.Equal(t, []byte("2"), v)
}

// TestCache_OversizedValue is rejected and drops a stale value of the same key.
func TestCache_OversizedValue(t *testing.T) {
	c := newTestCache(100, 0, nil)
	c.Set(key(1), []byte("small"), 10)

	require.False(t, c.Set(key(1), []byte("huge"), 101))
	_, ok := c.Get(key(1))
	require.False(t, ok)
	require.Equal(t, int64(0), c.Mem())

	_, _, rejected, _, _ := c.Metrics()
	require.Equal(t, int64(1), rejected)
}

// TestCache_RecentlyUsedSurvives prefers evicting stale entries in a single shard.
func TestCache_RecentlyUsedSurvives(t *testing.T) {
	c := New[[]byte](config.MemoryCfg{SizeBytes: 30, Shards: 1}, nil, nil)
	c.Set(key(1), []byte("1"), 10)
	c.Set(key(2), []byte("2"), 10)
	c.Set(key(3), []byte("3"), 10)

	_, ok := c.Get(key(1))
	require.True(t, ok)

	c.Set(key(4), []byte("4"), 10)

	_, ok = c.Get(key(1))
	require.True(t, ok, "recently read entry should be kept")
	_, ok = c.Get(key(2))
	require.False(t, ok, "stalest entry should be evicted")
}

// TestCache_SoftEviction frees memory down to the soft limit.
func TestCache_SoftEviction(t *testing.T) {
	c := newTestCache(1000, 0, &config.EvictionCfg{LRUMode: config.LRUModeListing, SoftLimitCoefficient: 0.5})
	for i := 0; i < 100; i++ {
		c.Set(key(i), []byte("v"), 10)
	}
	require.True(t, c.SoftMemoryLimitOvercome())

	freed, evicted := c.SoftEvictUntilWithinLimit(10_000)
	require.Greater(t, evicted, int64(0))
	require.Equal(t, evicted*10, freed)
	require.LessOrEqual(t, c.Mem(), int64(500))
	require.False(t, c.SoftMemoryLimitOvercome())
}

// TestCache_Concurrent is safe under concurrent mixed operations.
func TestCache_Concurrent(t *testing.T) {
	c := newTestCache(4096, 128, &config.EvictionCfg{LRUMode: config.LRUModeListing, SoftLimitCoefficient: 0.8})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				k := key((g*1000 + i) % 300)
				switch i % 4 {
				case 0, 1:
					c.Set(k, []byte("v"), 16)
				case 2:
					c.Get(k)
				case 3:
					c.Remove(k)
				}
			}
		}(g)
	}
	wg.Wait()

	c.hardEvict(c.cfg.SizeBytes, c.lenLimit(0))
	require.LessOrEqual(t, c.Mem(), int64(4096))
	require.LessOrEqual(t, c.Len(), int64(128))
	require.GreaterOrEqual(t, c.Mem(), int64(0))
}
