package config

// LRUMode defines the LRU eviction strategy.
type LRUMode string

const (
	// LRUModeSampling evicts entries using Redis-like sampling for victim selection.
	LRUModeSampling LRUMode = "sampling"

	// LRUModeListing evicts entries by iterating over the LRU list directly.
	LRUModeListing LRUMode = "listing"
)

type EvictionCfg struct {
	// LRUMode defines the LRU eviction mode.
	// Supported values:
	//   - "sampling": eviction is based on sampling a subset of entries
	//   - "listing":  eviction pops the stale end of per-shard LRU lists
	LRUMode LRUMode `yaml:"mode"`

	// SoftLimitCoefficient defines the soft memory usage threshold as a fraction of Memory.SizeBytes.
	// Above it the background evictor starts freeing entries before the hard limit is hit on insert.
	//
	// Example:
	//   SoftLimitCoefficient: 0.80 // start evicting after reaching 80% of Memory.SizeBytes
	SoftLimitCoefficient float64 `yaml:"soft_limit_coefficient"`

	// SoftMemoryLimitBytes is derived from Memory.SizeBytes and SoftLimitCoefficient.
	// It is not read from YAML.
	SoftMemoryLimitBytes int64 `yaml:"-"`

	// CallsPerSec defines how many eviction scan cycles the evictor performs per second.
	CallsPerSec int64 `yaml:"calls_per_sec"`

	// BackoffSpinsPerCall defines how many entries may be evicted during a single scan.
	BackoffSpinsPerCall int64 `yaml:"backoff_spins_per_call"`

	// IsListing is derived from LRUMode and is not read from YAML.
	IsListing bool `yaml:"-"`
}

func (cfg *EvictionCfg) Enabled() bool {
	return cfg != nil
}

func (cfg *EvictionCfg) adjust(sizeBytes int64) {
	if !cfg.Enabled() {
		return
	}
	if cfg.LRUMode == "" {
		cfg.LRUMode = LRUModeListing
	}
	if cfg.SoftLimitCoefficient <= 0 || cfg.SoftLimitCoefficient > 1 {
		cfg.SoftLimitCoefficient = 0.8
	}
	if cfg.CallsPerSec <= 0 {
		cfg.CallsPerSec = 10
	}
	cfg.IsListing = cfg.LRUMode == LRUModeListing
	cfg.SoftMemoryLimitBytes = int64(float64(sizeBytes) * cfg.SoftLimitCoefficient)
}
