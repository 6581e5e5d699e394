package config

type PersistenceCfg struct {
	// Dir specifies the root directory shared by all pipeline namespaces.
	// An empty Dir selects the user cache directory.
	Dir string `yaml:"dir" env:"ASHFETCH_PERSISTENCE_DIR"`

	// InMemory keeps persisted blobs in an in-memory filesystem (tests, ephemeral runs).
	InMemory bool `yaml:"in_memory" env:"ASHFETCH_PERSISTENCE_IN_MEMORY"`

	// Lock takes an advisory file lock per namespace so two processes never share one.
	// Ignored when InMemory is set.
	Lock bool `yaml:"lock" env:"ASHFETCH_PERSISTENCE_LOCK"`
}

func (cfg *PersistenceCfg) adjust() {
	if cfg.InMemory {
		cfg.Lock = false
	}
}
