package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Fetcher groups configuration of both resource pipelines and their shared collaborators.
// A nil pipeline is disabled.
type Fetcher struct {
	Origin      OriginCfg      `yaml:"origin"`
	Persistence PersistenceCfg `yaml:"persistence"`
	Telemetry   TelemetryCfg   `yaml:"telemetry"`

	// Images configures the image pipeline (decode, downsample, JPEG re-encode).
	Images *ImagesCfg `yaml:"images"`

	// Pages configures the paginated JSON payload pipeline.
	Pages *PagesCfg `yaml:"pages"`
}

func (cfg *Fetcher) AdjustConfig() {
	cfg.Origin.adjust()
	cfg.Persistence.adjust()
	cfg.Telemetry.adjust()
	if cfg.Images.Enabled() {
		cfg.Images.adjust()
	}
	if cfg.Pages.Enabled() {
		cfg.Pages.adjust()
	}
}

func (cfg *Fetcher) Validate() error {
	if cfg.Images.Enabled() && cfg.Pages.Enabled() && cfg.Images.Namespace == cfg.Pages.Namespace {
		return fmt.Errorf("images and pages share namespace %q", cfg.Images.Namespace)
	}
	if cfg.Images.Enabled() {
		if err := cfg.Images.Memory.validate(); err != nil {
			return fmt.Errorf("images: %w", err)
		}
		if cfg.Images.Quality < 1 || cfg.Images.Quality > 100 {
			return fmt.Errorf("images: quality %d out of [1, 100]", cfg.Images.Quality)
		}
	}
	if cfg.Pages.Enabled() {
		if err := cfg.Pages.Memory.validate(); err != nil {
			return fmt.Errorf("pages: %w", err)
		}
		if cfg.Pages.URLTemplate != "" {
			if err := cfg.Pages.ValidateTemplate(); err != nil {
				return fmt.Errorf("pages: %w", err)
			}
		}
	}
	return nil
}

// Default returns a configuration with both pipelines enabled and an OS-backed store in the user cache dir.
func Default() *Fetcher {
	cfg := &Fetcher{
		Images: &ImagesCfg{
			Memory:   MemoryCfg{SizeBytes: 64 << 20, MaxEntries: 512},
			Eviction: &EvictionCfg{LRUMode: LRUModeListing, SoftLimitCoefficient: 0.8, CallsPerSec: 10, BackoffSpinsPerCall: 1024},
		},
		Pages: &PagesCfg{
			Memory: MemoryCfg{SizeBytes: 8 << 20, MaxEntries: 256},
		},
	}
	cfg.AdjustConfig()
	return cfg
}

func LoadConfig(path string) (*Fetcher, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config yaml file %s: %w", path, err)
	}

	var cfg *Fetcher
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml from %s: %w", path, err)
	}
	if cfg == nil {
		cfg = &Fetcher{}
	}
	if err = LoadEnv(cfg); err != nil {
		return nil, err
	}
	cfg.AdjustConfig()

	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadEnv overrides fields tagged with `env` from the process environment.
// Only the shared collaborators are env-configurable; pipelines come from yaml.
func LoadEnv(cfg *Fetcher) error {
	for _, target := range []any{&cfg.Origin, &cfg.Persistence, &cfg.Telemetry} {
		if err := env.Parse(target); err != nil {
			return fmt.Errorf("parse env: %w", err)
		}
	}
	return nil
}
