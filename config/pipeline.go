package config

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	DefaultImagesNamespace = "images"
	DefaultPagesNamespace  = "news-pages"

	// DefaultMaxSourcePixels is 64 megapixels, about 256MiB once decoded to RGBA.
	DefaultMaxSourcePixels = 64 << 20
)

// MemoryCfg bounds the in-memory tier of a pipeline. Whichever limit is reached first
// triggers eviction.
type MemoryCfg struct {
	// SizeBytes is the maximum aggregate cost of resident values.
	SizeBytes int64 `yaml:"size"`

	// MaxEntries is the maximum number of resident values. 0 means unlimited.
	MaxEntries int64 `yaml:"max_entries"`

	// Shards is the number of independently locked segments (rounded up to a power of two).
	// Defaults to 64; small caches get fewer shards.
	Shards int `yaml:"shards"`
}

func (cfg *MemoryCfg) adjust() {
	if cfg.Shards <= 0 {
		cfg.Shards = 64
		if cfg.MaxEntries > 0 && cfg.MaxEntries < 256 {
			cfg.Shards = 4
		}
	}
	cfg.Shards = nextPow2(cfg.Shards)
}

func (cfg *MemoryCfg) validate() error {
	if cfg.SizeBytes <= 0 {
		return fmt.Errorf("memory size must be positive, got %d", cfg.SizeBytes)
	}
	if cfg.MaxEntries < 0 {
		return fmt.Errorf("memory max entries must not be negative, got %d", cfg.MaxEntries)
	}
	return nil
}

type ImagesCfg struct {
	// Namespace is the sub-directory of the persistence root owned by this pipeline.
	Namespace string `yaml:"namespace"`

	Memory MemoryCfg `yaml:"memory"`

	// Eviction configures background soft-limit eviction of the memory tier.
	// If nil, only the hard limits enforced on insert apply.
	Eviction *EvictionCfg `yaml:"eviction"`

	// Compression of persisted JPEG blobs; usually left nil since JPEG is already compressed.
	Compression *CompressionCfg `yaml:"compression"`

	// Scale is the display pixel density used to turn a logical size into pixels.
	Scale float64 `yaml:"scale"`

	// Quality is the JPEG quality used when re-encoding downsampled images for the disk tier.
	Quality int `yaml:"quality"`

	// MaxSourcePixels caps width*height of a source image; larger ones are refused before
	// decoding. Defaults to DefaultMaxSourcePixels.
	MaxSourcePixels int64 `yaml:"max_source_pixels"`
}

func (cfg *ImagesCfg) Enabled() bool {
	return cfg != nil
}

func (cfg *ImagesCfg) adjust() {
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultImagesNamespace
	}
	if cfg.Scale <= 0 {
		cfg.Scale = 2
	}
	if cfg.Quality == 0 {
		cfg.Quality = 70
	}
	if cfg.MaxSourcePixels <= 0 {
		cfg.MaxSourcePixels = DefaultMaxSourcePixels
	}
	cfg.Memory.adjust()
	cfg.Eviction.adjust(cfg.Memory.SizeBytes)
}

type PagesCfg struct {
	Namespace string `yaml:"namespace"`

	Memory MemoryCfg `yaml:"memory"`

	Eviction *EvictionCfg `yaml:"eviction"`

	Compression *CompressionCfg `yaml:"compression"`

	// URLTemplate builds the origin locator of a page; {page} and {size} are substituted.
	// Example: "https://api.example.com/news?page={page}&pageSize={size}".
	URLTemplate string `yaml:"url_template"`
}

func (cfg *PagesCfg) Enabled() bool {
	return cfg != nil
}

func (cfg *PagesCfg) adjust() {
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultPagesNamespace
	}
	cfg.Memory.adjust()
	cfg.Eviction.adjust(cfg.Memory.SizeBytes)
}

// ValidateTemplate checks the page URL template is an absolute http(s) URL with both placeholders.
func (cfg *PagesCfg) ValidateTemplate() error {
	if !strings.Contains(cfg.URLTemplate, "{page}") || !strings.Contains(cfg.URLTemplate, "{size}") {
		return fmt.Errorf("url template %q must contain {page} and {size}", cfg.URLTemplate)
	}
	u, err := url.Parse(strings.NewReplacer("{page}", "0", "{size}", "0").Replace(cfg.URLTemplate))
	if err != nil {
		return fmt.Errorf("parse url template: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url template %q must be http(s)", cfg.URLTemplate)
	}
	return nil
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
