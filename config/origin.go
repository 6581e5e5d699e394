package config

import "time"

type OriginCfg struct {
	// Timeout bounds a single origin request including body read.
	Timeout time.Duration `yaml:"timeout" env:"ASHFETCH_ORIGIN_TIMEOUT"`

	// MaxBodyBytes rejects responses larger than this many bytes.
	MaxBodyBytes int64 `yaml:"max_body_bytes" env:"ASHFETCH_ORIGIN_MAX_BODY_BYTES"`

	// UserAgent is sent with every origin request.
	UserAgent string `yaml:"user_agent" env:"ASHFETCH_ORIGIN_USER_AGENT"`

	// RateLimit caps origin requests per second across both pipelines. 0 disables limiting.
	RateLimit int `yaml:"rate_limit" env:"ASHFETCH_ORIGIN_RATE_LIMIT"`

	// Retries is the number of extra attempts the HTTP transport makes on retryable failures
	// (network errors, timeouts, 429, 5xx). The resolving layer itself never retries.
	Retries uint `yaml:"retries" env:"ASHFETCH_ORIGIN_RETRIES"`

	// RetryDelay is the base backoff delay between transport attempts.
	RetryDelay time.Duration `yaml:"retry_delay" env:"ASHFETCH_ORIGIN_RETRY_DELAY"`
}

func (cfg *OriginCfg) adjust() {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 32 << 20
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "go-ash-fetch"
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
}
