package config

import "time"

type TelemetryCfg struct {
	// LogsEnabled turns on periodic stat logs of every pipeline.
	LogsEnabled bool `yaml:"stat_logs_enabled" env:"ASHFETCH_TELEMETRY_LOGS_ENABLED"`

	// LogsInterval is the period of stat logs.
	LogsInterval time.Duration `yaml:"stat_logs_interval" env:"ASHFETCH_TELEMETRY_LOGS_INTERVAL"`
}

func (cfg *TelemetryCfg) adjust() {
	if cfg.LogsInterval <= 0 {
		cfg.LogsInterval = 5 * time.Second
	}
}
