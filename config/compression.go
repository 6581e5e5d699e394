package config

// CompressionCfg enables zstd compression of persisted blobs.
//   - Supported levels (zstd.EncoderLevel):
//     SpeedFastest           = 1
//     SpeedDefault           = 2
//     SpeedBetterCompression = 3
//     SpeedBestCompression   = 4
type CompressionCfg struct {
	Level int `yaml:"level"`
}

func (cfg *CompressionCfg) Enabled() bool {
	return cfg != nil
}
