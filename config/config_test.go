package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleYAML = `
origin:
  timeout: 3s
  retries: 2
  rate_limit: 50
persistence:
  dir: /tmp/ashfetch
  lock: true
telemetry:
  stat_logs_enabled: true
  stat_logs_interval: 10s
images:
  memory:
    size: 1048576
    max_entries: 100
  eviction:
    mode: sampling
    soft_limit_coefficient: 0.5
  scale: 3
pages:
  namespace: news
  memory:
    size: 4096
  url_template: "https://api.example.com/news?page={page}&pageSize={size}"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ashfetch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// TestLoadConfig_YAML parses yaml and derives virtual fields.
func TestLoadConfig_YAML(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	require.Equal(t, 3*time.Second, cfg.Origin.Timeout)
	require.Equal(t, uint(2), cfg.Origin.Retries)
	require.Equal(t, 50, cfg.Origin.RateLimit)
	require.Equal(t, "go-ash-fetch", cfg.Origin.UserAgent)
	require.Equal(t, "/tmp/ashfetch", cfg.Persistence.Dir)
	require.Equal(t, 10*time.Second, cfg.Telemetry.LogsInterval)

	require.True(t, cfg.Images.Enabled())
	require.Equal(t, DefaultImagesNamespace, cfg.Images.Namespace)
	require.Equal(t, 3.0, cfg.Images.Scale)
	require.Equal(t, 70, cfg.Images.Quality)
	require.Equal(t, int64(DefaultMaxSourcePixels), cfg.Images.MaxSourcePixels)
	require.Equal(t, 4, cfg.Images.Memory.Shards)
	require.False(t, cfg.Images.Eviction.IsListing)
	require.Equal(t, int64(524288), cfg.Images.Eviction.SoftMemoryLimitBytes)

	require.True(t, cfg.Pages.Enabled())
	require.Equal(t, "news", cfg.Pages.Namespace)
	require.False(t, cfg.Pages.Eviction.Enabled())
}

// TestLoadConfig_EnvOverrides lets environment variables win over yaml.
func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ASHFETCH_PERSISTENCE_DIR", "/var/cache/ashfetch")
	t.Setenv("ASHFETCH_ORIGIN_TIMEOUT", "7s")

	cfg, err := LoadConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	require.Equal(t, "/var/cache/ashfetch", cfg.Persistence.Dir)
	require.Equal(t, 7*time.Second, cfg.Origin.Timeout)
}

// TestLoadConfig_Missing reports a missing file.
func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

// TestLoadConfig_NamespaceClash rejects two pipelines on one namespace.
func TestLoadConfig_NamespaceClash(t *testing.T) {
	body := `
images:
  namespace: shared
  memory: {size: 10}
pages:
  namespace: shared
  memory: {size: 10}
`
	_, err := LoadConfig(writeConfig(t, body))
	require.ErrorContains(t, err, "share namespace")
}

// TestPagesCfg_ValidateTemplate requires both placeholders and an http(s) scheme.
func TestPagesCfg_ValidateTemplate(t *testing.T) {
	ok := &PagesCfg{URLTemplate: "https://x/news/{page}/{size}"}
	require.NoError(t, ok.ValidateTemplate())

	missing := &PagesCfg{URLTemplate: "https://x/news/{page}"}
	require.Error(t, missing.ValidateTemplate())

	scheme := &PagesCfg{URLTemplate: "ftp://x/{page}/{size}"}
	require.Error(t, scheme.ValidateTemplate())
}

// TestDefault enables both pipelines with valid limits.
func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.True(t, cfg.Images.Enabled())
	require.True(t, cfg.Pages.Enabled())
	require.Equal(t, 64, cfg.Images.Memory.Shards)
	require.Equal(t, int64(float64(64<<20)*0.8), cfg.Images.Eviction.SoftMemoryLimitBytes)
}
