package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	viper.Reset()
	path := writeConfig(t, `
server:
  port: 9090
  read_timeout: 5s
detection:
  detectors: [ssn, email]
  auto_mask: false
audit:
  backend: sqlite
  dsn: "file:audit.db"
  retention_days: 30
usage:
  backend: redis
rate_limit:
  requests_per_min: 120
  burst: 20
logging:
  level: debug
  format: console
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, []string{"ssn", "email"}, cfg.Detection.Detectors)
	assert.False(t, cfg.Detection.AutoMask)
	assert.Equal(t, "sqlite", cfg.Audit.Backend)
	assert.Equal(t, "file:audit.db", cfg.Audit.DSN)
	assert.Equal(t, 30, cfg.Audit.RetentionDays)
	assert.Equal(t, 200, cfg.Audit.PreviewLength)
	assert.Equal(t, "redis", cfg.Usage.Backend)
	assert.Equal(t, 120, cfg.RateLimit.RequestsPerMin)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.WebSocket.Events.BroadcastDecisions)
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, GetDefaults(), cfg)
}

func TestLoadEnvOverride(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())
	t.Setenv("SHIELD_SERVER_PORT", "7070")
	t.Setenv("SHIELD_AUDIT_PREVIEW_LENGTH", "50")
	t.Setenv("SHIELD_DETECTION_AUTO_MASK", "false")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Audit.PreviewLength)
	assert.False(t, cfg.Detection.AutoMask)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	viper.Reset()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults", func(*Config) {}, true},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, false},
		{"no detectors", func(c *Config) { c.Detection.Detectors = nil }, false},
		{"unknown audit backend", func(c *Config) { c.Audit.Backend = "mongo" }, false},
		{"sqlite without dsn", func(c *Config) { c.Audit.Backend = "sqlite" }, false},
		{"postgres with dsn", func(c *Config) { c.Audit.Backend = "postgres"; c.Audit.DSN = "postgres://localhost/audit" }, true},
		{"zero preview", func(c *Config) { c.Audit.PreviewLength = 0 }, false},
		{"negative retention", func(c *Config) { c.Audit.RetentionDays = -1 }, false},
		{"unknown usage backend", func(c *Config) { c.Usage.Backend = "etcd" }, false},
		{"rate limit without burst", func(c *Config) { c.RateLimit.Burst = 0 }, false},
		{"rate limit disabled without burst", func(c *Config) { c.RateLimit.Enabled = false; c.RateLimit.Burst = 0 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, false},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := GetDefaults()
			tc.mutate(cfg)
			err := validateConfig(cfg)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
