package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, "sqlite3", cfg.Storage.Driver)
	assert.Equal(t, "backoffice.db", cfg.Storage.DSN)
	assert.Equal(t, 10*time.Second, cfg.Webhooks.DeliveryTimeout)
	assert.Equal(t, 16, cfg.Webhooks.MaxConcurrent)
	assert.Equal(t, 90, cfg.Audit.RetentionDays)
	assert.False(t, cfg.Audit.ArchiveEnabled)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9999"
storage:
  driver: postgres
  dsn: postgres://localhost/backoffice
webhooks:
  rate_limit: 25
  rate_period: 30s
audit:
  retention_days: 30
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, 25, cfg.Webhooks.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.Webhooks.RatePeriod)
	assert.Equal(t, 30, cfg.Audit.RetentionDays)

	// Untouched keys keep their defaults.
	assert.Equal(t, "9090", cfg.Server.HealthPort)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"9999\"\n"), 0o644))

	t.Setenv("BACKOFFICE_PORT", "7777")
	t.Setenv("BACKOFFICE_WEBHOOK_DELIVERY_TIMEOUT", "3s")
	t.Setenv("BACKOFFICE_AUDIT_ARCHIVE_ENABLED", "true")
	t.Setenv("BACKOFFICE_AUDIT_ARCHIVE_BUCKET", "audit-backups")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "7777", cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Webhooks.DeliveryTimeout)
	assert.True(t, cfg.Audit.ArchiveEnabled)
	assert.Equal(t, "audit-backups", cfg.Audit.ArchiveBucket)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/no/such/config.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mysql" }, "unknown storage driver"},
		{"empty dsn", func(c *Config) { c.Storage.DSN = "" }, "storage DSN is required"},
		{"empty port", func(c *Config) { c.Server.Port = "" }, "server port is required"},
		{"archive without bucket", func(c *Config) { c.Audit.ArchiveEnabled = true }, "archive bucket is required"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
