package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	original, existed := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset %s: %v", key, err)
	}
	t.Cleanup(func() {
		if !existed {
			_ = os.Unsetenv(key)
			return
		}
		_ = os.Setenv(key, original)
	})
}

func TestNewUsesDefaults(t *testing.T) {
	unsetEnv(t, "POLL_BASE_INTERVAL")
	unsetEnv(t, "POLL_MAX_FAILURES")
	unsetEnv(t, "ENVIRONMENT")

	cfg := New()
	assert.Equal(t, 4*time.Second, cfg.Poller.BaseInterval.Duration)
	assert.Equal(t, 10, cfg.Poller.MaxFailures)
	assert.Equal(t, 3500, cfg.Payment.ExpirySeconds)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadReadsTOMLThenEnvironment(t *testing.T) {
	unsetEnv(t, "STORE_DRIVER")
	unsetEnv(t, "POLL_MAX_INTERVAL")
	t.Setenv("POLL_MAX_FAILURES", "5")

	path := filepath.Join(t.TempDir(), "weddingpix.toml")
	content := `
environment = "production"

[store]
driver = "redis"
redis_addr = "localhost:6379"

[poller]
base_interval = "2s"
max_interval = "1m"
max_failures = 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, 2*time.Second, cfg.Poller.BaseInterval.Duration)
	assert.Equal(t, time.Minute, cfg.Poller.MaxInterval.Duration)
	assert.Equal(t, 5, cfg.Poller.MaxFailures, "environment overrides the file")
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	unsetEnv(t, "STORE_DRIVER")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[poller\nbase_interval = "), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestInvalidEnvironmentValuesKeepDefaults(t *testing.T) {
	t.Setenv("POLL_MAX_FAILURES", "many")
	t.Setenv("POLL_BASE_INTERVAL", "soon")

	cfg := New()
	assert.Equal(t, 10, cfg.Poller.MaxFailures)
	assert.Equal(t, 4*time.Second, cfg.Poller.BaseInterval.Duration)
}
