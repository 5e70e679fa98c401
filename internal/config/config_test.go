package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "simulated", cfg.Store.Driver)
	assert.Equal(t, 2, cfg.Pool.MinConnections)
	assert.Equal(t, 10, cfg.Pool.MaxConnections)
	assert.Equal(t, 5*time.Second, cfg.Pool.AcquireTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, 2, cfg.Executor.Retries)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Pool, cfg.Pool)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
store:
  driver: postgres
  dsn: postgres://inkwell@localhost/inkwell
pool:
  min_connections: 4
  max_connections: 16
  acquire_timeout: 2s
  idle_timeout: 45s
executor:
  retries: 5
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 4, cfg.Pool.MinConnections)
	assert.Equal(t, 16, cfg.Pool.MaxConnections)
	assert.Equal(t, 2*time.Second, cfg.Pool.AcquireTimeout)
	assert.Equal(t, 45*time.Second, cfg.Pool.IdleTimeout)
	assert.Equal(t, 5, cfg.Executor.Retries)
	// Untouched sections keep their defaults.
	assert.Equal(t, 5*time.Minute, cfg.Cache.DefaultTTL)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pool: ["), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvStoreDriver, "sqlite")
	t.Setenv(EnvStoreDSN, ":memory:")
	t.Setenv(EnvPoolMin, "3")
	t.Setenv(EnvPoolMax, "7")
	t.Setenv(EnvAcquireTimeout, "250ms")
	t.Setenv(EnvIdleTimeout, "1500") // bare milliseconds
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, ":memory:", cfg.Store.DSN)
	assert.Equal(t, 3, cfg.Pool.MinConnections)
	assert.Equal(t, 7, cfg.Pool.MaxConnections)
	assert.Equal(t, 250*time.Millisecond, cfg.Pool.AcquireTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.Pool.IdleTimeout)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"zero min", func(c *Config) { c.Pool.MinConnections = 0 }, "min_connections"},
		{"zero max", func(c *Config) { c.Pool.MaxConnections = 0 }, "max_connections"},
		{"min above max", func(c *Config) { c.Pool.MinConnections = 20 }, "exceeds"},
		{"zero acquire timeout", func(c *Config) { c.Pool.AcquireTimeout = 0 }, "acquire_timeout"},
		{"zero idle timeout", func(c *Config) { c.Pool.IdleTimeout = 0 }, "idle_timeout"},
		{"negative retries", func(c *Config) { c.Executor.Retries = -1 }, "retries"},
		{"missing driver", func(c *Config) { c.Store.Driver = "" }, "driver"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
