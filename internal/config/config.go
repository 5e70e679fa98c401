// Package config loads and validates service configuration from a YAML
// file with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/inkwell-press/inkwell/internal/store"
)

// Config is the full service configuration.
type Config struct {
	LogLevel    string            `yaml:"log_level"`
	LogEncoding string            `yaml:"log_encoding"`
	Store       store.Config      `yaml:"store"`
	Pool        PoolConfig        `yaml:"pool"`
	Cache       CacheConfig       `yaml:"cache"`
	Executor    ExecutorConfig    `yaml:"executor"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Monitoring  MonitoringConfig  `yaml:"monitoring"`
}

// PoolConfig bounds the connection pool. It is immutable once the pool is
// constructed.
type PoolConfig struct {
	MinConnections int           `yaml:"min_connections"`
	MaxConnections int           `yaml:"max_connections"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	LeakThreshold  time.Duration `yaml:"leak_threshold"`
}

// CacheConfig tunes the query result cache.
type CacheConfig struct {
	DefaultTTL           time.Duration `yaml:"default_ttl"`
	MaxPayloadWindow     time.Duration `yaml:"max_payload_window"`
	Shards               int           `yaml:"shards"`
	HardMaxSizeMB        int           `yaml:"hard_max_size_mb"`
	CompressionThreshold int           `yaml:"compression_threshold"`
}

// ExecutorConfig sets query execution defaults.
type ExecutorConfig struct {
	QueryTimeout time.Duration `yaml:"query_timeout"`
	Retries      int           `yaml:"retries"`
	BackoffBase  time.Duration `yaml:"backoff_base"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

// MaintenanceConfig sets the intervals of the background tasks.
type MaintenanceConfig struct {
	ReapInterval  time.Duration `yaml:"reap_interval"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	StatsInterval time.Duration `yaml:"stats_interval"`
}

// MonitoringConfig configures the observability HTTP server.
type MonitoringConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns a configuration with sensible default values.
func Default() *Config {
	return &Config{
		LogLevel:    "info",
		LogEncoding: "console",
		Store: store.Config{
			Driver:         "simulated",
			ConnectTimeout: 5 * time.Second,
		},
		Pool: PoolConfig{
			MinConnections: 2,
			MaxConnections: 10,
			AcquireTimeout: 5 * time.Second,
			IdleTimeout:    30 * time.Second,
			LeakThreshold:  time.Minute,
		},
		Cache: CacheConfig{
			DefaultTTL:           5 * time.Minute,
			MaxPayloadWindow:     time.Hour,
			Shards:               64,
			HardMaxSizeMB:        64,
			CompressionThreshold: 4096,
		},
		Executor: ExecutorConfig{
			QueryTimeout: 30 * time.Second,
			Retries:      2,
			BackoffBase:  time.Second,
			BatchTimeout: 60 * time.Second,
		},
		Maintenance: MaintenanceConfig{
			ReapInterval:  10 * time.Second,
			SweepInterval: 30 * time.Second,
			StatsInterval: 10 * time.Second,
		},
		Monitoring: MonitoringConfig{
			Enabled:    true,
			ListenAddr: ":8090",
		},
	}
}

// Load reads the YAML file at path (if it exists), applies environment
// overrides and validates the result. A missing file is not an error; the
// defaults plus environment are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Pool.MinConnections <= 0 {
		return fmt.Errorf("pool.min_connections must be > 0, got %d", c.Pool.MinConnections)
	}
	if c.Pool.MaxConnections <= 0 {
		return fmt.Errorf("pool.max_connections must be > 0, got %d", c.Pool.MaxConnections)
	}
	if c.Pool.MinConnections > c.Pool.MaxConnections {
		return fmt.Errorf("pool.min_connections (%d) exceeds pool.max_connections (%d)",
			c.Pool.MinConnections, c.Pool.MaxConnections)
	}
	if c.Pool.AcquireTimeout <= 0 {
		return fmt.Errorf("pool.acquire_timeout must be positive")
	}
	if c.Pool.IdleTimeout <= 0 {
		return fmt.Errorf("pool.idle_timeout must be positive")
	}
	if c.Executor.Retries < 0 {
		return fmt.Errorf("executor.retries must not be negative")
	}
	if c.Store.Driver == "" {
		return fmt.Errorf("store.driver is required")
	}
	return nil
}
