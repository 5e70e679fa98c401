package config

import (
	"os"
	"strconv"
	"time"
)

// Environment variables recognized by applyEnv. Durations accept either a
// Go duration string ("250ms") or a bare number of milliseconds.
const (
	EnvStoreDriver    = "INKWELL_STORE_DRIVER"
	EnvStoreDSN       = "INKWELL_STORE_DSN"
	EnvPoolMin        = "INKWELL_POOL_MIN_CONNECTIONS"
	EnvPoolMax        = "INKWELL_POOL_MAX_CONNECTIONS"
	EnvAcquireTimeout = "INKWELL_POOL_ACQUIRE_TIMEOUT"
	EnvIdleTimeout    = "INKWELL_POOL_IDLE_TIMEOUT"
	EnvLeakThreshold  = "INKWELL_POOL_LEAK_THRESHOLD"
	EnvLogLevel       = "INKWELL_LOG_LEVEL"
)

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvStoreDriver); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv(EnvStoreDSN); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	overrideInt(EnvPoolMin, &cfg.Pool.MinConnections)
	overrideInt(EnvPoolMax, &cfg.Pool.MaxConnections)
	overrideDuration(EnvAcquireTimeout, &cfg.Pool.AcquireTimeout)
	overrideDuration(EnvIdleTimeout, &cfg.Pool.IdleTimeout)
	overrideDuration(EnvLeakThreshold, &cfg.Pool.LeakThreshold)
}

func overrideInt(name string, dst *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func overrideDuration(name string, dst *time.Duration) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
		return
	}
	if ms, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(ms) * time.Millisecond
	}
}
