// Package store defines the boundary to the backing data store.
//
// The pool and executor layers never talk to a concrete database directly;
// they go through the Client interface so the transport stays pluggable.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Row is a single result row keyed by column name.
type Row map[string]interface{}

// Result is the outcome of a single query execution.
type Result struct {
	Rows         []Row `json:"rows"`
	AffectedRows int64 `json:"affected_rows"`
}

// Client is a connected handle to the backing store. Implementations must
// honor context cancellation so a timed-out execution does not keep
// consuming backing-store resources.
type Client interface {
	Exec(ctx context.Context, query string, args []interface{}) (*Result, error)
	Ping(ctx context.Context) error
	Close() error
}

// Config holds the connection parameters for a store client.
type Config struct {
	Driver         string        `yaml:"driver"`
	DSN            string        `yaml:"dsn"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// Simulated driver settings
	BaseLatency time.Duration `yaml:"base_latency"`
	Jitter      time.Duration `yaml:"jitter"`
}

// Factory creates a client from configuration.
type Factory func(cfg Config) (Client, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// Register makes a client factory available under the given driver name.
func Register(driver string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[driver] = factory
}

// Open creates a client using the factory registered for cfg.Driver.
func Open(cfg Config) (Client, error) {
	factoriesMu.RLock()
	factory, ok := factories[cfg.Driver]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
	return factory(cfg)
}
