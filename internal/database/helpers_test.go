package database

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell-press/inkwell/internal/cache"
	"github.com/inkwell-press/inkwell/internal/config"
	"github.com/inkwell-press/inkwell/internal/store"
)

// stubClient is a store client driven by a test-supplied exec function.
type stubClient struct {
	exec func(ctx context.Context, query string, args []interface{}) (*store.Result, error)
}

func (c *stubClient) Exec(ctx context.Context, query string, args []interface{}) (*store.Result, error) {
	if c.exec != nil {
		return c.exec(ctx, query, args)
	}
	return &store.Result{}, nil
}

func (c *stubClient) Ping(ctx context.Context) error { return nil }

func (c *stubClient) Close() error { return nil }

func stubFactory(exec func(ctx context.Context, query string, args []interface{}) (*store.Result, error)) ClientFactory {
	return func() (store.Client, error) {
		return &stubClient{exec: exec}, nil
	}
}

func testPoolConfig(min, max int) config.PoolConfig {
	return config.PoolConfig{
		MinConnections: min,
		MaxConnections: max,
		AcquireTimeout: 200 * time.Millisecond,
		IdleTimeout:    50 * time.Millisecond,
		LeakThreshold:  time.Second,
	}
}

func testCache() *cache.QueryCache {
	qc, err := cache.New(zap.NewNop(), cache.Options{MaxPayloadWindow: time.Hour})
	if err != nil {
		panic(err)
	}
	return qc
}
