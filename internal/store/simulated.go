package store

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"
)

func init() {
	Register("simulated", func(cfg Config) (Client, error) {
		return NewSimulatedClient(cfg), nil
	})
}

// SimulatedClient synthesizes query results after a configurable delay.
// It is the default transport until a real backing-store protocol is wired
// in, and doubles as the failure-injection harness for tests.
type SimulatedClient struct {
	baseLatency time.Duration
	jitter      time.Duration

	mu     sync.Mutex
	rng    *rand.Rand
	hook   func(ctx context.Context, query string, args []interface{}) (*Result, error)
	closed bool
}

// NewSimulatedClient creates a simulated client. Zero latency values fall
// back to a small default so timing-sensitive callers still see a delay.
func NewSimulatedClient(cfg Config) *SimulatedClient {
	base := cfg.BaseLatency
	if base <= 0 {
		base = 2 * time.Millisecond
	}
	jitter := cfg.Jitter
	if jitter < 0 {
		jitter = 0
	}
	return &SimulatedClient{
		baseLatency: base,
		jitter:      jitter,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetHook installs an interceptor that replaces result synthesis. The
// simulated delay still applies before the hook runs.
func (c *SimulatedClient) SetHook(hook func(ctx context.Context, query string, args []interface{}) (*Result, error)) {
	c.mu.Lock()
	c.hook = hook
	c.mu.Unlock()
}

func (c *SimulatedClient) delay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.baseLatency
	if c.jitter > 0 {
		d += time.Duration(c.rng.Int63n(int64(c.jitter)))
	}
	return d
}

// Exec waits out the simulated latency, then either invokes the installed
// hook or synthesizes an empty result shaped by the statement kind.
func (c *SimulatedClient) Exec(ctx context.Context, query string, args []interface{}) (*Result, error) {
	timer := time.NewTimer(c.delay())
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	c.mu.Lock()
	hook := c.hook
	c.mu.Unlock()
	if hook != nil {
		return hook(ctx, query, args)
	}

	if isSelect(query) {
		return &Result{Rows: []Row{}}, nil
	}
	return &Result{AffectedRows: 1}, nil
}

// Ping reports success unless the client has been closed.
func (c *SimulatedClient) Ping(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// Close marks the client closed.
func (c *SimulatedClient) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func isSelect(query string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT")
}
