package database

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell-press/inkwell/internal/config"
	"github.com/inkwell-press/inkwell/internal/dberrors"
	"github.com/inkwell-press/inkwell/internal/store"
)

// ClientFactory creates a new backing-store client for the pool.
type ClientFactory func() (store.Client, error)

// ConnectionPool owns a bounded set of backing-store connections.
//
// Acquisition returns the first idle connection, grows the pool below the
// maximum, and otherwise parks the caller on a FIFO waiter queue that
// Release hands connections to directly. A connection handed to a waiter
// never transitions through idle, preserving the single-owner invariant.
type ConnectionPool struct {
	logger   *zap.Logger
	config   config.PoolConfig
	factory  ClientFactory
	registry *ConnectionRegistry

	mu      sync.Mutex
	idle    []*Connection
	waiters []chan *Connection
	pending int // connections being dialed; reserves slots against the max
	closed  bool

	created   atomic.Uint64
	destroyed atomic.Uint64
	reused    atomic.Uint64
	timeouts  atomic.Uint64
	waitCount atomic.Uint64
	waitNanos atomic.Int64
}

// PoolStats is a point-in-time view of pool counters.
type PoolStats struct {
	TotalConnections  int
	ActiveConnections int
	IdleConnections   int
	Created           uint64
	Destroyed         uint64
	Reused            uint64
	AcquireTimeouts   uint64
	WaitCount         uint64
	AvgWaitTime       time.Duration
}

// NewConnectionPool creates a pool and eagerly establishes the minimum
// number of connections.
func NewConnectionPool(logger *zap.Logger, cfg config.PoolConfig, factory ClientFactory) (*ConnectionPool, error) {
	p := &ConnectionPool{
		logger:   logger,
		config:   cfg,
		factory:  factory,
		registry: NewConnectionRegistry(),
	}

	for i := 0; i < cfg.MinConnections; i++ {
		conn, err := p.dial()
		if err != nil {
			p.closeAll()
			return nil, fmt.Errorf("failed to create connection %d: %w", i, err)
		}
		p.registry.add(conn)
		p.idle = append(p.idle, conn)
	}

	logger.Info("Connection pool initialized",
		zap.Int("min_connections", cfg.MinConnections),
		zap.Int("max_connections", cfg.MaxConnections))

	return p, nil
}

// Registry exposes the connection registry for observability.
func (p *ConnectionPool) Registry() *ConnectionRegistry { return p.registry }

// Config returns the immutable pool configuration.
func (p *ConnectionPool) Config() config.PoolConfig { return p.config }

func (p *ConnectionPool) dial() (*Connection, error) {
	client, err := p.factory()
	if err != nil {
		return nil, err
	}
	p.created.Add(1)
	return newConnection(client), nil
}

// Acquire checks out a connection, blocking up to the configured acquire
// timeout when the pool is exhausted. The context can cut the wait short.
func (p *ConnectionPool) Acquire(ctx context.Context) (*Connection, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, dberrors.ErrPoolClosed
	}

	// First idle connection wins.
	if len(p.idle) > 0 {
		conn := p.idle[0]
		p.idle = p.idle[1:]
		conn.markActive()
		p.mu.Unlock()
		p.reused.Add(1)
		return conn, nil
	}

	// Grow below the ceiling. The pending counter reserves the slot while
	// the dial happens outside the lock.
	if p.registry.Size()+p.pending < p.config.MaxConnections {
		p.pending++
		p.mu.Unlock()

		conn, err := p.dial()

		p.mu.Lock()
		p.pending--
		if err != nil {
			p.mu.Unlock()
			return nil, fmt.Errorf("failed to create connection: %w", err)
		}
		if p.closed {
			p.mu.Unlock()
			conn.close() //nolint:errcheck
			return nil, dberrors.ErrPoolClosed
		}
		p.registry.add(conn)
		conn.markActive()
		p.mu.Unlock()
		return conn, nil
	}

	// Exhausted: join the FIFO waiter queue.
	ch := make(chan *Connection, 1)
	p.waiters = append(p.waiters, ch)
	p.mu.Unlock()

	p.waitCount.Add(1)
	start := time.Now()
	timer := time.NewTimer(p.config.AcquireTimeout)
	defer timer.Stop()

	select {
	case conn := <-ch:
		if conn == nil {
			return nil, dberrors.ErrPoolClosed
		}
		p.waitNanos.Add(time.Since(start).Nanoseconds())
		return conn, nil

	case <-timer.C:
		if p.abandonWait(ch) {
			p.timeouts.Add(1)
			return nil, fmt.Errorf("%w after %s", dberrors.ErrAcquireTimeout, p.config.AcquireTimeout)
		}
		// Release raced the timer; the handoff already happened.
		conn := <-ch
		if conn == nil {
			return nil, dberrors.ErrPoolClosed
		}
		p.waitNanos.Add(time.Since(start).Nanoseconds())
		return conn, nil

	case <-ctx.Done():
		if !p.abandonWait(ch) {
			if conn := <-ch; conn != nil {
				p.Release(conn)
			}
		}
		return nil, ctx.Err()
	}
}

// abandonWait removes ch from the waiter queue. It returns false when the
// channel was already handed a connection.
func (p *ConnectionPool) abandonWait(ch chan *Connection) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, w := range p.waiters {
		if w == ch {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// Release returns a connection to the pool. The oldest waiter, if any,
// receives it directly; otherwise it goes idle. Releasing an already-idle
// connection is a no-op.
func (p *ConnectionPool) Release(conn *Connection) {
	if conn == nil {
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.destroy(conn)
		return
	}
	if !conn.IsActive() {
		p.mu.Unlock()
		return
	}

	if len(p.waiters) > 0 {
		ch := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.mu.Unlock()
		conn.touch()
		p.reused.Add(1)
		ch <- conn
		return
	}

	conn.markIdle()
	p.idle = append(p.idle, conn)
	p.mu.Unlock()
}

func (p *ConnectionPool) destroy(conn *Connection) {
	p.registry.remove(conn.id)
	p.destroyed.Add(1)
	if err := conn.close(); err != nil {
		p.logger.Warn("Failed to close connection",
			zap.String("id", conn.id), zap.Error(err))
	}
}

// Reap destroys idle connections untouched past the idle timeout, never
// shrinking the pool below the minimum. It returns the number reaped.
func (p *ConnectionPool) Reap(now time.Time) int {
	cutoff := now.Add(-p.config.IdleTimeout)

	p.mu.Lock()
	var reaped []*Connection
	kept := p.idle[:0]
	for _, conn := range p.idle {
		if p.registry.Size()-len(reaped) > p.config.MinConnections &&
			conn.LastUsedAt().Before(cutoff) {
			reaped = append(reaped, conn)
			continue
		}
		kept = append(kept, conn)
	}
	p.idle = kept
	p.mu.Unlock()

	for _, conn := range reaped {
		p.destroy(conn)
	}
	return len(reaped)
}

// LeakSuspects returns connections held without activity past the leak
// threshold. They are reported, not reclaimed.
func (p *ConnectionPool) LeakSuspects(now time.Time) []*Connection {
	if p.config.LeakThreshold <= 0 {
		return nil
	}
	return p.registry.HeldSince(now.Add(-p.config.LeakThreshold))
}

// Stats returns a snapshot of pool counters.
func (p *ConnectionPool) Stats() PoolStats {
	total, active, idle := p.registry.Counts()
	stats := PoolStats{
		TotalConnections:  total,
		ActiveConnections: active,
		IdleConnections:   idle,
		Created:           p.created.Load(),
		Destroyed:         p.destroyed.Load(),
		Reused:            p.reused.Load(),
		AcquireTimeouts:   p.timeouts.Load(),
		WaitCount:         p.waitCount.Load(),
	}
	if stats.WaitCount > 0 {
		stats.AvgWaitTime = time.Duration(p.waitNanos.Load() / int64(stats.WaitCount))
	}
	return stats
}

// Close shuts the pool down. Parked waiters fail with ErrPoolClosed;
// connections still checked out are destroyed on release.
func (p *ConnectionPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	waiters := p.waiters
	p.waiters = nil
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}
	for _, conn := range idle {
		p.destroy(conn)
	}

	p.logger.Info("Connection pool shut down")
	return nil
}

func (p *ConnectionPool) closeAll() {
	for _, conn := range p.idle {
		conn.close() //nolint:errcheck
	}
	p.idle = nil
}
