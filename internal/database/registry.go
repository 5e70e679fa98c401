package database

import (
	"sync"
	"time"
)

// ConnectionRegistry tracks every live connection of a pool. It is the
// single source of truth for pool size and per-connection metadata.
type ConnectionRegistry struct {
	mu          sync.RWMutex
	connections map[string]*Connection
}

// NewConnectionRegistry creates an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		connections: make(map[string]*Connection),
	}
}

func (r *ConnectionRegistry) add(conn *Connection) {
	r.mu.Lock()
	r.connections[conn.id] = conn
	r.mu.Unlock()
}

func (r *ConnectionRegistry) remove(id string) {
	r.mu.Lock()
	delete(r.connections, id)
	r.mu.Unlock()
}

// Size returns the number of live connections.
func (r *ConnectionRegistry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// Counts returns (total, active, idle).
func (r *ConnectionRegistry) Counts() (total, active, idle int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total = len(r.connections)
	for _, conn := range r.connections {
		if conn.IsActive() {
			active++
		}
	}
	idle = total - active
	return total, active, idle
}

// IdleSince returns idle connections untouched since the cutoff.
func (r *ConnectionRegistry) IdleSince(cutoff time.Time) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Connection
	for _, conn := range r.connections {
		if !conn.IsActive() && conn.LastUsedAt().Before(cutoff) {
			out = append(out, conn)
		}
	}
	return out
}

// HeldSince returns active connections untouched since the cutoff. Used by
// leak detection: a held-but-unused connection past the threshold is
// suspicious.
func (r *ConnectionRegistry) HeldSince(cutoff time.Time) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Connection
	for _, conn := range r.connections {
		if conn.IsActive() && conn.LastUsedAt().Before(cutoff) {
			out = append(out, conn)
		}
	}
	return out
}

// All returns a snapshot of every tracked connection.
func (r *ConnectionRegistry) All() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		out = append(out, conn)
	}
	return out
}
