package database

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell-press/inkwell/internal/store"
)

// Connection is a pooled handle to the backing store plus usage metadata.
// It is owned by the pool; at most one caller holds it at a time.
type Connection struct {
	id        string
	client    store.Client
	createdAt time.Time

	lastUsedAt atomic.Int64 // unix nanos
	queryCount atomic.Uint64
	active     atomic.Bool
}

func newConnection(client store.Client) *Connection {
	c := &Connection{
		id:        uuid.NewString(),
		client:    client,
		createdAt: time.Now(),
	}
	c.lastUsedAt.Store(time.Now().UnixNano())
	return c
}

// ID returns the connection's unique identifier.
func (c *Connection) ID() string { return c.id }

// Client returns the underlying store client.
func (c *Connection) Client() store.Client { return c.client }

// CreatedAt returns when the connection was established.
func (c *Connection) CreatedAt() time.Time { return c.createdAt }

// LastUsedAt returns the last acquire/query/release touch time.
func (c *Connection) LastUsedAt() time.Time {
	return time.Unix(0, c.lastUsedAt.Load())
}

// QueryCount returns how many queries have run on this connection.
func (c *Connection) QueryCount() uint64 { return c.queryCount.Load() }

// IsActive reports whether the connection is checked out.
func (c *Connection) IsActive() bool { return c.active.Load() }

func (c *Connection) touch() {
	c.lastUsedAt.Store(time.Now().UnixNano())
}

func (c *Connection) recordQuery() {
	c.queryCount.Add(1)
	c.touch()
}

func (c *Connection) markActive() {
	c.active.Store(true)
	c.touch()
}

func (c *Connection) markIdle() {
	c.active.Store(false)
	c.touch()
}

func (c *Connection) close() error {
	return c.client.Close()
}
