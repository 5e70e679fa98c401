// Package cache provides the TTL query-result cache.
//
// Entry metadata (store time, per-entry TTL) lives in an index map which is
// authoritative for expiry and pattern invalidation. The serialized result
// payloads live in BigCache, compressed with s2 above a size threshold.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/klauspost/compress/s2"
	"go.uber.org/zap"

	"github.com/inkwell-press/inkwell/internal/store"
)

// Options tunes the cache.
type Options struct {
	// MaxPayloadWindow bounds how long BigCache keeps payloads. It must be
	// at least the largest TTL callers will use.
	MaxPayloadWindow time.Duration
	// Shards is the BigCache shard count (power of two).
	Shards int
	// HardMaxSizeMB caps BigCache memory.
	HardMaxSizeMB int
	// CompressionThreshold is the payload size in bytes above which
	// entries are s2-compressed. Zero disables compression.
	CompressionThreshold int
}

type entryMeta struct {
	storedAt   time.Time
	ttl        time.Duration
	compressed bool
}

func (m entryMeta) expired(now time.Time) bool {
	return now.Sub(m.storedAt) >= m.ttl
}

// QueryCache memoizes query results under per-entry TTLs.
type QueryCache struct {
	logger *zap.Logger

	mu    sync.RWMutex
	index map[string]entryMeta

	payloads *bigcache.BigCache

	compressionThreshold int

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates a query cache.
func New(logger *zap.Logger, opts Options) (*QueryCache, error) {
	if opts.MaxPayloadWindow <= 0 {
		opts.MaxPayloadWindow = time.Hour
	}
	if opts.Shards <= 0 {
		opts.Shards = 64
	}
	if opts.HardMaxSizeMB <= 0 {
		opts.HardMaxSizeMB = 64
	}

	bcConfig := bigcache.Config{
		Shards:             opts.Shards,
		LifeWindow:         opts.MaxPayloadWindow,
		CleanWindow:        time.Minute,
		MaxEntriesInWindow: 1000 * 10 * 60,
		MaxEntrySize:       512,
		HardMaxCacheSize:   opts.HardMaxSizeMB,
		Verbose:            false,
	}
	payloads, err := bigcache.New(context.Background(), bcConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create payload cache: %w", err)
	}

	return &QueryCache{
		logger:               logger,
		index:                make(map[string]entryMeta),
		payloads:             payloads,
		compressionThreshold: opts.CompressionThreshold,
	}, nil
}

// Key derives the cache key from query text and serialized parameters.
// The query text leads the key so table-scoped patterns match it. Each
// parameter carries its dynamic type so 1 and "1" fingerprint apart.
func Key(query string, args []interface{}) string {
	if len(args) == 0 {
		return query
	}
	var b strings.Builder
	b.WriteString(query)
	b.WriteByte('|')
	for i, arg := range args {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%T:%v", arg, arg)
	}
	return b.String()
}

// Get returns the cached result for key, or nil if absent or expired.
// Expired entries are removed on read.
func (c *QueryCache) Get(key string) (*store.Result, bool) {
	c.mu.RLock()
	meta, ok := c.index[key]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if meta.expired(time.Now()) {
		c.remove(key)
		c.misses.Add(1)
		return nil, false
	}

	data, err := c.payloads.Get(key)
	if err != nil {
		// Payload was evicted underneath the index entry.
		c.remove(key)
		c.misses.Add(1)
		return nil, false
	}

	if meta.compressed {
		data, err = s2.Decode(nil, data)
		if err != nil {
			c.logger.Warn("Failed to decompress cached result", zap.Error(err))
			c.remove(key)
			c.misses.Add(1)
			return nil, false
		}
	}

	var result store.Result
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Warn("Failed to decode cached result", zap.Error(err))
		c.remove(key)
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return &result, true
}

// Set stores a result under key with the given TTL.
func (c *QueryCache) Set(key string, result *store.Result, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("Failed to encode result for caching", zap.Error(err))
		return
	}

	compressed := false
	if c.compressionThreshold > 0 && len(data) > c.compressionThreshold {
		data = s2.Encode(nil, data)
		compressed = true
	}

	if err := c.payloads.Set(key, data); err != nil {
		c.logger.Warn("Failed to store cached result", zap.Error(err))
		return
	}

	c.mu.Lock()
	c.index[key] = entryMeta{storedAt: time.Now(), ttl: ttl, compressed: compressed}
	c.mu.Unlock()
}

// Clear removes entries whose key contains pattern and returns the count
// removed. An empty pattern removes everything.
func (c *QueryCache) Clear(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.index {
		if pattern != "" && !strings.Contains(key, pattern) {
			continue
		}
		delete(c.index, key)
		c.payloads.Delete(key) //nolint:errcheck // absent payload is fine
		removed++
	}
	return removed
}

// Sweep removes all expired entries and returns the count removed.
func (c *QueryCache) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, meta := range c.index {
		if meta.expired(now) {
			delete(c.index, key)
			c.payloads.Delete(key) //nolint:errcheck
			removed++
		}
	}
	return removed
}

func (c *QueryCache) remove(key string) {
	c.mu.Lock()
	delete(c.index, key)
	c.mu.Unlock()
	c.payloads.Delete(key) //nolint:errcheck
}

// Len returns the number of live index entries, including not-yet-swept
// expired ones.
func (c *QueryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.index)
}

// Hits returns the cumulative hit count.
func (c *QueryCache) Hits() uint64 { return c.hits.Load() }

// Misses returns the cumulative miss count.
func (c *QueryCache) Misses() uint64 { return c.misses.Load() }

// HitRate returns hits / (hits + misses), or 0 with no lookups.
func (c *QueryCache) HitRate() float64 {
	hits := c.hits.Load()
	total := hits + c.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Close releases the payload store.
func (c *QueryCache) Close() error {
	return c.payloads.Close()
}
