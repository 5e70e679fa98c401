package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/inkwell-press/inkwell/internal/store"
)

func newTestCache(t *testing.T, opts Options) *QueryCache {
	t.Helper()
	if opts.MaxPayloadWindow == 0 {
		opts.MaxPayloadWindow = time.Hour
	}
	qc, err := New(zap.NewNop(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { qc.Close() })
	return qc
}

func TestKey(t *testing.T) {
	assert.Equal(t, "SELECT 1", Key("SELECT 1", nil))
	assert.Equal(t,
		"SELECT * FROM posts WHERE id = $1|int:7",
		Key("SELECT * FROM posts WHERE id = $1", []interface{}{7}))

	a := Key("q", []interface{}{1, "x"})
	b := Key("q", []interface{}{1, "y"})
	assert.NotEqual(t, a, b)

	// Same rendering, different types: the keys must not collide.
	assert.NotEqual(t,
		Key("q", []interface{}{1}),
		Key("q", []interface{}{"1"}))
}

func TestCacheSetGet(t *testing.T) {
	qc := newTestCache(t, Options{})

	result := &store.Result{
		Rows:         []store.Row{{"title": "launch", "slug": "launch-post"}},
		AffectedRows: 0,
	}
	qc.Set("posts:1", result, time.Minute)

	got, ok := qc.Get("posts:1")
	require.True(t, ok)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, "launch", got.Rows[0]["title"])
	assert.Equal(t, "launch-post", got.Rows[0]["slug"])

	_, ok = qc.Get("posts:2")
	assert.False(t, ok)

	assert.Equal(t, uint64(1), qc.Hits())
	assert.Equal(t, uint64(1), qc.Misses())
	assert.InDelta(t, 0.5, qc.HitRate(), 0.001)
}

func TestCacheExpiry(t *testing.T) {
	qc := newTestCache(t, Options{})

	qc.Set("k", &store.Result{AffectedRows: 1}, 20*time.Millisecond)

	_, ok := qc.Get("k")
	require.True(t, ok)

	time.Sleep(30 * time.Millisecond)

	_, ok = qc.Get("k")
	assert.False(t, ok)
	// The expired entry was removed on read.
	assert.Equal(t, 0, qc.Len())
}

func TestCacheZeroTTLNotStored(t *testing.T) {
	qc := newTestCache(t, Options{})

	qc.Set("k", &store.Result{}, 0)
	assert.Equal(t, 0, qc.Len())
}

func TestCacheClearPattern(t *testing.T) {
	qc := newTestCache(t, Options{})

	qc.Set("SELECT * FROM users WHERE id = $1|1", &store.Result{}, time.Minute)
	qc.Set("SELECT * FROM users WHERE id = $1|2", &store.Result{}, time.Minute)
	qc.Set("SELECT * FROM orders WHERE id = $1|1", &store.Result{}, time.Minute)
	require.Equal(t, 3, qc.Len())

	removed := qc.Clear("users")
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, qc.Len())

	_, ok := qc.Get("SELECT * FROM orders WHERE id = $1|1")
	assert.True(t, ok)

	// Empty pattern clears everything left.
	assert.Equal(t, 1, qc.Clear(""))
	assert.Equal(t, 0, qc.Len())
}

func TestCacheSweep(t *testing.T) {
	qc := newTestCache(t, Options{})

	qc.Set("stale:1", &store.Result{}, 10*time.Millisecond)
	qc.Set("stale:2", &store.Result{}, 10*time.Millisecond)
	qc.Set("fresh", &store.Result{}, time.Hour)

	assert.Equal(t, 0, qc.Sweep(time.Now()))

	removed := qc.Sweep(time.Now().Add(time.Second))
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, qc.Len())

	_, ok := qc.Get("fresh")
	assert.True(t, ok)
}

func TestCacheCompressionRoundtrip(t *testing.T) {
	qc := newTestCache(t, Options{CompressionThreshold: 64})

	body := strings.Repeat("content marketing at scale ", 200)
	result := &store.Result{Rows: []store.Row{{"body": body}}}
	qc.Set("big", result, time.Minute)

	got, ok := qc.Get("big")
	require.True(t, ok)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, body, got.Rows[0]["body"])

	// Small payloads bypass compression but still roundtrip.
	qc.Set("small", &store.Result{AffectedRows: 3}, time.Minute)
	small, ok := qc.Get("small")
	require.True(t, ok)
	assert.Equal(t, int64(3), small.AffectedRows)
}
