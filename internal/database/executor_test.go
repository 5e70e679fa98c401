package database

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/inkwell-press/inkwell/internal/dberrors"
	"github.com/inkwell-press/inkwell/internal/store"
)

func newTestExecutor(t *testing.T, exec func(ctx context.Context, query string, args []interface{}) (*store.Result, error)) (*QueryExecutor, *MetricsLog) {
	t.Helper()

	pool, err := NewConnectionPool(zap.NewNop(), testPoolConfig(1, 4), stubFactory(exec))
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	qc := testCache()
	t.Cleanup(func() { qc.Close() })

	metrics := NewMetricsLog()
	executor := NewQueryExecutor(zap.NewNop(), pool, qc, metrics, ExecutorDefaults{
		CacheTTL:    time.Minute,
		Timeout:     time.Second,
		Retries:     2,
		BackoffBase: 10 * time.Millisecond,
	})
	return executor, metrics
}

func TestExecuteSuccess(t *testing.T) {
	var calls atomic.Int32
	executor, metrics := newTestExecutor(t, func(ctx context.Context, query string, args []interface{}) (*store.Result, error) {
		calls.Add(1)
		return &store.Result{Rows: []store.Row{{"title": "launch plan"}}}, nil
	})

	result, err := executor.Execute(context.Background(), "SELECT title FROM posts", nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "launch plan", result.Rows[0]["title"])
	assert.Equal(t, int32(1), calls.Load())

	entries := metrics.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, "SELECT title FROM posts", entries[0].Query)
	assert.False(t, entries[0].CacheHit)
	assert.Equal(t, int64(1), entries[0].AffectedRows)
}

func TestExecuteCachedResult(t *testing.T) {
	var calls atomic.Int32
	executor, metrics := newTestExecutor(t, func(ctx context.Context, query string, args []interface{}) (*store.Result, error) {
		calls.Add(1)
		return &store.Result{Rows: []store.Row{{"slug": "hello-world"}}}, nil
	})

	opts := &ExecOptions{Cache: true, CacheTTL: 50 * time.Millisecond}
	query := "SELECT slug FROM posts WHERE id = $1"
	args := []interface{}{int64(7)}

	first, err := executor.Execute(context.Background(), query, args, opts)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	second, err := executor.Execute(context.Background(), query, args, opts)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "fresh entry must not touch the store")
	assert.Equal(t, first.Rows[0]["slug"], second.Rows[0]["slug"])

	entries := metrics.Snapshot()
	require.Len(t, entries, 2)
	assert.False(t, entries[0].CacheHit)
	assert.True(t, entries[1].CacheHit)
	assert.Equal(t, time.Duration(0), entries[1].Duration)
	// Hit and miss derive the affected-row count the same way.
	assert.Equal(t, int64(1), entries[0].AffectedRows)
	assert.Equal(t, entries[0].AffectedRows, entries[1].AffectedRows)

	// Past its TTL the entry is recomputed.
	time.Sleep(60 * time.Millisecond)
	_, err = executor.Execute(context.Background(), query, args, opts)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestExecuteRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	executor, _ := newTestExecutor(t, func(ctx context.Context, query string, args []interface{}) (*store.Result, error) {
		if calls.Add(1) <= 2 {
			return nil, errors.New("connection reset by peer")
		}
		return &store.Result{AffectedRows: 1}, nil
	})

	start := time.Now()
	result, err := executor.Execute(context.Background(), "UPDATE posts SET views = views + 1", nil, nil)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, int64(1), result.AffectedRows)
	assert.Equal(t, int32(3), calls.Load())
	// Backoff doubles: 20ms before the first retry, 40ms before the second.
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestExecuteRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	executor, _ := newTestExecutor(t, func(ctx context.Context, query string, args []interface{}) (*store.Result, error) {
		calls.Add(1)
		return nil, errors.New("connection refused")
	})

	_, err := executor.Execute(context.Background(), "SELECT 1", nil, nil)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())

	var qerr *dberrors.QueryExecutionError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, "SELECT 1", qerr.Query)
	assert.Equal(t, 2, qerr.Retries)
	assert.Contains(t, qerr.Err.Error(), "connection refused")
}

func TestExecuteNonRetryableFailsFast(t *testing.T) {
	var calls atomic.Int32
	executor, _ := newTestExecutor(t, func(ctx context.Context, query string, args []interface{}) (*store.Result, error) {
		calls.Add(1)
		return nil, errors.New(`syntax error at or near "FORM"`)
	})

	_, err := executor.Execute(context.Background(), "SELECT * FORM posts", nil, nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var qerr *dberrors.QueryExecutionError
	require.ErrorAs(t, err, &qerr)
	// A single failed attempt means zero retries were performed, whatever
	// the configured budget said.
	assert.Equal(t, 0, qerr.Retries)
	assert.Contains(t, err.Error(), "after 0 retries")
}

func TestExecuteReportsPartialRetryCount(t *testing.T) {
	var calls atomic.Int32
	executor, _ := newTestExecutor(t, func(ctx context.Context, query string, args []interface{}) (*store.Result, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("connection reset by peer")
		}
		return nil, errors.New(`syntax error at or near "FORM"`)
	})

	_, err := executor.Execute(context.Background(), "SELECT 1", nil, nil)
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())

	var qerr *dberrors.QueryExecutionError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, 1, qerr.Retries)
}

func TestExecuteNoRetryOption(t *testing.T) {
	var calls atomic.Int32
	executor, _ := newTestExecutor(t, func(ctx context.Context, query string, args []interface{}) (*store.Result, error) {
		calls.Add(1)
		return nil, errors.New("connection reset by peer")
	})

	_, err := executor.Execute(context.Background(), "SELECT 1", nil, &ExecOptions{NoRetry: true})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestExecuteQueryTimeout(t *testing.T) {
	executor, _ := newTestExecutor(t, func(ctx context.Context, query string, args []interface{}) (*store.Result, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
			return &store.Result{}, nil
		}
	})

	start := time.Now()
	_, err := executor.Execute(context.Background(), "SELECT pg_sleep(10)", nil, &ExecOptions{
		Timeout: 30 * time.Millisecond,
		NoRetry: true,
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, dberrors.ErrQueryTimeout)
	assert.Less(t, elapsed, 300*time.Millisecond)
}

func TestExecuteAcquireTimeoutPropagates(t *testing.T) {
	pool, err := NewConnectionPool(zap.NewNop(), testPoolConfig(1, 1), stubFactory(nil))
	require.NoError(t, err)
	defer pool.Close()

	qc := testCache()
	defer qc.Close()

	executor := NewQueryExecutor(zap.NewNop(), pool, qc, NewMetricsLog(), ExecutorDefaults{
		Retries:     2,
		BackoffBase: 10 * time.Millisecond,
	})

	held, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer pool.Release(held)

	_, err = executor.Execute(context.Background(), "SELECT 1", nil, nil)
	require.Error(t, err)
	// Exhaustion is not retried and never wrapped as an execution failure.
	assert.ErrorIs(t, err, dberrors.ErrAcquireTimeout)
	var qerr *dberrors.QueryExecutionError
	assert.False(t, errors.As(err, &qerr))
}

func TestExecuteReleasesConnectionAfterFailure(t *testing.T) {
	executor, _ := newTestExecutor(t, func(ctx context.Context, query string, args []interface{}) (*store.Result, error) {
		return nil, errors.New(`relation "ghosts" does not exist`)
	})

	_, err := executor.Execute(context.Background(), "SELECT * FROM ghosts", nil, nil)
	require.Error(t, err)

	_, active, _ := executor.pool.Registry().Counts()
	assert.Equal(t, 0, active)
}
