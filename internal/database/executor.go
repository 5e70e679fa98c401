package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell-press/inkwell/internal/cache"
	"github.com/inkwell-press/inkwell/internal/dberrors"
	"github.com/inkwell-press/inkwell/internal/store"
)

// ExecOptions controls a single Execute call. The zero value of a field
// means "use the executor default".
type ExecOptions struct {
	Cache    bool
	CacheTTL time.Duration
	Timeout  time.Duration
	Retries  int

	// NoRetry disables the retry loop regardless of Retries. Batch
	// execution uses it.
	NoRetry bool
}

// ExecutorDefaults are the fallbacks applied to ExecOptions.
type ExecutorDefaults struct {
	CacheTTL    time.Duration
	Timeout     time.Duration
	Retries     int
	BackoffBase time.Duration
}

// QueryExecutor runs single queries with cache lookup, per-attempt timeout
// enforcement and exponential-backoff retries.
type QueryExecutor struct {
	logger   *zap.Logger
	pool     *ConnectionPool
	cache    *cache.QueryCache
	metrics  *MetricsLog
	defaults ExecutorDefaults
}

// NewQueryExecutor creates an executor over the given pool, cache and
// metrics log.
func NewQueryExecutor(logger *zap.Logger, pool *ConnectionPool, qc *cache.QueryCache, metrics *MetricsLog, defaults ExecutorDefaults) *QueryExecutor {
	if defaults.CacheTTL <= 0 {
		defaults.CacheTTL = 5 * time.Minute
	}
	if defaults.Timeout <= 0 {
		defaults.Timeout = 30 * time.Second
	}
	if defaults.Retries < 0 {
		defaults.Retries = 0
	}
	if defaults.BackoffBase <= 0 {
		defaults.BackoffBase = time.Second
	}
	return &QueryExecutor{
		logger:   logger,
		pool:     pool,
		cache:    qc,
		metrics:  metrics,
		defaults: defaults,
	}
}

func (e *QueryExecutor) normalize(opts *ExecOptions) ExecOptions {
	out := ExecOptions{}
	if opts != nil {
		out = *opts
	}
	if out.CacheTTL <= 0 {
		out.CacheTTL = e.defaults.CacheTTL
	}
	if out.Timeout <= 0 {
		out.Timeout = e.defaults.Timeout
	}
	if out.Retries <= 0 {
		out.Retries = e.defaults.Retries
	}
	if out.NoRetry {
		out.Retries = 0
	}
	return out
}

// Execute runs one query. With caching enabled, a fresh cache entry is
// returned without touching the pool and recorded as a zero-latency hit.
// Otherwise each attempt acquires its own connection, races the store call
// against the timeout, and releases the connection whether or not the
// attempt succeeded. Retries back off exponentially.
func (e *QueryExecutor) Execute(ctx context.Context, query string, args []interface{}, opts *ExecOptions) (*store.Result, error) {
	o := e.normalize(opts)

	var key string
	if o.Cache {
		key = cache.Key(query, args)
		if result, ok := e.cache.Get(key); ok {
			e.metrics.Record(QueryMetric{
				Query:        query,
				Duration:     0,
				AffectedRows: affectedRows(result),
				CacheHit:     true,
				Timestamp:    time.Now(),
			})
			return result, nil
		}
	}

	var lastErr error
	attempted := 0
	for attempt := 0; attempt <= o.Retries; attempt++ {
		if attempt > 0 {
			// Delay doubles per attempt: base*2 before the first retry,
			// base*4 before the second.
			delay := e.defaults.BackoffBase * time.Duration(1<<attempt)
			e.logger.Debug("Retrying query",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := e.attempt(ctx, query, args, o.Timeout)
		if err == nil {
			if o.Cache {
				e.cache.Set(key, result, o.CacheTTL)
			}
			return result, nil
		}

		// Pool exhaustion and shutdown propagate directly.
		if errors.Is(err, dberrors.ErrAcquireTimeout) || errors.Is(err, dberrors.ErrPoolClosed) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		attempted = attempt
		if !dberrors.IsRetryable(err) {
			break
		}
	}

	// Report the retries actually performed, not the configured budget:
	// a fast-failed query made zero retries however large the budget was.
	return nil, &dberrors.QueryExecutionError{
		Query:   query,
		Retries: attempted,
		Err:     lastErr,
	}
}

// attempt acquires a connection, runs the query under a fresh timeout
// budget, records the outcome and releases the connection.
func (e *QueryExecutor) attempt(ctx context.Context, query string, args []interface{}, timeout time.Duration) (*store.Result, error) {
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	result, err := conn.client.Exec(execCtx, query, args)
	cancel()

	if err != nil {
		e.pool.Release(conn)
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s", dberrors.ErrQueryTimeout, timeout)
		}
		return nil, err
	}

	conn.recordQuery()
	e.metrics.Record(QueryMetric{
		Query:        query,
		Duration:     time.Since(start),
		AffectedRows: affectedRows(result),
		CacheHit:     false,
		Timestamp:    time.Now(),
	})
	e.pool.Release(conn)
	return result, nil
}

// affectedRows derives the row count from the result shape: row-returning
// queries count rows, others report the store's affected count.
func affectedRows(result *store.Result) int64 {
	if result == nil {
		return 0
	}
	if len(result.Rows) > 0 {
		return int64(len(result.Rows))
	}
	return result.AffectedRows
}
