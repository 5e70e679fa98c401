// Package database implements the connection pool and query-execution
// layer in front of the backing store: lifecycle-managed connections,
// blocking acquisition with timeout, a TTL result cache, retrying
// execution, batch grouping, heuristic query advice and background
// maintenance.
package database

import (
	"context"

	"go.uber.org/zap"

	"github.com/inkwell-press/inkwell/internal/cache"
	"github.com/inkwell-press/inkwell/internal/config"
	"github.com/inkwell-press/inkwell/internal/store"
)

// Engine composes the pool, cache, executor, advisor and maintenance
// scheduler behind one lifecycle. Construct it explicitly and inject it
// into consumers; there is no package-level instance.
type Engine struct {
	logger      *zap.Logger
	cfg         *config.Config
	pool        *ConnectionPool
	cache       *cache.QueryCache
	metrics     *MetricsLog
	executor    *QueryExecutor
	advisor     *QueryAdvisor
	maintenance *MaintenanceScheduler
}

// NewEngine builds the engine from configuration. The pool eagerly dials
// its minimum connections, so construction fails fast on an unreachable
// store. Maintenance does not run until Start.
func NewEngine(logger *zap.Logger, cfg *config.Config, sinks ...StatsSink) (*Engine, error) {
	qc, err := cache.New(logger.Named("cache"), cache.Options{
		MaxPayloadWindow:     cfg.Cache.MaxPayloadWindow,
		Shards:               cfg.Cache.Shards,
		HardMaxSizeMB:        cfg.Cache.HardMaxSizeMB,
		CompressionThreshold: cfg.Cache.CompressionThreshold,
	})
	if err != nil {
		return nil, err
	}

	factory := func() (store.Client, error) {
		return store.Open(cfg.Store)
	}

	pool, err := NewConnectionPool(logger.Named("pool"), cfg.Pool, factory)
	if err != nil {
		qc.Close() //nolint:errcheck
		return nil, err
	}

	metrics := NewMetricsLog()
	executor := NewQueryExecutor(logger.Named("executor"), pool, qc, metrics, ExecutorDefaults{
		CacheTTL:    cfg.Cache.DefaultTTL,
		Timeout:     cfg.Executor.QueryTimeout,
		Retries:     cfg.Executor.Retries,
		BackoffBase: cfg.Executor.BackoffBase,
	})

	e := &Engine{
		logger:   logger,
		cfg:      cfg,
		pool:     pool,
		cache:    qc,
		metrics:  metrics,
		executor: executor,
		advisor:  NewQueryAdvisor(512),
	}
	e.maintenance = NewMaintenanceScheduler(logger.Named("maintenance"),
		cfg.Maintenance, pool, qc, metrics, sinks...)

	return e, nil
}

// Start launches background maintenance.
func (e *Engine) Start() {
	e.maintenance.Start()
}

// Close stops maintenance and releases the pool and cache.
func (e *Engine) Close() error {
	e.maintenance.Stop()
	err := e.pool.Close()
	if cerr := e.cache.Close(); err == nil {
		err = cerr
	}
	return err
}

// Execute runs a single query through the executor.
func (e *Engine) Execute(ctx context.Context, query string, args []interface{}, opts *ExecOptions) (*store.Result, error) {
	return e.executor.Execute(ctx, query, args, opts)
}

// ExecuteBatch runs a batch through the executor.
func (e *Engine) ExecuteBatch(ctx context.Context, queries []BatchQuery, opts *BatchOptions) ([]*store.Result, error) {
	return e.executor.ExecuteBatch(ctx, queries, opts)
}

// Advise returns heuristic suggestions for a query.
func (e *Engine) Advise(query string) *Advice {
	return e.advisor.Analyze(query)
}

// ClearCache removes cached results matching pattern ("" clears all) and
// returns the count removed.
func (e *Engine) ClearCache(pattern string) int {
	return e.cache.Clear(pattern)
}

// Snapshot returns the current observability view.
func (e *Engine) Snapshot() PoolSnapshot {
	return BuildSnapshot(e.pool, e.cache, e.metrics)
}

// OptimizePool returns sizing recommendations for the current load. It
// never mutates the running configuration.
func (e *Engine) OptimizePool() *TuningReport {
	return Tune(e.cfg.Pool, e.Snapshot())
}

// Health checks out a connection and pings the store through it.
func (e *Engine) Health(ctx context.Context) error {
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer e.pool.Release(conn)
	return conn.client.Ping(ctx)
}

// Pool exposes the underlying pool for tests and observability.
func (e *Engine) Pool() *ConnectionPool { return e.pool }

// Metrics exposes the metrics log.
func (e *Engine) Metrics() *MetricsLog { return e.metrics }
