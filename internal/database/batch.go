package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/inkwell-press/inkwell/internal/dberrors"
	"github.com/inkwell-press/inkwell/internal/store"
)

// BatchQuery is one query in a batch.
type BatchQuery struct {
	Query string
	Args  []interface{}
}

// BatchOptions controls batch execution.
type BatchOptions struct {
	// Transaction runs all queries strictly in order on one connection.
	// A failure aborts the remaining queries. Ordering and connection
	// locality are guaranteed; atomic rollback is not.
	Transaction bool
	// Timeout bounds the whole batch.
	Timeout time.Duration
}

// ExecuteBatch runs a list of queries either sequentially on a single
// connection or concurrently across the pool. Results are returned in
// input order; in the transactional mode a slot after the failing query
// stays nil.
func (e *QueryExecutor) ExecuteBatch(ctx context.Context, queries []BatchQuery, opts *BatchOptions) ([]*store.Result, error) {
	o := BatchOptions{Transaction: true, Timeout: 60 * time.Second}
	if opts != nil {
		o = *opts
		if o.Timeout <= 0 {
			o.Timeout = 60 * time.Second
		}
	}

	if len(queries) == 0 {
		return nil, nil
	}

	batchCtx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	if o.Transaction {
		return e.executeSequential(batchCtx, queries)
	}
	return e.executeConcurrent(batchCtx, queries)
}

// executeSequential holds one connection for the whole batch. There is no
// per-query retry: the first failure propagates and later queries never
// run. The connection is released exactly once.
func (e *QueryExecutor) executeSequential(ctx context.Context, queries []BatchQuery) ([]*store.Result, error) {
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer e.pool.Release(conn)

	results := make([]*store.Result, len(queries))
	for i, q := range queries {
		start := time.Now()
		result, err := conn.client.Exec(ctx, q.Query, q.Args)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("%w during batch", dberrors.ErrQueryTimeout)
			}
			return results, fmt.Errorf("batch query %d failed: %w", i, err)
		}

		conn.recordQuery()
		e.metrics.Record(QueryMetric{
			Query:        q.Query,
			Duration:     time.Since(start),
			AffectedRows: affectedRows(result),
			Timestamp:    time.Now(),
		})
		results[i] = result
	}
	return results, nil
}

// executeConcurrent fans the batch out across the pool; each query
// acquires its own connection. The first failure cancels the rest.
func (e *QueryExecutor) executeConcurrent(ctx context.Context, queries []BatchQuery) ([]*store.Result, error) {
	results := make([]*store.Result, len(queries))
	g, gctx := errgroup.WithContext(ctx)

	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			result, err := e.Execute(gctx, q.Query, q.Args, &ExecOptions{NoRetry: true})
			if err != nil {
				return fmt.Errorf("batch query %d failed: %w", i, err)
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
