// Package dberrors defines the typed error taxonomy of the data layer.
//
// All failures escaping the pool and executor are one of these kinds; no
// generic catch-all swallowing happens inside the layer.
package dberrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAcquireTimeout means no connection became available within the
	// configured acquisition timeout. It is never retried internally.
	ErrAcquireTimeout = errors.New("connection acquisition timed out")

	// ErrQueryTimeout means a single execution attempt exceeded its
	// timeout budget. The executor's retry loop handles it.
	ErrQueryTimeout = errors.New("query execution timed out")

	// ErrPoolClosed means the pool has been shut down.
	ErrPoolClosed = errors.New("connection pool closed")
)

// QueryExecutionError is raised once the executor's retries are exhausted.
type QueryExecutionError struct {
	Query   string
	Retries int
	Err     error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("query failed after %d retries: %v", e.Retries, e.Err)
}

func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}

// RowCountMismatchError reports an update that touched an unexpected
// number of rows.
type RowCountMismatchError struct {
	Expected int64
	Actual   int64
}

func (e *RowCountMismatchError) Error() string {
	return fmt.Sprintf("expected %d affected rows, got %d", e.Expected, e.Actual)
}

var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"timeout",
	"timed out",
	"deadlock",
	"too many connections",
}

// IsRetryable reports whether a failed execution attempt is worth
// retrying. Pool exhaustion is terminal; timeouts and transient transport
// failures are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAcquireTimeout) || errors.Is(err, ErrPoolClosed) {
		return false
	}
	if errors.Is(err, ErrQueryTimeout) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
