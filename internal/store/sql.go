package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

func init() {
	Register("postgres", newSQLClient)
	Register("sqlite", newSQLClient)
	Register("sqlite3", newSQLClient)
}

// SQLClient runs queries through database/sql against a real backing store.
type SQLClient struct {
	db *sql.DB
}

func newSQLClient(cfg Config) (Client, error) {
	driver := cfg.Driver
	if driver == "sqlite" {
		driver = "sqlite3"
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	// The pool layer above owns connection lifecycle; each client holds a
	// single underlying connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping store: %w", err)
	}

	return &SQLClient{db: db}, nil
}

// Exec dispatches SELECT statements through QueryContext and everything
// else through ExecContext.
func (c *SQLClient) Exec(ctx context.Context, query string, args []interface{}) (*Result, error) {
	if isSelect(query) {
		return c.query(ctx, query, args)
	}

	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		affected = 0
	}
	return &Result{AffectedRows: affected}, nil
}

func (c *SQLClient) query(ctx context.Context, query string, args []interface{}) (*Result, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &Result{Rows: []Row{}}
	values := make([]interface{}, len(columns))
	scanners := make([]interface{}, len(columns))
	for i := range values {
		scanners[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanners...); err != nil {
			return nil, err
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result.AffectedRows = int64(len(result.Rows))
	return result, nil
}

// Ping checks the underlying connection.
func (c *SQLClient) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close releases the underlying connection.
func (c *SQLClient) Close() error {
	return c.db.Close()
}
