package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/inkwell-press/inkwell/internal/dberrors"
	"github.com/inkwell-press/inkwell/internal/store"
)

// SelectOptions tunes a convenience Select.
type SelectOptions struct {
	OrderBy  string
	Limit    int
	Cache    bool
	CacheTTL time.Duration
}

// InsertOptions tunes a convenience Insert.
type InsertOptions struct {
	// OnConflict is one of "error", "ignore" or "update".
	OnConflict string
	Returning  []string
}

// UpdateOptions tunes a convenience Update.
type UpdateOptions struct {
	Returning []string
	// ExpectedRows, when set, makes the update fail with a row-count
	// mismatch unless exactly that many rows were affected.
	ExpectedRows *int64
}

// Select builds and runs a SELECT over the executor.
func (e *Engine) Select(ctx context.Context, table string, columns []string, where map[string]interface{}, opts *SelectOptions) ([]store.Row, error) {
	o := SelectOptions{}
	if opts != nil {
		o = *opts
	}

	cols := "*"
	if len(columns) > 0 {
		cols = strings.Join(columns, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", cols, table)

	clause, args := buildWhere(where, 1)
	b.WriteString(clause)

	if o.OrderBy != "" {
		fmt.Fprintf(&b, " ORDER BY %s", o.OrderBy)
	}
	if o.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", o.Limit)
	}

	result, err := e.executor.Execute(ctx, b.String(), args, &ExecOptions{
		Cache:    o.Cache,
		CacheTTL: o.CacheTTL,
	})
	if err != nil {
		return nil, err
	}
	return result.Rows, nil
}

// Insert builds and runs an INSERT. It returns the first returned row, or
// the input data when the store returns none.
func (e *Engine) Insert(ctx context.Context, table string, data map[string]interface{}, opts *InsertOptions) (store.Row, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("insert into %s requires at least one column", table)
	}

	o := InsertOptions{OnConflict: "error"}
	if opts != nil {
		o = *opts
		if o.OnConflict == "" {
			o.OnConflict = "error"
		}
	}

	keys := sortedKeys(data)
	placeholders := make([]string, len(keys))
	args := make([]interface{}, len(keys))
	for i, k := range keys {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = data[k]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(keys, ", "), strings.Join(placeholders, ", "))

	switch o.OnConflict {
	case "ignore":
		b.WriteString(" ON CONFLICT DO NOTHING")
	case "update":
		sets := make([]string, len(keys))
		for i, k := range keys {
			sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", k, k)
		}
		fmt.Fprintf(&b, " ON CONFLICT DO UPDATE SET %s", strings.Join(sets, ", "))
	case "error":
	default:
		return nil, fmt.Errorf("invalid on_conflict mode: %s", o.OnConflict)
	}

	if len(o.Returning) > 0 {
		fmt.Fprintf(&b, " RETURNING %s", strings.Join(o.Returning, ", "))
	}

	result, err := e.executor.Execute(ctx, b.String(), args, nil)
	if err != nil {
		return nil, err
	}
	if len(result.Rows) > 0 {
		return result.Rows[0], nil
	}
	return store.Row(data), nil
}

// Update builds and runs an UPDATE, enforcing the expected affected-row
// count when one is supplied.
func (e *Engine) Update(ctx context.Context, table string, data map[string]interface{}, where map[string]interface{}, opts *UpdateOptions) ([]store.Row, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("update of %s requires at least one column", table)
	}

	o := UpdateOptions{}
	if opts != nil {
		o = *opts
	}

	keys := sortedKeys(data)
	sets := make([]string, len(keys))
	args := make([]interface{}, 0, len(keys)+len(where))
	for i, k := range keys {
		sets[i] = fmt.Sprintf("%s = $%d", k, i+1)
		args = append(args, data[k])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "UPDATE %s SET %s", table, strings.Join(sets, ", "))

	clause, whereArgs := buildWhere(where, len(keys)+1)
	b.WriteString(clause)
	args = append(args, whereArgs...)

	if len(o.Returning) > 0 {
		fmt.Fprintf(&b, " RETURNING %s", strings.Join(o.Returning, ", "))
	}

	result, err := e.executor.Execute(ctx, b.String(), args, nil)
	if err != nil {
		return nil, err
	}

	if o.ExpectedRows != nil && result.AffectedRows != *o.ExpectedRows {
		return nil, &dberrors.RowCountMismatchError{
			Expected: *o.ExpectedRows,
			Actual:   result.AffectedRows,
		}
	}
	return result.Rows, nil
}

// buildWhere renders a WHERE clause with deterministic column order and
// $n placeholders starting at firstParam.
func buildWhere(where map[string]interface{}, firstParam int) (string, []interface{}) {
	if len(where) == 0 {
		return "", nil
	}
	keys := sortedKeys(where)
	conds := make([]string, len(keys))
	args := make([]interface{}, len(keys))
	for i, k := range keys {
		conds[i] = fmt.Sprintf("%s = $%d", k, firstParam+i)
		args[i] = where[k]
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
