// Package executor runs read-only queries against the transaction store on
// behalf of a data source.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/insight/internal/sources"
	"github.com/JaimeStill/insight/pkg/repository"
)

// ErrTooManyRows indicates a query produced more rows than the configured cap.
var ErrTooManyRows = errors.New("query exceeded row limit")

// Row is one result row keyed by column name.
type Row = map[string]any

// Executor runs one query for a data source. Errors carry the driver message
// verbatim so callers can categorize them.
type Executor interface {
	Execute(ctx context.Context, source sources.DataSource, sql string) ([]Row, error)
}

// Func adapts a function to the Executor interface.
type Func func(ctx context.Context, source sources.DataSource, sql string) ([]Row, error)

// Execute calls f.
func (f Func) Execute(ctx context.Context, source sources.DataSource, sql string) ([]Row, error) {
	return f(ctx, source, sql)
}

type sqlExecutor struct {
	db      *sql.DB
	timeout time.Duration
	maxRows int
	logger  *slog.Logger
}

// New creates an Executor over db. Each call runs in a read-only transaction,
// is bounded by timeout and fails with ErrTooManyRows past maxRows.
func New(db *sql.DB, timeout time.Duration, maxRows int, logger *slog.Logger) Executor {
	return &sqlExecutor{
		db:      db,
		timeout: timeout,
		maxRows: maxRows,
		logger:  logger.With("system", "executor"),
	}
}

func (e *sqlExecutor) Execute(ctx context.Context, source sources.DataSource, query string) ([]Row, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := repository.WithTx(ctx, e.db, repository.ReadOnly, func(tx *sql.Tx) ([]Row, error) {
		rows, err := tx.QueryContext(ctx, query)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		return scanRows(rows, e.maxRows)
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("query timeout after %s: %w", e.timeout, err)
		}
		return nil, err
	}

	e.logger.InfoContext(ctx, "query executed",
		"source", source,
		"rows", len(result),
		"duration", time.Since(start),
	)
	return result, nil
}

func scanRows(rows *sql.Rows, maxRows int) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := make([]Row, 0)
	for rows.Next() {
		if maxRows > 0 && len(result) >= maxRows {
			return nil, fmt.Errorf("%w: %d", ErrTooManyRows, maxRows)
		}

		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
