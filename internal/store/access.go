// ABOUTME: Store-agnostic data access primitives over a bound connection
// ABOUTME: Reads run once; writes go through the retrying transactional path

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// dialect supplies the store-specific variation points of the access layer:
// error classification and metadata lookup. Everything else is generic.
type dialect interface {
	IsTransient(err error) bool
	IsConstraint(err error) bool
	IsMissingTable(err error) bool
	TableExistsQuery() string
}

// DataAccess exposes raw, store-shaped read and write operations over one
// bound connection. Writes are retried transparently on transient lock
// contention; reads are not.
type DataAccess interface {
	EnsureConnected() error
	TableExists(ctx context.Context, name string) (bool, error)
	Query(ctx context.Context, query string, args ...any) ([]map[string]any, error)
	ExecWithRetry(ctx context.Context, query string, args ...any) (int64, error)
	WithRetry(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// Access implements DataAccess over a single *sql.Conn. The connection's
// lifetime belongs to whoever acquired it; Access never closes it.
type Access struct {
	conn    *sql.Conn
	dialect dialect
	policy  RetryPolicy
	logger  *slog.Logger

	// writeMu serializes this instance's own write dispatch. The engine
	// rejects a second concurrent writer rather than queuing it, and
	// contention from other connections is still handled by the retry loop.
	writeMu sync.Mutex
	sleep   func(time.Duration)
}

// NewSQLiteAccess binds a DataAccess to an already-acquired connection using
// the SQLite dialect and the given retry policy.
func NewSQLiteAccess(conn *sql.Conn, policy RetryPolicy) *Access {
	return &Access{
		conn:    conn,
		dialect: sqliteDialect{},
		policy:  policy,
		logger:  slog.Default().With("component", "store"),
		sleep:   time.Sleep,
	}
}

// EnsureConnected fails with ErrConnectionUnavailable if no connection is
// bound. Every other operation calls it as a precondition.
func (a *Access) EnsureConnected() error {
	if a.conn == nil {
		return fmt.Errorf("%w: no connection bound", ErrConnectionUnavailable)
	}
	return nil
}

// TableExists reports whether a table is present in the store's catalog.
// Read-only, never retried.
func (a *Access) TableExists(ctx context.Context, name string) (bool, error) {
	if err := a.EnsureConnected(); err != nil {
		return false, err
	}

	var found string
	err := a.conn.QueryRowContext(ctx, a.dialect.TableExistsQuery(), name).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking table %q: %w", name, err)
	}
	return true, nil
}

// Query runs a read-only statement and materializes the full result set as
// column-name keyed rows. Reads are served under the store's own read
// concurrency and are not retried.
func (a *Access) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	if err := a.EnsureConnected(); err != nil {
		return nil, err
	}

	rows, err := a.conn.QueryContext(ctx, query, args...)
	if err != nil {
		if a.dialect.IsMissingTable(err) {
			return nil, fmt.Errorf("%w: %v", ErrSchemaMissing, err)
		}
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	var result []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return result, nil
}

// ExecWithRetry runs a single mutating statement inside its own transaction,
// retrying per the policy on transient lock contention. Returns the affected
// row count on commit.
func (a *Access) ExecWithRetry(ctx context.Context, query string, args ...any) (int64, error) {
	var affected int64
	err := a.WithRetry(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// WithRetry runs fn inside a transaction and retries the whole unit per the
// policy when the engine reports the database busy or locked. The transaction
// is rolled back before any backoff sleep, so the write lock is never held
// while waiting. Constraint violations and other fatal errors roll back and
// propagate without retry.
func (a *Access) WithRetry(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if err := a.EnsureConnected(); err != nil {
		return err
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	attempt := 0
	return retry(a.policy, a.dialect, a.backoff(&attempt), func() error {
		attempt++
		return a.runTx(ctx, fn)
	})
}

func (a *Access) backoff(attempt *int) func(time.Duration) {
	return func(d time.Duration) {
		a.logger.Debug("store busy, backing off", "attempt", *attempt, "delay", d)
		a.sleep(d)
	}
}

// runTx executes fn in one transaction on the bound connection. A failure at
// any point, commit included, leaves no transaction open.
func (a *Access) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := a.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

var _ DataAccess = (*Access)(nil)
