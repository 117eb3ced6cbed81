// ABOUTME: Connection provider over an embedded SQLite database file
// ABOUTME: The only component that knows how a physical connection is opened

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// ConnectionProvider hands out scoped connections to the underlying store.
// Callers own the returned connection and must Close it on every exit path.
type ConnectionProvider interface {
	Acquire(ctx context.Context) (*sql.Conn, error)
	Close() error
}

// SQLiteProvider opens an SQLite database file and serves connections from
// the pool. WAL journaling and foreign keys are enabled on every connection
// through DSN pragmas.
type SQLiteProvider struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteProvider opens the database at the given path, creating parent
// directories if needed. Returns ErrConnectionUnavailable if the file cannot
// be opened or reached.
func NewSQLiteProvider(path string) (*SQLiteProvider, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	// No busy_timeout pragma: contention must surface to the retry loop
	// instead of blocking inside the engine.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", ErrConnectionUnavailable, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: reaching database: %v", ErrConnectionUnavailable, err)
	}

	logger.Info("sqlite provider initialized", "path", path)
	return &SQLiteProvider{db: db, path: path, logger: logger}, nil
}

// Acquire returns a dedicated connection from the pool. The caller must Close
// it when its scope ends, whether the operation succeeded or failed.
func (p *SQLiteProvider) Acquire(ctx context.Context) (*sql.Conn, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: acquiring connection: %v", ErrConnectionUnavailable, err)
	}
	return conn, nil
}

// Path returns the database file location the provider was built with.
func (p *SQLiteProvider) Path() string {
	return p.path
}

// Close releases the underlying pool.
func (p *SQLiteProvider) Close() error {
	p.logger.Info("closing sqlite provider", "path", p.path)
	return p.db.Close()
}

var _ ConnectionProvider = (*SQLiteProvider)(nil)
