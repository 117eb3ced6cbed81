// Package store provides layered persistence over an embedded SQLite file.
//
// # Architecture
//
// Three access styles sit on top of one connection provider, each depending
// only on the layer beneath it:
//
//   - ConnectionProvider: opens the database and hands out scoped
//     connections. The only component that knows how a physical connection
//     is made.
//   - DataAccess (Access): store-agnostic primitives over one bound
//     connection: connection-state validation, table-existence check,
//     read-only queries, and the retrying write path. Store-specific error
//     classification and metadata lookup come from a dialect supplied by
//     composition.
//   - Factory: owns a provider, initializes schema, and exposes coarse
//     business operations (create user, add chat message, composite
//     register-with-message transactions).
//   - Repository: typed CRUD over User and ChatMessage, hiding row shape.
//
// Callers pick exactly one layer; the layer beneath supplies the concurrency
// guarantees.
//
// # Write path
//
// SQLite allows a single writer and rejects a second concurrent one with
// SQLITE_BUSY instead of queuing it. Every mutating statement runs inside a
// transaction through Access.WithRetry, which rolls back on a busy signal,
// sleeps with exponential backoff per RetryPolicy, and tries again up to
// MaxAttempts. The transaction is always rolled back before sleeping, so the
// write lock is never held during the wait. Reads never retry.
//
// # SQLite configuration
//
// Connections are opened with DSN pragmas:
//
//	_pragma=journal_mode(WAL)
//	_pragma=foreign_keys(1)
//
// busy_timeout is deliberately left at zero so contention surfaces to the
// retry loop instead of blocking inside the engine.
//
// # Error handling
//
// Common errors:
//
//   - ErrConnectionUnavailable: no usable connection bound
//   - ErrNotFound: requested entity does not exist
//   - ErrSchemaMissing: required table absent, InitSchema never ran
//   - ErrIntegrity: constraint violation, never retried
//   - LockTimeoutError: contention persisted through the retry budget;
//     carries the attempt count
//
// All methods accept context.Context. Retry sleeps are bounded by the policy
// alone; no cancellation token interrupts a retry in progress.
//
// # Testing
//
// Use NewSQLiteProvider with a t.TempDir() path for integration tests. The
// retry loop itself is exercised directly with a stub dialect.
package store
