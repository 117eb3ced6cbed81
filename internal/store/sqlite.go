// ABOUTME: SQLite-specific error classification and catalog lookup
// ABOUTME: Fills the dialect variation points of the generic access layer

package store

import (
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// sqliteDialect classifies driver errors by result code, with a string match
// as fallback for errors that reach us already flattened.
type sqliteDialect struct{}

// IsTransient reports whether the error is SQLite signaling that another
// writer currently holds the lock. These clear shortly and are worth
// retrying.
func (sqliteDialect) IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_BUSY_SNAPSHOT:
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}

// IsConstraint reports whether the error is a constraint violation. Retrying
// these would not change the outcome.
func (sqliteDialect) IsConstraint(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT,
			sqlite3.SQLITE_CONSTRAINT_UNIQUE,
			sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY,
			sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY,
			sqlite3.SQLITE_CONSTRAINT_NOTNULL,
			sqlite3.SQLITE_CONSTRAINT_CHECK:
			return true
		}
	}
	return strings.Contains(err.Error(), "constraint failed")
}

// IsMissingTable reports whether the error means a required table was never
// created.
func (sqliteDialect) IsMissingTable(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "no such table")
}

// TableExistsQuery returns the catalog query used by TableExists.
func (sqliteDialect) TableExistsQuery() string {
	return `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`
}

var _ dialect = sqliteDialect{}
