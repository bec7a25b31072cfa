// Package database manages the SQLite store backing the audit trail.
//
// It wraps database/sql with connection pragmas tuned for SQLite's
// single-writer model, embedded schema migrations, and health checks.
package database
