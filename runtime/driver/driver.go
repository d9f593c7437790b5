// Package driver defines the database driver contract consumed by the query
// core, together with a database/sql-backed implementation.
package driver

import "context"

// Result is the outcome of executing a statement.
type Result struct {
	Rows     []map[string]interface{}
	RowCount int64
	InsertID int64
}

// Conn is a single database connection. Ownership transfers fully to the
// acquirer while it is checked out of the pool.
type Conn interface {
	// Execute runs a statement with ordered bindings. SELECTs populate
	// Rows; mutations populate RowCount and, where the driver supports
	// it, InsertID. Driver errors are surfaced unmodified.
	Execute(ctx context.Context, query string, bindings []interface{}) (*Result, error)

	// BeginTransaction starts a transaction on this connection.
	BeginTransaction(ctx context.Context) error

	// Commit commits the active transaction.
	Commit() error

	// Rollback aborts the active transaction.
	Rollback() error

	// Close releases the underlying connection.
	Close() error
}

// Database produces connections for the pool factory.
type Database interface {
	Connect(ctx context.Context) (Conn, error)
	Close() error
}
