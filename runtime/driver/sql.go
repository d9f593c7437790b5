package driver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver
)

// ErrNoTransaction is returned when Commit or Rollback is called without an
// active transaction.
var ErrNoTransaction = errors.New("driver: no active transaction")

// SQLDatabase adapts a database/sql handle to the Database interface.
type SQLDatabase struct {
	db       *sql.DB
	provider string
}

// Open opens a database handle for the given provider and connection string.
func Open(provider, dsn string) (*SQLDatabase, error) {
	name := driverName(provider)
	if name == "" {
		return nil, fmt.Errorf("driver: unsupported provider: %s", provider)
	}
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, err
	}
	return &SQLDatabase{db: db, provider: provider}, nil
}

// OpenDB wraps an existing database/sql handle.
func OpenDB(provider string, db *sql.DB) *SQLDatabase {
	return &SQLDatabase{db: db, provider: provider}
}

// driverName maps provider names to registered database/sql driver names.
func driverName(provider string) string {
	switch provider {
	case "postgresql", "postgres":
		return "postgres"
	case "mysql":
		return "mysql"
	case "sqlite":
		return "sqlite3"
	default:
		return ""
	}
}

// Provider returns the provider name this database was opened with.
func (d *SQLDatabase) Provider() string { return d.provider }

// DB returns the underlying database/sql handle.
func (d *SQLDatabase) DB() *sql.DB { return d.db }

// Connect checks a dedicated connection out of the database/sql handle.
func (d *SQLDatabase) Connect(ctx context.Context) (Conn, error) {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &SQLConn{conn: conn}, nil
}

// Close closes the underlying handle.
func (d *SQLDatabase) Close() error { return d.db.Close() }

// SQLConn is a dedicated database/sql connection implementing Conn.
type SQLConn struct {
	conn *sql.Conn
	tx   *sql.Tx
}

// Execute runs a statement. Statements that return rows (SELECT, or
// anything with a RETURNING clause) are scanned into generic row maps;
// everything else reports affected rows and the last insert id.
func (c *SQLConn) Execute(ctx context.Context, query string, bindings []interface{}) (*Result, error) {
	if returnsRows(query) {
		var (
			rows *sql.Rows
			err  error
		)
		if c.tx != nil {
			rows, err = c.tx.QueryContext(ctx, query, bindings...)
		} else {
			rows, err = c.conn.QueryContext(ctx, query, bindings...)
		}
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		out, err := scanRows(rows)
		if err != nil {
			return nil, err
		}
		return &Result{Rows: out, RowCount: int64(len(out))}, nil
	}

	var (
		res sql.Result
		err error
	)
	if c.tx != nil {
		res, err = c.tx.ExecContext(ctx, query, bindings...)
	} else {
		res, err = c.conn.ExecContext(ctx, query, bindings...)
	}
	if err != nil {
		return nil, err
	}
	result := &Result{}
	if n, err := res.RowsAffected(); err == nil {
		result.RowCount = n
	}
	if id, err := res.LastInsertId(); err == nil {
		result.InsertID = id
	}
	return result, nil
}

// BeginTransaction starts a transaction scoped to this connection.
func (c *SQLConn) BeginTransaction(ctx context.Context) error {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	c.tx = tx
	return nil
}

// Commit commits the active transaction.
func (c *SQLConn) Commit() error {
	if c.tx == nil {
		return ErrNoTransaction
	}
	err := c.tx.Commit()
	c.tx = nil
	return err
}

// Rollback aborts the active transaction.
func (c *SQLConn) Rollback() error {
	if c.tx == nil {
		return ErrNoTransaction
	}
	err := c.tx.Rollback()
	c.tx = nil
	return err
}

// Close returns the connection to the database/sql handle.
func (c *SQLConn) Close() error {
	if c.tx != nil {
		_ = c.tx.Rollback()
		c.tx = nil
	}
	return c.conn.Close()
}

// returnsRows reports whether a statement produces a result set.
func returnsRows(query string) bool {
	q := strings.ToUpper(strings.TrimSpace(query))
	return strings.HasPrefix(q, "SELECT") || strings.Contains(q, "RETURNING")
}

// scanRows scans all rows into generic column-name keyed maps.
func scanRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			v := values[i]
			// Drivers hand back []byte for text columns; normalize to string.
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	if out == nil {
		out = []map[string]interface{}{}
	}
	return out, rows.Err()
}
