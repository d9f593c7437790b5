// Package client provides the runtime connection manager. Connections are
// registered on an explicit Manager built at startup and threaded through
// the builder and relation engine; there is no process-wide registry.
package client

import (
	"context"
	"fmt"
	"sync"

	eloquent "github.com/satishbabariya/eloquent-go"
	"github.com/satishbabariya/eloquent-go/internal/debug"
	"github.com/satishbabariya/eloquent-go/query/compiler"
	"github.com/satishbabariya/eloquent-go/query/sqlgen"
	"github.com/satishbabariya/eloquent-go/runtime/driver"
	"github.com/satishbabariya/eloquent-go/runtime/pool"
)

// DefaultPoolSize bounds a connection's pool when the config does not.
const DefaultPoolSize = 10

// Config describes one named connection.
type Config struct {
	Provider  string // "sqlite", "postgres"/"postgresql", or "mysql"
	DSN       string
	PoolSize  int // maximum pooled driver connections
	CacheSize int // compiled-query cache capacity
}

// Connection couples a database, a bounded connection pool, and a
// dialect-specific compiler.
type Connection struct {
	name     string
	provider string
	db       driver.Database
	pool     *pool.Pool[driver.Conn]
	compiler *compiler.Compiler
}

func newConnection(name string, cfg Config, db driver.Database) *Connection {
	size := cfg.PoolSize
	if size <= 0 {
		size = DefaultPoolSize
	}
	return &Connection{
		name:     name,
		provider: cfg.Provider,
		db:       db,
		compiler: compiler.New(cfg.Provider, cfg.CacheSize),
		pool: pool.New(size,
			func(ctx context.Context) (driver.Conn, error) { return db.Connect(ctx) },
			func(c driver.Conn) error { return c.Close() },
		),
	}
}

// Name returns the connection's registered name.
func (c *Connection) Name() string { return c.name }

// Provider returns the dialect provider name.
func (c *Connection) Provider() string { return c.provider }

// Compiler returns the compiler for this connection's dialect.
func (c *Connection) Compiler() *compiler.Compiler { return c.compiler }

// PoolStats returns the connection pool occupancy.
func (c *Connection) PoolStats() pool.Stats { return c.pool.Stats() }

// Run executes a compiled query on a pooled connection, releasing it when
// the statement finishes.
func (c *Connection) Run(ctx context.Context, q *sqlgen.Query) (*driver.Result, error) {
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer c.pool.Release(conn)
	debug.Debug("client: execute", "connection", c.name, "sql", q.SQL)
	return conn.Execute(ctx, q.SQL, q.Bindings)
}

// Tx runs fn inside a transaction pinned to a single pooled connection.
// fn's error rolls the transaction back; otherwise it is committed.
func (c *Connection) Tx(ctx context.Context, fn func(tx *Tx) error) error {
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer c.pool.Release(conn)

	if err := conn.BeginTransaction(ctx); err != nil {
		return err
	}
	if err := fn(&Tx{conn: conn}); err != nil {
		if rbErr := conn.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	return conn.Commit()
}

// Drain drains the connection pool, destroying every pooled connection and
// rejecting pending acquirers.
func (c *Connection) Drain() error { return c.pool.Drain() }

// Tx is a transaction handle scoped to one driver connection.
type Tx struct {
	conn driver.Conn
}

// Run executes a compiled query on the transaction's connection.
func (t *Tx) Run(ctx context.Context, q *sqlgen.Query) (*driver.Result, error) {
	return t.conn.Execute(ctx, q.SQL, q.Bindings)
}

// Manager is the explicit registry of named connections, created at startup
// and torn down with Shutdown.
type Manager struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	defaultName string
}

// NewManager creates an empty connection manager.
func NewManager() *Manager {
	return &Manager{connections: make(map[string]*Connection)}
}

// Register opens a database for cfg and registers it under name. The first
// registered connection becomes the default.
func (m *Manager) Register(name string, cfg Config) (*Connection, error) {
	db, err := driver.Open(cfg.Provider, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return m.RegisterDatabase(name, cfg, db), nil
}

// RegisterDatabase registers a connection over an already-open database.
func (m *Manager) RegisterDatabase(name string, cfg Config, db driver.Database) *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn := newConnection(name, cfg, db)
	m.connections[name] = conn
	if m.defaultName == "" {
		m.defaultName = name
	}
	return conn
}

// Connection resolves a named connection.
func (m *Manager) Connection(name string) (*Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.connections[name]
	if !ok {
		return nil, &eloquent.ConnectionError{Name: name}
	}
	return conn, nil
}

// Default resolves the default connection.
func (m *Manager) Default() (*Connection, error) {
	m.mu.RLock()
	name := m.defaultName
	m.mu.RUnlock()
	if name == "" {
		return nil, &eloquent.ConnectionError{Name: "(default)"}
	}
	return m.Connection(name)
}

// SetDefault changes the default connection name.
func (m *Manager) SetDefault(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.connections[name]; !ok {
		return &eloquent.ConnectionError{Name: name}
	}
	m.defaultName = name
	return nil
}

// Shutdown drains every pool and closes every database.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	connections := m.connections
	m.connections = make(map[string]*Connection)
	m.defaultName = ""
	m.mu.Unlock()

	var firstErr error
	for _, conn := range connections {
		if err := conn.Drain(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := conn.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
