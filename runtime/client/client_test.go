package client

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eloquent "github.com/satishbabariya/eloquent-go"
	"github.com/satishbabariya/eloquent-go/query/sqlgen"
	"github.com/satishbabariya/eloquent-go/runtime/driver"
)

func mockConnection(t *testing.T) (*Connection, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m := NewManager()
	conn := m.RegisterDatabase("test", Config{Provider: "sqlite", PoolSize: 1}, driver.OpenDB("sqlite", db))
	return conn, mock
}

func TestManagerRegisterRejectsUnknownProvider(t *testing.T) {
	m := NewManager()
	_, err := m.Register("bad", Config{Provider: "oracle", DSN: "dsn"})
	assert.Error(t, err)
}

func TestManagerResolvesConnections(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := NewManager()
	first := m.RegisterDatabase("first", Config{Provider: "sqlite"}, driver.OpenDB("sqlite", db))

	got, err := m.Connection("first")
	require.NoError(t, err)
	assert.Same(t, first, got)
	assert.Equal(t, "first", got.Name())
	assert.Equal(t, "sqlite", got.Provider())

	// The first registration becomes the default.
	def, err := m.Default()
	require.NoError(t, err)
	assert.Same(t, first, def)
}

func TestManagerUnknownConnection(t *testing.T) {
	m := NewManager()
	_, err := m.Connection("missing")
	assert.ErrorIs(t, err, eloquent.ErrUnknownConnection)

	var cerr *eloquent.ConnectionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "missing", cerr.Name)

	_, err = m.Default()
	assert.ErrorIs(t, err, eloquent.ErrUnknownConnection)

	assert.ErrorIs(t, m.SetDefault("missing"), eloquent.ErrUnknownConnection)
}

func TestManagerSetDefault(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := NewManager()
	m.RegisterDatabase("a", Config{Provider: "sqlite"}, driver.OpenDB("sqlite", db))
	b := m.RegisterDatabase("b", Config{Provider: "sqlite"}, driver.OpenDB("sqlite", db))

	require.NoError(t, m.SetDefault("b"))
	def, err := m.Default()
	require.NoError(t, err)
	assert.Same(t, b, def)
}

func TestConnectionRunExecutesAndReleases(t *testing.T) {
	conn, mock := mockConnection(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT * FROM "users" WHERE "age" > ?`).
		WithArgs(18).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	res, err := conn.Run(ctx, &sqlgen.Query{
		SQL:      `SELECT * FROM "users" WHERE "age" > ?`,
		Bindings: []interface{}{18},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Rows[0]["id"])
	assert.NoError(t, mock.ExpectationsWereMet())

	// The pooled connection went back after the statement.
	stats := conn.PoolStats()
	assert.Equal(t, 0, stats.InUse)
	assert.Equal(t, 1, stats.Idle)
}

func TestConnectionTxCommits(t *testing.T) {
	conn, mock := mockConnection(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "users" SET "name" = ?`).
		WithArgs("ada").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := conn.Tx(ctx, func(tx *Tx) error {
		_, err := tx.Run(ctx, &sqlgen.Query{
			SQL:      `UPDATE "users" SET "name" = ?`,
			Bindings: []interface{}{"ada"},
		})
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectionTxRollsBackOnError(t *testing.T) {
	conn, mock := mockConnection(t)
	ctx := context.Background()
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := conn.Tx(ctx, func(tx *Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShutdownDrainsAndClears(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	m := NewManager()
	m.RegisterDatabase("a", Config{Provider: "sqlite"}, driver.OpenDB("sqlite", db))
	require.NoError(t, m.Shutdown())

	_, err = m.Connection("a")
	assert.ErrorIs(t, err, eloquent.ErrUnknownConnection)
	_, err = m.Default()
	assert.Error(t, err)
}

func TestConnectionCompilerMatchesProvider(t *testing.T) {
	conn, _ := mockConnection(t)
	assert.Equal(t, "sqlite", conn.Compiler().Generator().Name())
}
