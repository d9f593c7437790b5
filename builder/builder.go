// Package builder provides the fluent query surface. A Builder accumulates
// query state, hands it to the connection's compiler, and runs the result
// on the connection's pool. Model builders additionally hydrate entities
// and batch-load their relations.
package builder

import (
	"context"
	"fmt"
	"strconv"
	"time"

	eloquent "github.com/satishbabariya/eloquent-go"
	"github.com/satishbabariya/eloquent-go/query/ast"
	"github.com/satishbabariya/eloquent-go/query/compiler"
	"github.com/satishbabariya/eloquent-go/query/sqlgen"
	"github.com/satishbabariya/eloquent-go/relation"
	"github.com/satishbabariya/eloquent-go/runtime/client"
	"github.com/satishbabariya/eloquent-go/runtime/driver"
)

// Runner executes compiled queries. Both *client.Connection and *client.Tx
// satisfy it, so a builder can run pooled or pinned to a transaction.
type Runner interface {
	Run(ctx context.Context, q *sqlgen.Query) (*driver.Result, error)
}

// Builder accumulates query state for one table. Methods mutate the
// receiver and return it for chaining; use Clone to fork.
type Builder struct {
	conn   *client.Connection
	runner Runner
	state  *ast.QueryState
	soft   *compiler.SoftDelete

	registry *relation.Registry
	typeName string
	hydrate  func(row map[string]interface{}) relation.Entity
	with     []string

	err error
}

// Table creates a builder for a raw table on the given connection.
func Table(conn *client.Connection, name string) *Builder {
	return &Builder{
		conn:   conn,
		runner: conn,
		state:  &ast.QueryState{Table: name},
	}
}

// Model creates a builder for a registered entity type: its table,
// soft-delete policy, and hydrator come from the registry, and Get results
// can eager-load relations declared there.
func Model(conn *client.Connection, registry *relation.Registry, typeName string) (*Builder, error) {
	t, ok := registry.Type(typeName)
	if !ok {
		return nil, &eloquent.EntityTypeError{Name: typeName}
	}
	b := Table(conn, t.Table)
	b.registry = registry
	b.typeName = typeName
	b.hydrate = t.New
	if t.SoftDeleteColumn != "" {
		b.soft = &compiler.SoftDelete{Column: t.SoftDeleteColumn}
	}
	return b, nil
}

// On reruns this builder's statements on tx instead of the pool.
func (b *Builder) On(tx *client.Tx) *Builder {
	b.runner = tx
	return b
}

// SoftDeletes enables soft-delete scoping on the given timestamp column.
func (b *Builder) SoftDeletes(column string) *Builder {
	b.soft = &compiler.SoftDelete{Column: column}
	return b
}

// Clone returns an independent copy of the builder.
func (b *Builder) Clone() *Builder {
	c := *b
	c.state = b.state.Clone()
	if b.soft != nil {
		soft := *b.soft
		c.soft = &soft
	}
	c.with = append([]string(nil), b.with...)
	return &c
}

// Select sets the projected columns.
func (b *Builder) Select(columns ...string) *Builder {
	b.state.Columns = append([]string(nil), columns...)
	return b
}

// Distinct marks the query DISTINCT.
func (b *Builder) Distinct() *Builder {
	b.state.Distinct = true
	return b
}

// Where adds a basic AND clause. Two arguments mean equality; three mean
// (column, operator, value).
func (b *Builder) Where(column string, args ...interface{}) *Builder {
	return b.addBasic(column, ast.BooleanAnd, args)
}

// OrWhere adds a basic OR clause with the same argument forms as Where.
func (b *Builder) OrWhere(column string, args ...interface{}) *Builder {
	return b.addBasic(column, ast.BooleanOr, args)
}

func (b *Builder) addBasic(column string, boolean string, args []interface{}) *Builder {
	op := "="
	var value interface{}
	switch len(args) {
	case 1:
		value = args[0]
	case 2:
		s, ok := args[0].(string)
		if !ok {
			b.fail(fmt.Errorf("eloquent: where operator for %q must be a string", column))
			return b
		}
		op, value = s, args[1]
	default:
		b.fail(fmt.Errorf("eloquent: where on %q takes (value) or (operator, value), got %d args", column, len(args)))
		return b
	}
	b.state.Wheres = append(b.state.Wheres, ast.WhereClause{
		Type: ast.WhereBasic, Column: column, Operator: op, Value: value, Boolean: boolean,
	})
	return b
}

// WhereIn adds an IN clause.
func (b *Builder) WhereIn(column string, values []interface{}) *Builder {
	b.state.Wheres = append(b.state.Wheres, ast.WhereClause{
		Type: ast.WhereIn, Column: column, Values: values, Boolean: ast.BooleanAnd,
	})
	return b
}

// WhereNotIn adds a NOT IN clause.
func (b *Builder) WhereNotIn(column string, values []interface{}) *Builder {
	b.state.Wheres = append(b.state.Wheres, ast.WhereClause{
		Type: ast.WhereIn, Column: column, Values: values, Boolean: ast.BooleanAnd, Not: true,
	})
	return b
}

// WhereNull adds an IS NULL clause.
func (b *Builder) WhereNull(column string) *Builder {
	b.state.Wheres = append(b.state.Wheres, ast.WhereClause{
		Type: ast.WhereNull, Column: column, Boolean: ast.BooleanAnd,
	})
	return b
}

// WhereNotNull adds an IS NOT NULL clause.
func (b *Builder) WhereNotNull(column string) *Builder {
	b.state.Wheres = append(b.state.Wheres, ast.WhereClause{
		Type: ast.WhereNull, Column: column, Boolean: ast.BooleanAnd, Not: true,
	})
	return b
}

// WhereBetween adds a BETWEEN clause.
func (b *Builder) WhereBetween(column string, min, max interface{}) *Builder {
	b.state.Wheres = append(b.state.Wheres, ast.WhereClause{
		Type: ast.WhereBetween, Column: column, Values: []interface{}{min, max}, Boolean: ast.BooleanAnd,
	})
	return b
}

// WhereNotBetween adds a NOT BETWEEN clause.
func (b *Builder) WhereNotBetween(column string, min, max interface{}) *Builder {
	b.state.Wheres = append(b.state.Wheres, ast.WhereClause{
		Type: ast.WhereBetween, Column: column, Values: []interface{}{min, max}, Boolean: ast.BooleanAnd, Not: true,
	})
	return b
}

// WhereRaw adds a raw SQL fragment; each ? consumes one binding. The
// fragment is the caller's responsibility and bypasses sanitization.
func (b *Builder) WhereRaw(sql string, bindings ...interface{}) *Builder {
	b.state.Wheres = append(b.state.Wheres, ast.WhereClause{
		Type: ast.WhereRaw, SQL: sql, Values: bindings, Boolean: ast.BooleanAnd,
	})
	return b
}

// OrWhereRaw adds a raw SQL fragment connected with OR.
func (b *Builder) OrWhereRaw(sql string, bindings ...interface{}) *Builder {
	b.state.Wheres = append(b.state.Wheres, ast.WhereClause{
		Type: ast.WhereRaw, SQL: sql, Values: bindings, Boolean: ast.BooleanOr,
	})
	return b
}

// Join adds an INNER JOIN on first op second.
func (b *Builder) Join(table, first, operator, second string) *Builder {
	return b.addJoin(ast.InnerJoin, table, first, operator, second)
}

// LeftJoin adds a LEFT JOIN.
func (b *Builder) LeftJoin(table, first, operator, second string) *Builder {
	return b.addJoin(ast.LeftJoin, table, first, operator, second)
}

// RightJoin adds a RIGHT JOIN.
func (b *Builder) RightJoin(table, first, operator, second string) *Builder {
	return b.addJoin(ast.RightJoin, table, first, operator, second)
}

// CrossJoin adds a CROSS JOIN with no condition.
func (b *Builder) CrossJoin(table string) *Builder {
	b.state.Joins = append(b.state.Joins, ast.JoinClause{Type: ast.CrossJoin, Table: table})
	return b
}

func (b *Builder) addJoin(t ast.JoinType, table, first, operator, second string) *Builder {
	b.state.Joins = append(b.state.Joins, ast.JoinClause{
		Type: t, Table: table, First: first, Operator: operator, Second: second,
	})
	return b
}

// OrderBy adds an ordering; direction is "asc" or "desc".
func (b *Builder) OrderBy(column, direction string) *Builder {
	b.state.Orders = append(b.state.Orders, ast.OrderByClause{Column: column, Direction: direction})
	return b
}

// OrderByDesc adds a descending ordering.
func (b *Builder) OrderByDesc(column string) *Builder {
	return b.OrderBy(column, "desc")
}

// Limit caps the row count.
func (b *Builder) Limit(n int) *Builder {
	b.state.Limit = &n
	return b
}

// Offset skips the first n rows.
func (b *Builder) Offset(n int) *Builder {
	b.state.Offset = &n
	return b
}

// WithTrashed includes soft-deleted rows.
func (b *Builder) WithTrashed() *Builder {
	b.state.Trashed = ast.WithTrashed
	return b
}

// OnlyTrashed restricts results to soft-deleted rows.
func (b *Builder) OnlyTrashed() *Builder {
	b.state.Trashed = ast.OnlyTrashed
	return b
}

// With queues relation paths for eager loading; dotted paths load nested
// relations. Only model builders can eager-load.
func (b *Builder) With(paths ...string) *Builder {
	b.with = append(b.with, paths...)
	return b
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// ToSQL compiles the SELECT without executing it.
func (b *Builder) ToSQL() (*sqlgen.Query, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.conn.Compiler().CompileSelect(b.state, b.soft)
}

// Rows executes the SELECT and returns raw row maps.
func (b *Builder) Rows(ctx context.Context) ([]map[string]interface{}, error) {
	q, err := b.ToSQL()
	if err != nil {
		return nil, err
	}
	res, err := b.runner.Run(ctx, q)
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

// Get executes the SELECT, hydrates entities, and eager-loads any queued
// relation paths.
func (b *Builder) Get(ctx context.Context) ([]relation.Entity, error) {
	rows, err := b.Rows(ctx)
	if err != nil {
		return nil, err
	}
	hydrate := b.hydrate
	if hydrate == nil {
		hydrate = func(row map[string]interface{}) relation.Entity { return relation.NewRecord(row) }
	}
	entities := make([]relation.Entity, 0, len(rows))
	for _, row := range rows {
		entities = append(entities, hydrate(row))
	}
	if len(b.with) > 0 {
		if b.registry == nil || b.typeName == "" {
			return nil, &eloquent.RelationError{EntityType: b.state.Table, Relation: b.with[0]}
		}
		loader := relation.NewLoader(b.registry)
		src := &connSource{conn: b.conn, runner: b.runner}
		if err := loader.Load(ctx, src, b.typeName, entities, b.with); err != nil {
			return nil, err
		}
	}
	return entities, nil
}

// First returns the first matching entity, or nil when nothing matched.
func (b *Builder) First(ctx context.Context) (relation.Entity, error) {
	entities, err := b.Clone().Limit(1).Get(ctx)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return entities[0], nil
}

// Count executes a COUNT(*) aggregate over the builder's predicates.
func (b *Builder) Count(ctx context.Context) (int64, error) {
	if b.err != nil {
		return 0, b.err
	}
	q, err := b.conn.Compiler().CompileCount(b.state, b.soft)
	if err != nil {
		return 0, err
	}
	res, err := b.runner.Run(ctx, q)
	if err != nil {
		return 0, err
	}
	if len(res.Rows) == 0 {
		return 0, nil
	}
	return toInt64(res.Rows[0]["aggregate"])
}

// Insert inserts one row and returns the driver's last insert id, when the
// driver reports one.
func (b *Builder) Insert(ctx context.Context, values map[string]interface{}) (int64, error) {
	if b.err != nil {
		return 0, b.err
	}
	q, err := b.conn.Compiler().CompileInsert(b.state.Table, values)
	if err != nil {
		return 0, err
	}
	res, err := b.runner.Run(ctx, q)
	if err != nil {
		return 0, err
	}
	return res.InsertID, nil
}

// Update sets values on every matching row and returns the affected count.
func (b *Builder) Update(ctx context.Context, values map[string]interface{}) (int64, error) {
	if b.err != nil {
		return 0, b.err
	}
	q, err := b.conn.Compiler().CompileUpdate(b.state.Table, values, b.state.Wheres)
	if err != nil {
		return 0, err
	}
	res, err := b.runner.Run(ctx, q)
	if err != nil {
		return 0, err
	}
	return res.RowCount, nil
}

// Delete removes matching rows. With a soft-delete policy it stamps the
// policy column instead of deleting; use ForceDelete to bypass that.
func (b *Builder) Delete(ctx context.Context) (int64, error) {
	if b.soft != nil && b.soft.Column != "" && b.state.Trashed == ast.ExcludeTrashed {
		return b.Update(ctx, map[string]interface{}{b.soft.Column: time.Now().UTC()})
	}
	return b.ForceDelete(ctx)
}

// ForceDelete removes matching rows regardless of soft-delete policy.
func (b *Builder) ForceDelete(ctx context.Context) (int64, error) {
	if b.err != nil {
		return 0, b.err
	}
	q, err := b.conn.Compiler().CompileDelete(b.state.Table, b.state.Wheres)
	if err != nil {
		return 0, err
	}
	res, err := b.runner.Run(ctx, q)
	if err != nil {
		return 0, err
	}
	return res.RowCount, nil
}

// Restore clears the soft-delete stamp on matching trashed rows.
func (b *Builder) Restore(ctx context.Context) (int64, error) {
	if b.soft == nil || b.soft.Column == "" {
		return 0, fmt.Errorf("eloquent: restore requires a soft-delete column on %q", b.state.Table)
	}
	return b.Update(ctx, map[string]interface{}{b.soft.Column: nil})
}

// toInt64 normalizes the driver-dependent aggregate value.
func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("eloquent: unexpected aggregate type %T", v)
	}
}
