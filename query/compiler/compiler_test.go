package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eloquent "github.com/satishbabariya/eloquent-go"
	"github.com/satishbabariya/eloquent-go/query/ast"
)

func intp(n int) *int { return &n }

func selectState() *ast.QueryState {
	return &ast.QueryState{
		Table: "users",
		Wheres: []ast.WhereClause{
			{Type: ast.WhereBasic, Column: "age", Operator: ">", Value: 18},
		},
		Limit: intp(10),
	}
}

func TestCompileSelect(t *testing.T) {
	c := New("sqlite", 8)
	q, err := c.CompileSelect(selectState(), nil)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users" WHERE "age" > ? LIMIT 10`, q.SQL)
	assert.Equal(t, []interface{}{18}, q.Bindings)
}

func TestCompileSelectDoesNotMutateState(t *testing.T) {
	c := New("sqlite", 8)
	state := selectState()
	_, err := c.CompileSelect(state, &SoftDelete{Column: "deleted_at"})
	require.NoError(t, err)
	assert.Len(t, state.Wheres, 1)
}

func TestCompileSelectCacheHit(t *testing.T) {
	c := New("sqlite", 8)

	first, err := c.CompileSelect(selectState(), nil)
	require.NoError(t, err)
	second, err := c.CompileSelect(selectState(), nil)
	require.NoError(t, err)

	assert.Equal(t, first.SQL, second.SQL)
	stats := c.CacheStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCacheHitReturnsIndependentBindings(t *testing.T) {
	c := New("sqlite", 8)

	first, err := c.CompileSelect(selectState(), nil)
	require.NoError(t, err)
	first.Bindings[0] = "corrupted"

	second, err := c.CompileSelect(selectState(), nil)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{18}, second.Bindings)
}

func TestCacheKeyVariesWithStructureNotValues(t *testing.T) {
	c := New("sqlite", 8)

	a := selectState()
	_, err := c.CompileSelect(a, nil)
	require.NoError(t, err)

	// Same shape, different binding value: current keying treats it as a
	// distinct entry because values participate in canonicalization.
	b := selectState()
	b.Wheres[0].Value = 21
	q, err := c.CompileSelect(b, nil)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{21}, q.Bindings)

	// A structurally different query never collides.
	d := selectState()
	d.Distinct = true
	qd, err := c.CompileSelect(d, nil)
	require.NoError(t, err)
	assert.NotEqual(t, q.SQL, qd.SQL)
}

func TestSoftDeleteDefaultExcludesTrashed(t *testing.T) {
	c := New("sqlite", 8)
	q, err := c.CompileSelect(selectState(), &SoftDelete{Column: "deleted_at"})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users" WHERE "age" > ? AND "deleted_at" IS NULL LIMIT 10`, q.SQL)
	assert.Equal(t, []interface{}{18}, q.Bindings)
}

func TestSoftDeleteWithTrashed(t *testing.T) {
	c := New("sqlite", 8)
	state := selectState()
	state.Trashed = ast.WithTrashed
	q, err := c.CompileSelect(state, &SoftDelete{Column: "deleted_at"})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users" WHERE "age" > ? LIMIT 10`, q.SQL)
}

func TestSoftDeleteOnlyTrashed(t *testing.T) {
	c := New("sqlite", 8)
	state := selectState()
	state.Trashed = ast.OnlyTrashed
	q, err := c.CompileSelect(state, &SoftDelete{Column: "deleted_at"})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users" WHERE "age" > ? AND "deleted_at" IS NOT NULL LIMIT 10`, q.SQL)
}

func TestTrashedModesCacheSeparately(t *testing.T) {
	c := New("sqlite", 8)
	soft := &SoftDelete{Column: "deleted_at"}

	normal, err := c.CompileSelect(selectState(), soft)
	require.NoError(t, err)

	with := selectState()
	with.Trashed = ast.WithTrashed
	included, err := c.CompileSelect(with, soft)
	require.NoError(t, err)

	assert.NotEqual(t, normal.SQL, included.SQL)
}

func TestCompileSelectRejectsBadIdentifiers(t *testing.T) {
	c := New("sqlite", 8)

	state := selectState()
	state.Table = "users; DROP TABLE students"
	_, err := c.CompileSelect(state, nil)
	assert.ErrorIs(t, err, eloquent.ErrInvalidIdentifier)

	state = selectState()
	state.Wheres[0].Column = "age = 1 OR 1"
	_, err = c.CompileSelect(state, nil)
	assert.ErrorIs(t, err, eloquent.ErrInvalidIdentifier)

	state = selectState()
	state.Orders = []ast.OrderByClause{{Column: "name", Direction: "sideways"}}
	_, err = c.CompileSelect(state, nil)
	assert.ErrorIs(t, err, eloquent.ErrInvalidSortDirection)
}

func TestCompileSelectRejectsBadOperator(t *testing.T) {
	c := New("sqlite", 8)
	state := selectState()
	state.Wheres[0].Operator = "> 0; --"
	_, err := c.CompileSelect(state, nil)
	assert.ErrorIs(t, err, eloquent.ErrInvalidOperator)
}

func TestCompileSelectAcceptsCaseInsensitiveLike(t *testing.T) {
	c := New("sqlite", 8)
	state := &ast.QueryState{
		Table: "users",
		Wheres: []ast.WhereClause{
			{Type: ast.WhereBasic, Column: "name", Operator: "like", Value: "a%"},
		},
	}
	_, err := c.CompileSelect(state, nil)
	assert.NoError(t, err)
}

func TestCompileSelectRejectsBadLimit(t *testing.T) {
	c := New("sqlite", 8)
	state := selectState()
	state.Limit = intp(-1)
	_, err := c.CompileSelect(state, nil)
	assert.ErrorIs(t, err, eloquent.ErrInvalidLimit)
}

func TestBetweenRequiresTwoValues(t *testing.T) {
	c := New("sqlite", 8)
	state := &ast.QueryState{
		Table: "users",
		Wheres: []ast.WhereClause{
			{Type: ast.WhereBetween, Column: "age", Values: []interface{}{1}},
		},
	}
	_, err := c.CompileSelect(state, nil)
	require.ErrorIs(t, err, eloquent.ErrInvalidClause)
	assert.True(t, eloquent.IsValidation(err))

	var verr *eloquent.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, eloquent.CodeInvalidClause, verr.Code)
}

func TestCraftedValuesCannotCollideCacheKeys(t *testing.T) {
	c := New("sqlite", 8)

	two := &ast.QueryState{
		Table: "t",
		Wheres: []ast.WhereClause{
			{Type: ast.WhereBasic, Column: "c", Operator: "=", Value: "x"},
			{Type: ast.WhereBasic, Column: "c", Operator: "=", Value: "y", Boolean: ast.BooleanAnd},
		},
	}
	first, err := c.CompileSelect(two, nil)
	require.NoError(t, err)
	require.Equal(t, `SELECT * FROM "t" WHERE "c" = ? AND "c" = ?`, first.SQL)

	// A single clause whose string value mimics the serialized form of the
	// two-clause state must still compile to its own one-placeholder query.
	forged := &ast.QueryState{
		Table: "t",
		Wheres: []ast.WhereClause{
			{Type: ast.WhereBasic, Column: "c", Operator: "=", Value: "x:[]:AND:false:;basic:c:=:y"},
		},
	}
	second, err := c.CompileSelect(forged, nil)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "t" WHERE "c" = ?`, second.SQL)
	assert.Equal(t, []interface{}{"x:[]:AND:false:;basic:c:=:y"}, second.Bindings)
}

func TestStringValuesWithDelimitersCacheSeparately(t *testing.T) {
	c := New("sqlite", 8)

	// Two states that would flatten identically under naive delimiter
	// joining: the value boundary moves between clauses.
	a := &ast.QueryState{
		Table: "t",
		Wheres: []ast.WhereClause{
			{Type: ast.WhereRaw, SQL: "a = ?", Values: []interface{}{"v;raw"}},
		},
	}
	b := &ast.QueryState{
		Table: "t",
		Wheres: []ast.WhereClause{
			{Type: ast.WhereRaw, SQL: "a = ?", Values: []interface{}{"v"}},
			{Type: ast.WhereRaw, SQL: "raw", Boolean: ast.BooleanAnd},
		},
	}

	qa, err := c.CompileSelect(a, nil)
	require.NoError(t, err)
	qb, err := c.CompileSelect(b, nil)
	require.NoError(t, err)
	assert.NotEqual(t, qa.SQL, qb.SQL)
	assert.Equal(t, []interface{}{"v;raw"}, qa.Bindings)
}

func TestCompileCount(t *testing.T) {
	c := New("sqlite", 8)
	q, err := c.CompileCount(selectState(), &SoftDelete{Column: "deleted_at"})
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) AS aggregate FROM "users" WHERE "age" > ? AND "deleted_at" IS NULL`, q.SQL)
}

func TestCompileInsertValidatesColumns(t *testing.T) {
	c := New("sqlite", 8)

	q, err := c.CompileInsert("users", map[string]interface{}{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "users" ("name") VALUES (?)`, q.SQL)

	_, err = c.CompileInsert("users", map[string]interface{}{"name) VALUES ('x'); --": "ada"})
	assert.ErrorIs(t, err, eloquent.ErrInvalidIdentifier)
}

func TestCompileUpdateAndDelete(t *testing.T) {
	c := New("postgres", 8)
	wheres := []ast.WhereClause{{Type: ast.WhereBasic, Column: "id", Operator: "=", Value: 7}}

	up, err := c.CompileUpdate("users", map[string]interface{}{"name": "ada"}, wheres)
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "users" SET "name" = $1 WHERE "id" = $2`, up.SQL)
	assert.Equal(t, []interface{}{"ada", 7}, up.Bindings)

	del, err := c.CompileDelete("users", wheres)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "users" WHERE "id" = $1`, del.SQL)
	assert.Equal(t, []interface{}{7}, del.Bindings)
}

func TestClearCache(t *testing.T) {
	c := New("sqlite", 8)
	_, err := c.CompileSelect(selectState(), nil)
	require.NoError(t, err)
	c.ClearCache()
	assert.Equal(t, 0, c.CacheStats().Size)
}
