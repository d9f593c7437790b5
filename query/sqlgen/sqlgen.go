// Package sqlgen renders a query AST into SQL for a specific database
// provider. Identifiers are assumed to be sanitized by the caller; every
// value travels through a bound parameter. Dialects differ only in
// identifier quoting and placeholder emission.
package sqlgen

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/satishbabariya/eloquent-go/query/ast"
)

// Query is a compiled SQL statement with its ordered bindings. The Nth
// placeholder in SQL always corresponds to Bindings[N-1].
type Query struct {
	SQL      string
	Bindings []interface{}
}

// Clone returns a copy of the query with an independent bindings slice.
func (q *Query) Clone() *Query {
	c := &Query{SQL: q.SQL}
	if q.Bindings != nil {
		c.Bindings = append([]interface{}(nil), q.Bindings...)
	}
	return c
}

// Generator renders AST snapshots into SQL for one provider.
type Generator struct {
	name        string
	quote       func(segment string) string
	placeholder func(n int) string
}

// NewGenerator creates a SQL generator for the given provider. The sqlite
// generator is the reference dialect (double-quoted identifiers, positional
// "?" placeholders); postgres overrides placeholder emission and mysql
// overrides identifier quoting.
func NewGenerator(provider string) *Generator {
	switch provider {
	case "postgresql", "postgres":
		return &Generator{
			name:        "postgres",
			quote:       func(s string) string { return `"` + s + `"` },
			placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
		}
	case "mysql":
		return &Generator{
			name:        "mysql",
			quote:       func(s string) string { return "`" + s + "`" },
			placeholder: func(int) string { return "?" },
		}
	default:
		return &Generator{
			name:        "sqlite",
			quote:       func(s string) string { return `"` + s + `"` },
			placeholder: func(int) string { return "?" },
		}
	}
}

// Name returns the provider name, used as the grammar identity in cache keys.
func (g *Generator) Name() string { return g.name }

// wrap quotes a sanitized identifier, handling "table.column" qualification
// and the "*" sentinel.
func (g *Generator) wrap(ident string) string {
	if ident == "*" {
		return ident
	}
	if i := strings.IndexByte(ident, '.'); i >= 0 {
		return g.quote(ident[:i]) + "." + g.quote(ident[i+1:])
	}
	return g.quote(ident)
}

// renderer accumulates SQL fragments and bindings with a running
// placeholder counter, keeping emission order and binding order aligned.
type renderer struct {
	g        *Generator
	parts    []string
	bindings []interface{}
	n        int
}

func (r *renderer) add(part string) { r.parts = append(r.parts, part) }

// bind appends a binding and returns its placeholder.
func (r *renderer) bind(v interface{}) string {
	r.n++
	r.bindings = append(r.bindings, v)
	return r.g.placeholder(r.n)
}

func (r *renderer) query() *Query {
	return &Query{SQL: strings.Join(r.parts, " "), Bindings: r.bindings}
}

// GenerateSelect renders a SELECT statement from the given state.
func (g *Generator) GenerateSelect(state *ast.QueryState) *Query {
	r := &renderer{g: g}

	sel := "SELECT"
	if state.Distinct {
		sel += " DISTINCT"
	}
	if len(state.Columns) == 0 {
		sel += " *"
	} else {
		cols := make([]string, len(state.Columns))
		for i, c := range state.Columns {
			cols[i] = g.wrap(c)
		}
		sel += " " + strings.Join(cols, ", ")
	}
	r.add(sel)
	r.add("FROM " + g.wrap(state.Table))

	for _, j := range state.Joins {
		if j.Type == ast.CrossJoin {
			r.add("CROSS JOIN " + g.wrap(j.Table))
			continue
		}
		r.add(fmt.Sprintf("%s JOIN %s ON %s %s %s",
			j.Type, g.wrap(j.Table), g.wrap(j.First), j.Operator, g.wrap(j.Second)))
	}

	g.renderWheres(r, state.Wheres)

	if len(state.Orders) > 0 {
		orders := make([]string, len(state.Orders))
		for i, o := range state.Orders {
			orders[i] = g.wrap(o.Column) + " " + o.Direction
		}
		r.add("ORDER BY " + strings.Join(orders, ", "))
	}
	if state.Limit != nil {
		r.add("LIMIT " + strconv.Itoa(*state.Limit))
	}
	if state.Offset != nil {
		r.add("OFFSET " + strconv.Itoa(*state.Offset))
	}
	return r.query()
}

// renderWheres renders the where list sequentially. The first clause is
// prefixed WHERE; every later clause is prefixed by its own boolean. Each
// clause appends its bindings as it renders, so binding order matches
// placeholder order left to right.
func (g *Generator) renderWheres(r *renderer, wheres []ast.WhereClause) {
	for i, w := range wheres {
		prefix := "WHERE"
		if i > 0 {
			prefix = w.Boolean
			if prefix == "" {
				prefix = ast.BooleanAnd
			}
		}
		r.add(prefix + " " + g.renderWhere(r, w))
	}
}

// renderWhere renders one clause body and appends its bindings.
func (g *Generator) renderWhere(r *renderer, w ast.WhereClause) string {
	switch w.Type {
	case ast.WhereIn:
		op := "IN"
		if w.Not {
			op = "NOT IN"
		}
		if len(w.Values) == 0 {
			// Empty IN matches nothing; empty NOT IN matches everything.
			if w.Not {
				return "1 = 1"
			}
			return "0 = 1"
		}
		placeholders := make([]string, len(w.Values))
		for i, v := range w.Values {
			placeholders[i] = r.bind(v)
		}
		return fmt.Sprintf("%s %s (%s)", g.wrap(w.Column), op, strings.Join(placeholders, ", "))
	case ast.WhereNull:
		if w.Not {
			return g.wrap(w.Column) + " IS NOT NULL"
		}
		return g.wrap(w.Column) + " IS NULL"
	case ast.WhereBetween:
		op := "BETWEEN"
		if w.Not {
			op = "NOT BETWEEN"
		}
		lo := r.bind(w.Values[0])
		hi := r.bind(w.Values[1])
		return fmt.Sprintf("%s %s %s AND %s", g.wrap(w.Column), op, lo, hi)
	case ast.WhereRaw:
		// Raw fragments bypass the sanitizer by explicit caller opt-in.
		sql := w.SQL
		for _, v := range w.Values {
			sql = strings.Replace(sql, "?", r.bind(v), 1)
		}
		return sql
	default: // ast.WhereBasic
		return fmt.Sprintf("%s %s %s", g.wrap(w.Column), w.Operator, r.bind(w.Value))
	}
}

// GenerateCount renders a COUNT(*) aggregate over the state's table, joins,
// and predicates. Columns, ordering, and limits are ignored.
func (g *Generator) GenerateCount(state *ast.QueryState) *Query {
	r := &renderer{g: g}
	r.add("SELECT COUNT(*) AS aggregate")
	r.add("FROM " + g.wrap(state.Table))
	for _, j := range state.Joins {
		if j.Type == ast.CrossJoin {
			r.add("CROSS JOIN " + g.wrap(j.Table))
			continue
		}
		r.add(fmt.Sprintf("%s JOIN %s ON %s %s %s",
			j.Type, g.wrap(j.Table), g.wrap(j.First), j.Operator, g.wrap(j.Second)))
	}
	g.renderWheres(r, state.Wheres)
	return r.query()
}

// GenerateInsert renders an INSERT statement. Columns are emitted in sorted
// order so the same values map always yields the same SQL.
func (g *Generator) GenerateInsert(table string, values map[string]interface{}) *Query {
	r := &renderer{g: g}
	cols := sortedKeys(values)

	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = g.wrap(col)
		placeholders[i] = r.bind(values[col])
	}
	r.parts = []string{fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		g.wrap(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))}
	return r.query()
}

// GenerateUpdate renders an UPDATE statement with "=" assignments joined by
// ", " and the shared where renderer for predicates.
func (g *Generator) GenerateUpdate(table string, values map[string]interface{}, wheres []ast.WhereClause) *Query {
	r := &renderer{g: g}
	cols := sortedKeys(values)

	assignments := make([]string, len(cols))
	for i, col := range cols {
		assignments[i] = g.wrap(col) + " = " + r.bind(values[col])
	}
	r.add(fmt.Sprintf("UPDATE %s SET %s", g.wrap(table), strings.Join(assignments, ", ")))
	g.renderWheres(r, wheres)
	return r.query()
}

// GenerateDelete renders a DELETE statement.
func (g *Generator) GenerateDelete(table string, wheres []ast.WhereClause) *Query {
	r := &renderer{g: g}
	r.add("DELETE FROM " + g.wrap(table))
	g.renderWheres(r, wheres)
	return r.query()
}

func sortedKeys(values map[string]interface{}) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
