// Package ast defines the query AST consumed by the SQL compiler.
package ast

// WhereType discriminates the where-clause union.
type WhereType string

const (
	WhereBasic   WhereType = "basic"
	WhereIn      WhereType = "in"
	WhereNull    WhereType = "null"
	WhereBetween WhereType = "between"
	WhereRaw     WhereType = "raw"
)

// Boolean connectors between where clauses.
const (
	BooleanAnd = "AND"
	BooleanOr  = "OR"
)

// WhereClause is one predicate in a query. Type selects which fields are
// meaningful: Basic uses Column/Operator/Value, In uses Column/Values/Not,
// Null uses Column/Not, Between uses Column/Values (exactly two)/Not, and
// Raw uses SQL/Values verbatim.
type WhereClause struct {
	Type     WhereType
	Column   string
	Operator string
	Value    interface{}
	Values   []interface{}
	SQL      string
	Boolean  string // AND or OR; ignored for the first rendered clause
	Not      bool
}

// JoinType enumerates supported join kinds.
type JoinType string

const (
	InnerJoin JoinType = "INNER"
	LeftJoin  JoinType = "LEFT"
	RightJoin JoinType = "RIGHT"
	FullJoin  JoinType = "FULL"
	CrossJoin JoinType = "CROSS"
)

// JoinClause joins another table on a first/operator/second column triple.
type JoinClause struct {
	Type     JoinType
	Table    string
	First    string
	Operator string
	Second   string
}

// OrderByClause orders results by a column in a direction.
type OrderByClause struct {
	Column    string
	Direction string // ASC or DESC after sanitization
}

// TrashedMode selects how soft-deleted rows participate in a query.
type TrashedMode int

const (
	// ExcludeTrashed is the default: soft-deleted rows are filtered out.
	ExcludeTrashed TrashedMode = iota
	// WithTrashed includes soft-deleted rows alongside live ones.
	WithTrashed
	// OnlyTrashed returns soft-deleted rows exclusively.
	OnlyTrashed
)

// QueryState is the mutable builder-side snapshot of a query. The fluent
// builder mutates it; the compiler reads it without modification.
type QueryState struct {
	Table    string
	Columns  []string // empty means *
	Wheres   []WhereClause
	Joins    []JoinClause
	Orders   []OrderByClause
	Limit    *int
	Offset   *int
	Distinct bool
	Trashed  TrashedMode
}

// New returns an empty query state for the given table.
func New(table string) *QueryState {
	return &QueryState{Table: table}
}

// Clone returns a deep, independent copy of the state. Clause lists and
// binding slices are copied, not shared, so mutating the clone never
// affects the original.
func (s *QueryState) Clone() *QueryState {
	c := &QueryState{
		Table:    s.Table,
		Distinct: s.Distinct,
		Trashed:  s.Trashed,
	}
	if s.Columns != nil {
		c.Columns = append([]string(nil), s.Columns...)
	}
	if s.Wheres != nil {
		c.Wheres = make([]WhereClause, len(s.Wheres))
		for i, w := range s.Wheres {
			cw := w
			if w.Values != nil {
				cw.Values = append([]interface{}(nil), w.Values...)
			}
			c.Wheres[i] = cw
		}
	}
	if s.Joins != nil {
		c.Joins = append([]JoinClause(nil), s.Joins...)
	}
	if s.Orders != nil {
		c.Orders = append([]OrderByClause(nil), s.Orders...)
	}
	if s.Limit != nil {
		v := *s.Limit
		c.Limit = &v
	}
	if s.Offset != nil {
		v := *s.Offset
		c.Offset = &v
	}
	return c
}
