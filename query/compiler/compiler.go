// Package compiler turns query ASTs into SQL with safe parameterization.
// Every identifier is sanitized before rendering, soft-delete scoping is
// applied, and compiled SELECTs are served from a bounded LRU keyed by the
// canonicalized AST.
package compiler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	eloquent "github.com/satishbabariya/eloquent-go"
	"github.com/satishbabariya/eloquent-go/internal/debug"
	"github.com/satishbabariya/eloquent-go/query/ast"
	"github.com/satishbabariya/eloquent-go/query/cache"
	"github.com/satishbabariya/eloquent-go/query/sanitize"
	"github.com/satishbabariya/eloquent-go/query/sqlgen"
)

// DefaultCacheSize is the compiled-query cache capacity used when the
// caller does not configure one.
const DefaultCacheSize = 512

// SoftDelete configures the implicit soft-delete scope for an entity.
type SoftDelete struct {
	Column string // timestamp column, e.g. "deleted_at"
}

// operators is the whitelist for basic where clauses and join conditions.
var operators = map[string]bool{
	"=": true, "!=": true, "<>": true,
	"<": true, ">": true, "<=": true, ">=": true,
	"LIKE": true, "NOT LIKE": true,
}

// Compiler compiles query state into dialect-specific SQL.
type Compiler struct {
	generator *sqlgen.Generator
	cache     *cache.LRU
}

// New creates a compiler for the given provider with a compiled-query cache
// of cacheSize entries (DefaultCacheSize if non-positive).
func New(provider string, cacheSize int) *Compiler {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	return &Compiler{
		generator: sqlgen.NewGenerator(provider),
		cache:     cache.NewLRU(cacheSize),
	}
}

// Generator returns the dialect generator backing this compiler.
func (c *Compiler) Generator() *sqlgen.Generator { return c.generator }

// CacheStats returns the compiled-query cache counters.
func (c *Compiler) CacheStats() cache.Stats { return c.cache.GetStats() }

// ClearCache drops all cached compiled queries.
func (c *Compiler) ClearCache() { c.cache.Clear() }

// CompileSelect compiles a SELECT from the given state. The state itself is
// never mutated; sanitization and soft-delete scoping operate on a clone.
// Cache hits return an independent copy of the cached query.
func (c *Compiler) CompileSelect(state *ast.QueryState, soft *SoftDelete) (*sqlgen.Query, error) {
	s, err := c.sanitizeState(state)
	if err != nil {
		return nil, err
	}
	if err := c.applySoftDelete(s, soft); err != nil {
		return nil, err
	}
	key, cacheable := c.cacheKey(s, soft)
	if cacheable {
		if q := c.cache.Get(key); q != nil {
			debug.Debug("compiler: cache hit", "table", s.Table, "key", key)
			return q, nil
		}
	}
	q := c.generator.GenerateSelect(s)
	if cacheable {
		c.cache.Put(key, q)
	}
	debug.Debug("compiler: compiled select", "table", s.Table, "sql", q.SQL)
	return q, nil
}

// CompileCount compiles a COUNT(*) aggregate using the state's predicates.
func (c *Compiler) CompileCount(state *ast.QueryState, soft *SoftDelete) (*sqlgen.Query, error) {
	s, err := c.sanitizeState(state)
	if err != nil {
		return nil, err
	}
	if err := c.applySoftDelete(s, soft); err != nil {
		return nil, err
	}
	return c.generator.GenerateCount(s), nil
}

// CompileInsert compiles an INSERT for the table and values map.
func (c *Compiler) CompileInsert(table string, values map[string]interface{}) (*sqlgen.Query, error) {
	t, err := sanitize.Identifier(table)
	if err != nil {
		return nil, err
	}
	if err := sanitizeValueColumns(values); err != nil {
		return nil, err
	}
	return c.generator.GenerateInsert(t, values), nil
}

// CompileUpdate compiles an UPDATE for the table, SET values, and predicates.
func (c *Compiler) CompileUpdate(table string, values map[string]interface{}, wheres []ast.WhereClause) (*sqlgen.Query, error) {
	t, err := sanitize.Identifier(table)
	if err != nil {
		return nil, err
	}
	if err := sanitizeValueColumns(values); err != nil {
		return nil, err
	}
	ws, err := sanitizeWheres(wheres)
	if err != nil {
		return nil, err
	}
	return c.generator.GenerateUpdate(t, values, ws), nil
}

// CompileDelete compiles a DELETE for the table and predicates.
func (c *Compiler) CompileDelete(table string, wheres []ast.WhereClause) (*sqlgen.Query, error) {
	t, err := sanitize.Identifier(table)
	if err != nil {
		return nil, err
	}
	ws, err := sanitizeWheres(wheres)
	if err != nil {
		return nil, err
	}
	return c.generator.GenerateDelete(t, ws), nil
}

// sanitizeState validates every identifier referenced by the state and
// returns a sanitized deep copy.
func (c *Compiler) sanitizeState(state *ast.QueryState) (*ast.QueryState, error) {
	s := state.Clone()

	t, err := sanitize.Identifier(s.Table)
	if err != nil {
		return nil, err
	}
	s.Table = t

	for i, col := range s.Columns {
		v, err := sanitize.Identifier(col)
		if err != nil {
			return nil, err
		}
		s.Columns[i] = v
	}
	for i, j := range s.Joins {
		if j.Table, err = sanitize.Identifier(j.Table); err != nil {
			return nil, err
		}
		if j.Type != ast.CrossJoin {
			if j.First, err = sanitize.Identifier(j.First); err != nil {
				return nil, err
			}
			if j.Second, err = sanitize.Identifier(j.Second); err != nil {
				return nil, err
			}
			if err = checkOperator(j.Operator); err != nil {
				return nil, err
			}
		}
		s.Joins[i] = j
	}
	if s.Wheres, err = sanitizeWheres(s.Wheres); err != nil {
		return nil, err
	}
	for i, o := range s.Orders {
		if o.Column, err = sanitize.Identifier(o.Column); err != nil {
			return nil, err
		}
		if o.Direction, err = sanitize.Direction(o.Direction); err != nil {
			return nil, err
		}
		s.Orders[i] = o
	}
	if s.Limit != nil {
		if err := sanitize.Limit(*s.Limit); err != nil {
			return nil, err
		}
	}
	if s.Offset != nil {
		if err := sanitize.Offset(*s.Offset); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// sanitizeWheres validates where-clause columns and operators in place.
// Raw clauses pass through untouched.
func sanitizeWheres(wheres []ast.WhereClause) ([]ast.WhereClause, error) {
	var err error
	for i, w := range wheres {
		if w.Type == ast.WhereRaw {
			continue
		}
		if w.Column, err = sanitize.Identifier(w.Column); err != nil {
			return nil, err
		}
		switch w.Type {
		case ast.WhereBasic:
			if err = checkOperator(w.Operator); err != nil {
				return nil, err
			}
		case ast.WhereBetween:
			if len(w.Values) != 2 {
				return nil, &eloquent.ValidationError{
					Code:       eloquent.CodeInvalidClause,
					Identifier: w.Column,
					Value:      len(w.Values),
					Max:        2,
					Reason:     "between clause requires exactly two values",
				}
			}
		}
		wheres[i] = w
	}
	return wheres, nil
}

func sanitizeValueColumns(values map[string]interface{}) error {
	for col := range values {
		if _, err := sanitize.Identifier(col); err != nil {
			return err
		}
	}
	return nil
}

func checkOperator(op string) error {
	if !operators[strings.ToUpper(op)] {
		return &eloquent.ValidationError{
			Code:       eloquent.CodeInvalidOperator,
			Identifier: op,
			Reason:     "operator is not whitelisted",
		}
	}
	return nil
}

// applySoftDelete appends the implicit trashed scope after all caller
// clauses, always connected with AND.
func (c *Compiler) applySoftDelete(s *ast.QueryState, soft *SoftDelete) error {
	if soft == nil || soft.Column == "" {
		return nil
	}
	col, err := sanitize.Identifier(soft.Column)
	if err != nil {
		return err
	}
	switch s.Trashed {
	case ast.WithTrashed:
		// No scoping: trashed rows are included.
	case ast.OnlyTrashed:
		s.Wheres = append(s.Wheres, ast.WhereClause{
			Type: ast.WhereNull, Column: col, Boolean: ast.BooleanAnd, Not: true,
		})
	default:
		s.Wheres = append(s.Wheres, ast.WhereClause{
			Type: ast.WhereNull, Column: col, Boolean: ast.BooleanAnd,
		})
	}
	return nil
}

// cacheKey canonically serializes the sanitized state together with the
// grammar identity and soft-delete policy, then hashes it. The state is
// JSON-encoded so field boundaries are unambiguous: no clause value, however
// crafted, can make two different states serialize identically.
func (c *Compiler) cacheKey(s *ast.QueryState, soft *SoftDelete) (string, bool) {
	payload := struct {
		Grammar string
		Soft    string
		State   *ast.QueryState
	}{Grammar: c.generator.Name(), State: s}
	if soft != nil {
		payload.Soft = soft.Column
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		// A clause value the encoder cannot represent has no safe key;
		// compile without caching.
		return "", false
	}
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("%s:%s:%s", c.generator.Name(), s.Table, hex.EncodeToString(sum[:8])), true
}
