package builder

import (
	"context"

	"github.com/satishbabariya/eloquent-go/relation"
	"github.com/satishbabariya/eloquent-go/runtime/client"
)

// connSource adapts a connection to the relation engine's Source. Queries
// it creates run on the same runner as the builder that spawned it, so
// eager loads inside a transaction stay on that transaction.
type connSource struct {
	conn   *client.Connection
	runner Runner
}

// Table creates a relation query for the named table.
func (s *connSource) Table(name string) relation.Query {
	b := Table(s.conn, name)
	b.runner = s.runner
	return &relationQuery{b: b}
}

// NewSource exposes a connection as a relation.Source for callers driving
// the relation engine directly.
func NewSource(conn *client.Connection) relation.Source {
	return &connSource{conn: conn, runner: conn}
}

// relationQuery adapts a Builder to the relation engine's narrow Query
// surface.
type relationQuery struct {
	b *Builder
}

func (q *relationQuery) Where(column string, value interface{}) relation.Query {
	q.b.Where(column, value)
	return q
}

func (q *relationQuery) WhereIn(column string, values []interface{}) relation.Query {
	q.b.WhereIn(column, values)
	return q
}

func (q *relationQuery) WhereNull(column string) relation.Query {
	q.b.WhereNull(column)
	return q
}

func (q *relationQuery) Rows(ctx context.Context) ([]map[string]interface{}, error) {
	return q.b.Rows(ctx)
}

func (q *relationQuery) Insert(ctx context.Context, values map[string]interface{}) (int64, error) {
	return q.b.Insert(ctx, values)
}

func (q *relationQuery) Delete(ctx context.Context) (int64, error) {
	return q.b.Delete(ctx)
}
