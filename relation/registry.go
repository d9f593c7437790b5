package relation

import (
	"context"

	"github.com/go-openapi/inflect"

	eloquent "github.com/satishbabariya/eloquent-go"
)

// Kind discriminates relation descriptors.
type Kind string

const (
	HasManyKind       Kind = "hasMany"
	HasOneKind        Kind = "hasOne"
	BelongsToKind     Kind = "belongsTo"
	BelongsToManyKind Kind = "belongsToMany"
)

// Descriptor declares one relation on an entity type. Key names left empty
// are derived from the conventional snake_case defaults at lookup time.
type Descriptor struct {
	Kind    Kind
	Related string // related entity type name in the registry

	ForeignKey string // hasMany/hasOne: FK on related; belongsTo: FK on child
	LocalKey   string // parent key collected for batching; defaults to the PK
	OwnerKey   string // belongsTo: key on the owner; defaults to its PK

	PivotTable      string // belongsToMany only
	PivotForeignKey string // pivot column pointing at the parent
	PivotRelatedKey string // pivot column pointing at the related type
}

// EntityType registers an entity type's table, keys, soft-delete policy,
// hydrator, and relations. Relations are declared explicitly here once at
// registration time; nothing is discovered by name pattern at call time.
type EntityType struct {
	Name             string
	Table            string // defaults to the tableized type name
	PrimaryKey       string // defaults to "id"
	SoftDeleteColumn string // empty disables soft-delete scoping
	New              func(row map[string]interface{}) Entity
	Relations        map[string]Descriptor
}

// Registry maps entity type names to their registered metadata. It is the
// explicit replacement for reflective method discovery: the engine reads
// it, the model layer owns it.
type Registry struct {
	types map[string]*EntityType
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*EntityType)}
}

// Register adds an entity type, filling conventional defaults.
func (r *Registry) Register(t *EntityType) *Registry {
	if t.Table == "" {
		t.Table = inflect.Tableize(t.Name)
	}
	if t.PrimaryKey == "" {
		t.PrimaryKey = "id"
	}
	if t.New == nil {
		t.New = func(row map[string]interface{}) Entity { return NewRecord(row) }
	}
	if t.Relations == nil {
		t.Relations = make(map[string]Descriptor)
	}
	r.types[t.Name] = t
	return r
}

// Type resolves a registered entity type.
func (r *Registry) Type(name string) (*EntityType, bool) {
	t, ok := r.types[name]
	return t, ok
}

// Descriptor resolves a relation declared on the given type. An unregistered
// type is an EntityTypeError and a missing relation a RelationError; either
// is fatal to the load that requested it.
func (r *Registry) Descriptor(typeName, relationName string) (*EntityType, Descriptor, error) {
	t, ok := r.types[typeName]
	if !ok {
		return nil, Descriptor{}, &eloquent.EntityTypeError{Name: typeName}
	}
	desc, ok := t.Relations[relationName]
	if !ok {
		return nil, Descriptor{}, &eloquent.RelationError{EntityType: typeName, Relation: relationName}
	}
	return t, desc, nil
}

// foreignKeyFor derives the conventional foreign key for a type name.
func foreignKeyFor(typeName string) string {
	return inflect.Underscore(typeName) + "_id"
}

// Query is the minimal query surface the relation engine needs. The fluent
// builder satisfies it through a thin adapter.
type Query interface {
	Where(column string, value interface{}) Query
	WhereIn(column string, values []interface{}) Query
	WhereNull(column string) Query
	Rows(ctx context.Context) ([]map[string]interface{}, error)
	Insert(ctx context.Context, values map[string]interface{}) (int64, error)
	Delete(ctx context.Context) (int64, error)
}

// Source creates queries for tables.
type Source interface {
	Table(name string) Query
}
