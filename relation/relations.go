package relation

import (
	"context"
	"fmt"

	"github.com/satishbabariya/eloquent-go/internal/debug"
)

// Relation resolves related data for one parent or for a batch of parents.
// Batch resolution costs a constant number of queries regardless of the
// parent count.
type Relation interface {
	// Get resolves the relation for a single parent and returns its value
	// ([]Entity for to-many kinds, Entity or nil for to-one kinds).
	Get(ctx context.Context, src Source, parent Entity) (interface{}, error)

	// EagerLoadForMany batch-resolves the relation for every parent and
	// assigns the result onto each via SetRelation.
	EagerLoadForMany(ctx context.Context, src Source, parents []Entity) error
}

// keyOf normalizes a key value for grouping, so int64 ids from one driver
// match int ids collected from entities.
func keyOf(v interface{}) string { return fmt.Sprintf("%v", v) }

// collectKeys gathers the distinct non-nil values of attr across entities.
func collectKeys(entities []Entity, attr string) []interface{} {
	seen := make(map[string]struct{}, len(entities))
	var keys []interface{}
	for _, e := range entities {
		v := e.Attribute(attr)
		if v == nil {
			continue
		}
		k := keyOf(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, v)
	}
	return keys
}

// scoped applies the related type's soft-delete scope to a query.
func scoped(q Query, softDeleteColumn string) Query {
	if softDeleteColumn != "" {
		return q.WhereNull(softDeleteColumn)
	}
	return q
}

// HasMany resolves a one-to-many relation: parent.localKey <- related.foreignKey.
type HasMany struct {
	name       string
	related    *EntityType
	foreignKey string
	localKey   string
}

// NewHasMany creates a has-many relation.
func NewHasMany(name string, related *EntityType, foreignKey, localKey string) *HasMany {
	return &HasMany{name: name, related: related, foreignKey: foreignKey, localKey: localKey}
}

// Get resolves the relation for a single parent.
func (r *HasMany) Get(ctx context.Context, src Source, parent Entity) (interface{}, error) {
	if err := r.EagerLoadForMany(ctx, src, []Entity{parent}); err != nil {
		return nil, err
	}
	v, _ := parent.Relation(r.name)
	return v, nil
}

// EagerLoadForMany fetches all related rows with a single WHERE IN query,
// groups them by foreign key, and assigns each parent its group. Parents
// without matches get an empty, non-nil list.
func (r *HasMany) EagerLoadForMany(ctx context.Context, src Source, parents []Entity) error {
	groups, err := groupByForeignKey(ctx, src, r.related, r.foreignKey, parents, r.localKey)
	if err != nil {
		return err
	}
	for _, p := range parents {
		group := groups[keyOf(p.Attribute(r.localKey))]
		if group == nil {
			group = []Entity{}
		}
		p.SetRelation(r.name, group)
	}
	return nil
}

// HasOne resolves a one-to-one relation with the same keying as HasMany.
// When several related rows share a foreign key, the first row the driver
// returned wins; add an ORDER BY on the underlying query for a
// deterministic pick.
type HasOne struct {
	name       string
	related    *EntityType
	foreignKey string
	localKey   string
}

// NewHasOne creates a has-one relation.
func NewHasOne(name string, related *EntityType, foreignKey, localKey string) *HasOne {
	return &HasOne{name: name, related: related, foreignKey: foreignKey, localKey: localKey}
}

// Get resolves the relation for a single parent.
func (r *HasOne) Get(ctx context.Context, src Source, parent Entity) (interface{}, error) {
	if err := r.EagerLoadForMany(ctx, src, []Entity{parent}); err != nil {
		return nil, err
	}
	v, _ := parent.Relation(r.name)
	return v, nil
}

// EagerLoadForMany assigns each parent its first matching related entity,
// or nil when none matched.
func (r *HasOne) EagerLoadForMany(ctx context.Context, src Source, parents []Entity) error {
	groups, err := groupByForeignKey(ctx, src, r.related, r.foreignKey, parents, r.localKey)
	if err != nil {
		return err
	}
	for _, p := range parents {
		group := groups[keyOf(p.Attribute(r.localKey))]
		if len(group) > 0 {
			p.SetRelation(r.name, group[0])
		} else {
			p.SetRelation(r.name, nil)
		}
	}
	return nil
}

// groupByForeignKey runs the shared batch query for hasMany/hasOne and
// groups hydrated entities by their foreign-key value.
func groupByForeignKey(ctx context.Context, src Source, related *EntityType, foreignKey string, parents []Entity, localKey string) (map[string][]Entity, error) {
	keys := collectKeys(parents, localKey)
	groups := make(map[string][]Entity)
	if len(keys) == 0 {
		return groups, nil
	}
	rows, err := scoped(src.Table(related.Table), related.SoftDeleteColumn).
		WhereIn(foreignKey, keys).
		Rows(ctx)
	if err != nil {
		return nil, err
	}
	debug.Debug("relation: batch loaded", "table", related.Table, "parents", len(parents), "rows", len(rows))
	for _, row := range rows {
		k := keyOf(row[foreignKey])
		groups[k] = append(groups[k], related.New(row))
	}
	return groups, nil
}

// BelongsTo resolves the inverse relation: child.foreignKey -> owner.ownerKey.
type BelongsTo struct {
	name       string
	related    *EntityType
	foreignKey string
	ownerKey   string
}

// NewBelongsTo creates a belongs-to relation.
func NewBelongsTo(name string, related *EntityType, foreignKey, ownerKey string) *BelongsTo {
	return &BelongsTo{name: name, related: related, foreignKey: foreignKey, ownerKey: ownerKey}
}

// Get resolves the relation for a single child.
func (r *BelongsTo) Get(ctx context.Context, src Source, parent Entity) (interface{}, error) {
	if err := r.EagerLoadForMany(ctx, src, []Entity{parent}); err != nil {
		return nil, err
	}
	v, _ := parent.Relation(r.name)
	return v, nil
}

// EagerLoadForMany collects the children's foreign-key values, fetches all
// owners in one query, and assigns each child its owner or nil.
func (r *BelongsTo) EagerLoadForMany(ctx context.Context, src Source, parents []Entity) error {
	keys := collectKeys(parents, r.foreignKey)
	owners := make(map[string]Entity)
	if len(keys) > 0 {
		rows, err := scoped(src.Table(r.related.Table), r.related.SoftDeleteColumn).
			WhereIn(r.ownerKey, keys).
			Rows(ctx)
		if err != nil {
			return err
		}
		for _, row := range rows {
			owners[keyOf(row[r.ownerKey])] = r.related.New(row)
		}
	}
	for _, p := range parents {
		fk := p.Attribute(r.foreignKey)
		if fk == nil {
			p.SetRelation(r.name, nil)
			continue
		}
		owner, ok := owners[keyOf(fk)]
		if !ok {
			p.SetRelation(r.name, nil)
			continue
		}
		p.SetRelation(r.name, owner)
	}
	return nil
}

// BelongsToMany resolves a many-to-many relation through a pivot table.
type BelongsToMany struct {
	name            string
	related         *EntityType
	pivotTable      string
	pivotForeignKey string // pivot column pointing at the parent
	pivotRelatedKey string // pivot column pointing at the related type
	parentKey       string
	relatedKey      string
}

// NewBelongsToMany creates a many-to-many relation.
func NewBelongsToMany(name string, related *EntityType, pivotTable, pivotForeignKey, pivotRelatedKey, parentKey, relatedKey string) *BelongsToMany {
	return &BelongsToMany{
		name:            name,
		related:         related,
		pivotTable:      pivotTable,
		pivotForeignKey: pivotForeignKey,
		pivotRelatedKey: pivotRelatedKey,
		parentKey:       parentKey,
		relatedKey:      relatedKey,
	}
}

// Get resolves the relation for a single parent.
func (r *BelongsToMany) Get(ctx context.Context, src Source, parent Entity) (interface{}, error) {
	if err := r.EagerLoadForMany(ctx, src, []Entity{parent}); err != nil {
		return nil, err
	}
	v, _ := parent.Relation(r.name)
	return v, nil
}

// EagerLoadForMany resolves the relation in two batched phases: fetch the
// pivot rows for all parents, then fetch the distinct related rows, and
// finally replay the pivot rows to rebuild each parent's list.
func (r *BelongsToMany) EagerLoadForMany(ctx context.Context, src Source, parents []Entity) error {
	parentKeys := collectKeys(parents, r.parentKey)
	pivots := []map[string]interface{}{}
	if len(parentKeys) > 0 {
		var err error
		pivots, err = src.Table(r.pivotTable).
			WhereIn(r.pivotForeignKey, parentKeys).
			Rows(ctx)
		if err != nil {
			return err
		}
	}

	seen := make(map[string]struct{})
	var relatedKeys []interface{}
	for _, pivot := range pivots {
		v := pivot[r.pivotRelatedKey]
		if v == nil {
			continue
		}
		k := keyOf(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		relatedKeys = append(relatedKeys, v)
	}

	relatedByKey := make(map[string]Entity)
	if len(relatedKeys) > 0 {
		rows, err := scoped(src.Table(r.related.Table), r.related.SoftDeleteColumn).
			WhereIn(r.relatedKey, relatedKeys).
			Rows(ctx)
		if err != nil {
			return err
		}
		for _, row := range rows {
			relatedByKey[keyOf(row[r.relatedKey])] = r.related.New(row)
		}
	}

	grouped := make(map[string][]Entity)
	for _, pivot := range pivots {
		e, ok := relatedByKey[keyOf(pivot[r.pivotRelatedKey])]
		if !ok {
			continue
		}
		k := keyOf(pivot[r.pivotForeignKey])
		grouped[k] = append(grouped[k], e)
	}
	for _, p := range parents {
		group := grouped[keyOf(p.Attribute(r.parentKey))]
		if group == nil {
			group = []Entity{}
		}
		p.SetRelation(r.name, group)
	}
	return nil
}

// Attach inserts one pivot row per id linking parent to the related type.
func (r *BelongsToMany) Attach(ctx context.Context, src Source, parent Entity, ids []interface{}) error {
	parentID := parent.Attribute(r.parentKey)
	for _, id := range ids {
		_, err := src.Table(r.pivotTable).Insert(ctx, map[string]interface{}{
			r.pivotForeignKey: parentID,
			r.pivotRelatedKey: id,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Detach removes the parent's pivot rows. With ids it removes only those
// links; without, it removes them all.
func (r *BelongsToMany) Detach(ctx context.Context, src Source, parent Entity, ids ...interface{}) error {
	q := src.Table(r.pivotTable).Where(r.pivotForeignKey, parent.Attribute(r.parentKey))
	if len(ids) > 0 {
		q = q.WhereIn(r.pivotRelatedKey, ids)
	}
	_, err := q.Delete(ctx)
	return err
}

// Sync makes the parent's pivot rows exactly the given ids: detach-all
// followed by attach. Not minimal, always correct.
func (r *BelongsToMany) Sync(ctx context.Context, src Source, parent Entity, ids []interface{}) error {
	if err := r.Detach(ctx, src, parent); err != nil {
		return err
	}
	return r.Attach(ctx, src, parent, ids)
}
