package relation

import (
	"context"
	"sort"
	"strings"

	"github.com/go-openapi/inflect"

	eloquent "github.com/satishbabariya/eloquent-go"
)

// Loader batch-resolves dotted relation paths across a result set.
type Loader struct {
	registry *Registry
}

// NewLoader creates a loader over a registry.
func NewLoader(registry *Registry) *Loader {
	return &Loader{registry: registry}
}

// buildTree splits dotted paths into one level of relation names, each
// keeping its remaining suffixes. "posts.comments" and "posts.author"
// share the single "posts" load.
func buildTree(paths []string) map[string][]string {
	tree := make(map[string][]string)
	for _, path := range paths {
		head, rest, found := strings.Cut(path, ".")
		if head == "" {
			continue
		}
		if _, ok := tree[head]; !ok {
			tree[head] = nil
		}
		if found && rest != "" {
			tree[head] = append(tree[head], rest)
		}
	}
	return tree
}

// Load resolves every requested relation path for the parents, level by
// level. Each level is fully assigned before its children recurse, and
// top-level relations load in sorted name order so query order is stable.
func (l *Loader) Load(ctx context.Context, src Source, typeName string, parents []Entity, paths []string) error {
	if len(parents) == 0 || len(paths) == 0 {
		return nil
	}
	tree := buildTree(paths)
	names := make([]string, 0, len(tree))
	for name := range tree {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		parentType, desc, err := l.registry.Descriptor(typeName, name)
		if err != nil {
			return err
		}
		relatedType, ok := l.registry.Type(desc.Related)
		if !ok {
			return &eloquent.EntityTypeError{Name: desc.Related}
		}
		rel := l.build(name, parentType, relatedType, desc)
		if err := rel.EagerLoadForMany(ctx, src, parents); err != nil {
			return err
		}
		if nested := tree[name]; len(nested) > 0 {
			children := collectLoaded(parents, name)
			if err := l.Load(ctx, src, desc.Related, children, nested); err != nil {
				return err
			}
		}
	}
	return nil
}

// build instantiates the relation for a descriptor, filling conventional
// key defaults.
func (l *Loader) build(name string, parent, related *EntityType, desc Descriptor) Relation {
	switch desc.Kind {
	case HasOneKind:
		fk, lk := desc.ForeignKey, desc.LocalKey
		if fk == "" {
			fk = foreignKeyFor(parent.Name)
		}
		if lk == "" {
			lk = parent.PrimaryKey
		}
		return NewHasOne(name, related, fk, lk)
	case BelongsToKind:
		fk, owner := desc.ForeignKey, desc.OwnerKey
		if fk == "" {
			fk = foreignKeyFor(related.Name)
		}
		if owner == "" {
			owner = related.PrimaryKey
		}
		return NewBelongsTo(name, related, fk, owner)
	case BelongsToManyKind:
		pivot := desc.PivotTable
		if pivot == "" {
			pivot = pivotTableFor(parent.Name, related.Name)
		}
		pfk, prk := desc.PivotForeignKey, desc.PivotRelatedKey
		if pfk == "" {
			pfk = foreignKeyFor(parent.Name)
		}
		if prk == "" {
			prk = foreignKeyFor(related.Name)
		}
		parentKey, relatedKey := desc.LocalKey, desc.OwnerKey
		if parentKey == "" {
			parentKey = parent.PrimaryKey
		}
		if relatedKey == "" {
			relatedKey = related.PrimaryKey
		}
		return NewBelongsToMany(name, related, pivot, pfk, prk, parentKey, relatedKey)
	default: // HasManyKind
		fk, lk := desc.ForeignKey, desc.LocalKey
		if fk == "" {
			fk = foreignKeyFor(parent.Name)
		}
		if lk == "" {
			lk = parent.PrimaryKey
		}
		return NewHasMany(name, related, fk, lk)
	}
}

// pivotTableFor derives the conventional pivot table name: the two
// singular snake_case type names joined in alphabetical order.
func pivotTableFor(a, b string) string {
	names := []string{inflect.Underscore(a), inflect.Underscore(b)}
	sort.Strings(names)
	return strings.Join(names, "_")
}

// collectLoaded flattens the already assigned relation values into the
// parent list for the next level.
func collectLoaded(parents []Entity, name string) []Entity {
	var children []Entity
	for _, p := range parents {
		v, ok := p.Relation(name)
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case []Entity:
			children = append(children, t...)
		case Entity:
			children = append(children, t)
		}
	}
	return children
}
