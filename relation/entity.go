// Package relation implements relation kinds and the batched eager-loading
// engine. It depends only on the Entity capability interface, never on a
// concrete entity type, so the model layer and this engine stay decoupled.
package relation

// Entity is the minimal capability surface the relation engine needs from
// the model layer.
type Entity interface {
	// Attribute returns a column value by name, or nil when absent.
	Attribute(name string) interface{}

	// SetAttribute stores a column value by name.
	SetAttribute(name string, value interface{})

	// Relation returns a previously assigned relation value.
	Relation(name string) (interface{}, bool)

	// SetRelation assigns a resolved relation value.
	SetRelation(name string, value interface{})
}

// Record is a map-backed Entity used by the default hydrator and by tests.
type Record struct {
	attributes map[string]interface{}
	relations  map[string]interface{}
}

// NewRecord creates a record from a row map. The row is copied.
func NewRecord(row map[string]interface{}) *Record {
	attrs := make(map[string]interface{}, len(row))
	for k, v := range row {
		attrs[k] = v
	}
	return &Record{attributes: attrs, relations: make(map[string]interface{})}
}

// Attribute returns a column value by name.
func (r *Record) Attribute(name string) interface{} { return r.attributes[name] }

// SetAttribute stores a column value by name.
func (r *Record) SetAttribute(name string, value interface{}) {
	r.attributes[name] = value
}

// Relation returns a previously assigned relation value.
func (r *Record) Relation(name string) (interface{}, bool) {
	v, ok := r.relations[name]
	return v, ok
}

// SetRelation assigns a resolved relation value.
func (r *Record) SetRelation(name string, value interface{}) {
	r.relations[name] = value
}

// Attributes returns the record's attribute map.
func (r *Record) Attributes() map[string]interface{} { return r.attributes }
