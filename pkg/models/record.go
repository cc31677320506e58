// Package models provides the data models that flow through polyload.
//
// A Record is one source row: an ordered mapping from column name to a
// scalar value. A Batch is a bounded, ordered group of records that all
// come from the same source file and therefore share the same table name
// and the same key set.
//
// Records are treated as immutable once they leave the source reader.
// Adapters that need a different shape must Clone first.
package models

// Record represents a single row with an ordered set of columns.
// The zero value is an empty record ready for use.
type Record struct {
	keys   []string
	values map[string]interface{}
}

// NewRecord creates a record from parallel key and value slices.
// Extra values are ignored and missing values are stored as nil.
func NewRecord(keys []string, values []interface{}) *Record {
	r := &Record{
		keys:   make([]string, 0, len(keys)),
		values: make(map[string]interface{}, len(keys)),
	}
	for i, k := range keys {
		var v interface{}
		if i < len(values) {
			v = values[i]
		}
		r.Set(k, v)
	}
	return r
}

// Keys returns the column names in order. The returned slice must not be modified.
func (r *Record) Keys() []string {
	return r.keys
}

// Len returns the number of columns.
func (r *Record) Len() int {
	return len(r.keys)
}

// Get returns the value stored under key and whether it exists.
func (r *Record) Get(key string) (interface{}, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Has reports whether the record contains key.
func (r *Record) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Set stores a value. New keys are appended after the existing ones.
func (r *Record) Set(key string, value interface{}) {
	if r.values == nil {
		r.values = make(map[string]interface{})
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Rename moves the value under oldKey to newKey, keeping the column position.
// It reports whether oldKey was present. If newKey already exists it is
// overwritten and its previous position dropped.
func (r *Record) Rename(oldKey, newKey string) bool {
	v, ok := r.values[oldKey]
	if !ok || oldKey == newKey {
		return ok
	}
	if _, exists := r.values[newKey]; exists {
		r.remove(newKey)
	}
	for i, k := range r.keys {
		if k == oldKey {
			r.keys[i] = newKey
			break
		}
	}
	delete(r.values, oldKey)
	r.values[newKey] = v
	return true
}

func (r *Record) remove(key string) {
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
	delete(r.values, key)
}

// Values returns the values in key order.
func (r *Record) Values() []interface{} {
	out := make([]interface{}, len(r.keys))
	for i, k := range r.keys {
		out[i] = r.values[k]
	}
	return out
}

// Map returns a copy of the record as a plain map.
func (r *Record) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(r.keys))
	for _, k := range r.keys {
		out[k] = r.values[k]
	}
	return out
}

// Clone returns a shallow copy that can be modified independently.
func (r *Record) Clone() *Record {
	c := &Record{
		keys:   make([]string, len(r.keys)),
		values: make(map[string]interface{}, len(r.values)),
	}
	copy(c.keys, r.keys)
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}

// SameKeys reports whether both records have exactly the same ordered key set.
func (r *Record) SameKeys(other *Record) bool {
	if len(r.keys) != len(other.keys) {
		return false
	}
	for i, k := range r.keys {
		if other.keys[i] != k {
			return false
		}
	}
	return true
}
