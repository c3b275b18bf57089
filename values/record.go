// Package values implements the immutable update operations over records
// and arrays that the rest of docdb builds on: change-or-return-the-same-
// instance field updates, dotted-path record patches, deep cloning, and
// canonical fingerprinting.
package values

import "reflect"

// Record is an opaque, schemaless document body: a mapping of field names
// to scalar, array, or nested-record values.
type Record = map[string]any

// absentType is the sentinel type for Absent. It is never equal to an
// empty Record or to nil.
type absentType struct{}

// Absent is the sentinel value representing "no such document." It is
// distinct from an empty Record.
var Absent = absentType{}

// IsAbsent reports whether v is the Absent sentinel.
func IsAbsent(v any) bool {
	_, ok := v.(absentType)
	return ok
}

// Equal reports deep structural equality, the "unchanged" check used
// throughout this package and by State.Set.
func Equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// WithField returns a copy of obj with key set to value. If obj already
// has that exact value at key, obj is returned unchanged (same map
// instance) so callers can use reference equality as a cheap change
// check downstream.
func WithField(obj Record, key string, value any) Record {
	if existing, ok := obj[key]; ok && Equal(existing, value) {
		return obj
	}
	out := make(Record, len(obj)+1)
	for k, v := range obj {
		out[k] = v
	}
	out[key] = value
	return out
}

// WithoutField returns a copy of obj with key removed. If key is already
// absent, obj is returned unchanged.
func WithoutField(obj Record, key string) Record {
	if _, ok := obj[key]; !ok {
		return obj
	}
	out := make(Record, len(obj))
	for k, v := range obj {
		if k == key {
			continue
		}
		out[k] = v
	}
	return out
}

// MergeFields shallow-merges patch into obj. If every key in patch
// already holds the same value in obj, obj is returned unchanged.
func MergeFields(obj, patch Record) Record {
	changed := false
	for k, v := range patch {
		if existing, ok := obj[k]; !ok || !Equal(existing, v) {
			changed = true
			break
		}
	}
	if !changed {
		return obj
	}
	out := make(Record, len(obj)+len(patch))
	for k, v := range obj {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}
