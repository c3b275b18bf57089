package values

import "strings"

// UpdateOp names the operator applied to a field by an Update.
type UpdateOp string

const (
	// OpSet replaces the field's value outright.
	OpSet UpdateOp = "set"
	// OpSum adds (or, with a negative operand, subtracts) a number.
	OpSum UpdateOp = "sum"
	// OpWithItems unions the operand items into an array field.
	OpWithItems UpdateOp = "withItems"
	// OpOmitItems removes the operand items from an array field.
	OpOmitItems UpdateOp = "omitItems"
)

// Update describes one keyed change within an UpdateRecord call. Key may
// be a dotted path ("a.b.c"); intermediate missing objects are created.
type Update struct {
	Key   string
	Op    UpdateOp
	Value any
}

// PathError is raised (via panic) when a dotted update path passes
// through a leaf that is not itself a record. This is a programmer error
// per spec.md §7 — it is fatal and not expected to be caught. It is also
// raised for an Update whose Op is not one of the operators above.
type PathError struct {
	Path string
	At   string
}

func (e *PathError) Error() string {
	return "docdb/values: update path " + e.Path + " passes through non-object field " + e.At
}

// UpdateRecord applies updates to record and returns the result. If no
// update actually changes anything, record is returned unchanged (same
// map instance).
func UpdateRecord(record Record, updates []Update) Record {
	if len(updates) == 0 {
		return record
	}

	result := record
	for _, u := range updates {
		result = applyUpdate(result, u)
	}
	return result
}

func applyUpdate(record Record, u Update) Record {
	segments := strings.Split(u.Key, ".")
	next, changed := setPath(record, segments, u)
	if !changed {
		return record
	}
	return next
}

// setPath walks segments into obj, applying u at the leaf, and returns
// the (possibly) new object plus whether anything changed. Each level
// uses WithField's unchanged-if-equal convention so an update that is a
// no-op all the way down returns the original instance.
func setPath(obj Record, segments []string, u Update) (Record, bool) {
	key := segments[0]

	if len(segments) == 1 {
		current, existed := obj[key]
		newVal, changed := computeLeaf(current, existed, u)
		if !changed {
			return obj, false
		}
		return WithField(obj, key, newVal), true
	}

	child, ok := obj[key]
	var childRecord Record
	if !ok {
		childRecord = Record{}
	} else {
		cr, ok := child.(Record)
		if !ok {
			panic(&PathError{Path: u.Key, At: key})
		}
		childRecord = cr
	}

	updatedChild, changed := setPath(childRecord, segments[1:], u)
	if !changed {
		return obj, false
	}
	return WithField(obj, key, updatedChild), true
}

func computeLeaf(current any, existed bool, u Update) (any, bool) {
	switch u.Op {
	case OpSet:
		if existed && Equal(current, u.Value) {
			return current, false
		}
		return u.Value, true

	case OpSum:
		delta := asFloat64(u.Value)
		base := 0.0
		if existed {
			base = asFloat64(current)
		}
		if delta == 0 {
			return current, false
		}
		return base + delta, true

	case OpWithItems:
		items, _ := u.Value.([]any)
		cur, _ := current.([]any)
		out := append([]any{}, cur...)
		changed := false
		for _, item := range items {
			if !containsItem(out, item) {
				out = append(out, item)
				changed = true
			}
		}
		if !changed {
			return current, false
		}
		return out, true

	case OpOmitItems:
		items, _ := u.Value.([]any)
		cur, _ := current.([]any)
		if len(cur) == 0 {
			return current, false
		}
		out := make([]any, 0, len(cur))
		changed := false
		for _, v := range cur {
			if containsItem(items, v) {
				changed = true
				continue
			}
			out = append(out, v)
		}
		if !changed {
			return current, false
		}
		return out, true

	default:
		panic(&PathError{Path: u.Key, At: "unknown operator " + string(u.Op)})
	}
}

func containsItem(arr []any, item any) bool {
	for _, v := range arr {
		if Equal(v, item) {
			return true
		}
	}
	return false
}
