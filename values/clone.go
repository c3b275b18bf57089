package values

import (
	"reflect"

	"github.com/jinzhu/copier"
)

// Clone returns a value that shares no mutable state with v. Records and
// arrays-of-any are deep copied by hand; struct-shaped values (as might
// appear as a field value supplied by a caller-defined type) are deep
// copied with jinzhu/copier, the same library the teacher uses to give
// Cachable.Copy its non-aliasing guarantee.
func Clone(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case absentType:
		return val
	case Record:
		out := make(Record, len(val))
		for k, vv := range val {
			out[k] = Clone(vv)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = Clone(vv)
		}
		return out
	default:
		return cloneReflect(v)
	}
}

func cloneReflect(v any) any {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return v
	}

	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return v
		}
		dst := reflect.New(rv.Elem().Type())
		if err := copier.Copy(dst.Interface(), v); err != nil {
			return v
		}
		return dst.Interface()
	case reflect.Struct:
		dst := reflect.New(rv.Type())
		if err := copier.Copy(dst.Interface(), v); err != nil {
			return v
		}
		return dst.Elem().Interface()
	case reflect.Map:
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		for _, k := range rv.MapKeys() {
			out.SetMapIndex(k, reflect.ValueOf(Clone(rv.MapIndex(k).Interface())))
		}
		return out.Interface()
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(reflect.ValueOf(Clone(rv.Index(i).Interface())))
		}
		return out.Interface()
	default:
		// Scalars are immutable in Go's value semantics; nothing to copy.
		return v
	}
}
