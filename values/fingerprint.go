package values

import (
	"encoding/json"
	"reflect"
	"runtime"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns a stable string digest of v. Deeply equal inputs
// produce equal fingerprints, which makes it suitable as a cache key and
// for descriptor equality (see docdb/query.Fingerprint, which canonicalizes
// a Descriptor through this function).
//
// v is first canonicalized into a tree of JSON-marshalable values —
// functions are represented by name and map keys sort naturally because
// encoding/json sorts map[string]any keys — then hashed with xxhash for a
// compact digest.
func Fingerprint(v any) string {
	canon := canonicalize(v)
	b, err := json.Marshal(canon)
	if err != nil {
		// Canonicalize already strips the only non-JSON-marshalable kinds
		// this package expects (funcs); anything else reaching here is a
		// caller error, not a recoverable state, so fall back to a
		// type-name digest rather than panicking mid read path.
		b = []byte(reflect.TypeOf(v).String())
	}
	sum := xxhash.Sum64(b)
	return "fp1:" + strconv.FormatUint(sum, 16)
}

func canonicalize(v any) any {
	switch val := v.(type) {
	case absentType:
		return "\x00absent"
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[k] = canonicalize(vv)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = canonicalize(vv)
		}
		return out
	default:
		rv := reflect.ValueOf(v)
		if rv.IsValid() && rv.Kind() == reflect.Func {
			if rv.IsNil() {
				return "\x00func:nil"
			}
			return "\x00func:" + runtime.FuncForPC(rv.Pointer()).Name()
		}
		if rv.IsValid() && rv.Kind() == reflect.Map {
			return canonicalizeGenericMap(rv)
		}
		if rv.IsValid() && rv.Kind() == reflect.Slice {
			return canonicalizeGenericSlice(rv)
		}
		return v
	}
}

// canonicalizeGenericMap handles maps whose static type isn't
// map[string]any (e.g. map[string]int) so Fingerprint works on arbitrary
// JSON-like Go values, not just Record.
func canonicalizeGenericMap(rv reflect.Value) any {
	keys := rv.MapKeys()
	strKeys := make([]string, 0, len(keys))
	byKey := make(map[string]reflect.Value, len(keys))
	for _, k := range keys {
		ks := fmtMapKey(k)
		strKeys = append(strKeys, ks)
		byKey[ks] = k
	}
	sort.Strings(strKeys)

	out := make(map[string]any, len(keys))
	for _, ks := range strKeys {
		out[ks] = canonicalize(rv.MapIndex(byKey[ks]).Interface())
	}
	return out
}

func fmtMapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	return strconv.FormatUint(xxhash.Sum64String(anySprint(k.Interface())), 36)
}

func anySprint(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return reflect.TypeOf(v).String()
	}
	return string(b)
}

func canonicalizeGenericSlice(rv reflect.Value) any {
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = canonicalize(rv.Index(i).Interface())
	}
	return out
}
