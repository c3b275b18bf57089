package query

import (
	"sort"

	"docdb/values"
)

// Fingerprint returns a canonical string identifying d. Two descriptors
// built in different orders but describing the same view produce the
// same fingerprint; this backs query dedup in the source cache and
// QueryRef identity comparisons.
//
// Filters are sorted by (field, op, operand fingerprint) since filter
// order does not affect the matched set. Sorts are kept in their given
// order since sort order is significant. Limit is included only when
// set.
func Fingerprint(d Descriptor) string {
	filters := make([]map[string]any, len(d.Filters))
	for i, f := range d.Filters {
		filters[i] = map[string]any{
			"field":   f.Field,
			"op":      string(f.Op),
			"operand": f.Operand,
		}
	}
	sort.Slice(filters, func(i, j int) bool {
		return filterSortKey(filters[i]) < filterSortKey(filters[j])
	})

	sorts := make([]map[string]any, len(d.Sorts))
	for i, s := range d.Sorts {
		sorts[i] = map[string]any{"field": s.Field, "direction": string(s.Direction)}
	}

	canonical := map[string]any{
		"filters": toAnySlice(filters),
		"sorts":   toAnySlice(sorts),
	}
	if d.HasLimit {
		canonical["limit"] = d.Limit
	}
	return values.Fingerprint(canonical)
}

func filterSortKey(f map[string]any) string {
	return f["field"].(string) + "\x00" + f["op"].(string) + "\x00" + values.Fingerprint(f["operand"])
}

func toAnySlice(ms []map[string]any) []any {
	out := make([]any, len(ms))
	for i, m := range ms {
		out[i] = m
	}
	return out
}
