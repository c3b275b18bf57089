package query

import (
	"sort"

	"docdb/values"
)

// Less orders two rows per d.Sorts, left to right, breaking any
// remaining tie by ascending id so the order is always total and
// deterministic regardless of a collection's underlying iteration order.
func Less(a, b Row, d Descriptor) bool {
	for _, s := range d.Sorts {
		av := fieldValue(a.ID, a.Record, s.Field)
		bv := fieldValue(b.ID, b.Record, s.Field)
		c := values.Compare(av, bv)
		if c == 0 {
			continue
		}
		if s.Direction == Desc {
			return c > 0
		}
		return c < 0
	}
	return a.ID < b.ID
}

// SortRows sorts rows in place per d.Sorts, with the ascending-id
// tiebreak Less applies.
func SortRows(rows []Row, d Descriptor) {
	sort.SliceStable(rows, func(i, j int) bool {
		return Less(rows[i], rows[j], d)
	})
}

// SameRows reports whether a and b are the same ordered id sequence with
// deeply equal records at each position — the comparison a query
// listener's last-delivered view is checked against before redelivery.
func SameRows(a, b []Row) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || !values.Equal(a[i].Record, b[i].Record) {
			return false
		}
	}
	return true
}

// Slice applies d's filters, sort order and limit to rows, returning a
// new slice. rows is not modified.
func Slice(rows []Row, d Descriptor) []Row {
	matched := make([]Row, 0, len(rows))
	for _, r := range rows {
		if MatchRow(r, d) {
			matched = append(matched, r)
		}
	}
	SortRows(matched, d)
	if d.HasLimit && len(matched) > d.Limit {
		matched = matched[:d.Limit]
	}
	return matched
}
