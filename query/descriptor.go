// Package query implements the filter/sort/limit query model: immutable
// descriptors, their evaluation against a collection snapshot, and their
// canonical fingerprinting.
//
// The filter/operator shape is grounded on the retrieval pack's
// gocloud.dev/docstore/driver.Query/Filter (field path + operator string +
// operand), generalized to the operator set and semantics spec.md §4.2
// requires.
package query

import (
	"docdb/errs"
	"docdb/values"
)

// Op is a filter operator. It is a closed set — the tagged-sum model
// spec.md §9 recommends for "dynamic dispatch in query operators."
type Op string

const (
	OpIs       Op = "is"
	OpIn       Op = "in"
	OpContains Op = "contains"
	OpLT       Op = "lt"
	OpLTE      Op = "lte"
	OpGT       Op = "gt"
	OpGTE      Op = "gte"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// IDField is the pseudo field name referencing the document id.
const IDField = "id"

// Filter is one `{field, op, operand}` clause. field = "id" references
// the document id rather than a record field.
type Filter struct {
	Field   string
	Op      Op
	Operand any
}

// SortSpec is one `{field, direction}` clause.
type SortSpec struct {
	Field     string
	Direction Direction
}

// Descriptor is an immutable filter/sort/limit triple defining a view.
// Equal descriptors (by Fingerprint) denote equal views; the zero value
// is the unfiltered, unsorted, unlimited view of a collection.
type Descriptor struct {
	Filters  []Filter
	Sorts    []SortSpec
	Limit    int
	HasLimit bool
}

// WithFilter returns a new Descriptor with f appended. The receiver is
// unmodified — descriptors are pure values.
func (d Descriptor) WithFilter(f Filter) Descriptor {
	out := d
	out.Filters = append(append([]Filter{}, d.Filters...), f)
	return out
}

// WithSort returns a new Descriptor with s appended.
func (d Descriptor) WithSort(s SortSpec) Descriptor {
	out := d
	out.Sorts = append(append([]SortSpec{}, d.Sorts...), s)
	return out
}

// WithLimit returns a new Descriptor with its limit set to n. n must be
// non-negative; n == 0 is a valid, if unusual, descriptor ("yields all
// matches up to zero" — i.e. always empty, per spec.md §8's boundary
// behaviors). Negative n is an invalid argument.
func (d Descriptor) WithLimit(n int) (Descriptor, error) {
	if n < 0 {
		return Descriptor{}, errs.NewDescriptorError("max", "", "limit must be non-negative")
	}
	out := d
	out.Limit = n
	out.HasLimit = true
	return out, nil
}

// Is adds an `is` filter: v[field] === operand.
func (d Descriptor) Is(field string, operand any) Descriptor {
	return d.WithFilter(Filter{Field: field, Op: OpIs, Operand: operand})
}

// In adds an `in` filter: v[field] ∈ operand. An empty operand matches
// nothing.
func (d Descriptor) In(field string, operand []any) Descriptor {
	return d.WithFilter(Filter{Field: field, Op: OpIn, Operand: operand})
}

// Contains adds a `contains` filter: v[field] is an array containing
// operand.
func (d Descriptor) Contains(field string, operand any) Descriptor {
	return d.WithFilter(Filter{Field: field, Op: OpContains, Operand: operand})
}

// LT adds a `lt` filter.
func (d Descriptor) LT(field string, operand any) Descriptor {
	return d.WithFilter(Filter{Field: field, Op: OpLT, Operand: operand})
}

// LTE adds a `lte` filter.
func (d Descriptor) LTE(field string, operand any) Descriptor {
	return d.WithFilter(Filter{Field: field, Op: OpLTE, Operand: operand})
}

// GT adds a `gt` filter.
func (d Descriptor) GT(field string, operand any) Descriptor {
	return d.WithFilter(Filter{Field: field, Op: OpGT, Operand: operand})
}

// GTE adds a `gte` filter.
func (d Descriptor) GTE(field string, operand any) Descriptor {
	return d.WithFilter(Filter{Field: field, Op: OpGTE, Operand: operand})
}

// SortAsc adds an ascending sort on field, defaulting to the id.
func (d Descriptor) SortAsc(field string) Descriptor {
	if field == "" {
		field = IDField
	}
	return d.WithSort(SortSpec{Field: field, Direction: Asc})
}

// SortDesc adds a descending sort on field, defaulting to the id.
func (d Descriptor) SortDesc(field string) Descriptor {
	if field == "" {
		field = IDField
	}
	return d.WithSort(SortSpec{Field: field, Direction: Desc})
}

// Row is one (id, record) pair produced by evaluating a Descriptor
// against a collection.
type Row struct {
	ID     string
	Record values.Record
}
