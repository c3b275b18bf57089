package docdb

import (
	"docdb/errs"
	"docdb/query"
	"docdb/values"
)

// Descriptor and the Op constants are re-exported from docdb/query so
// callers building refs through a Database need not import it directly.
type Descriptor = query.Descriptor

const (
	OpIs       = query.OpIs
	OpIn       = query.OpIn
	OpContains = query.OpContains
	OpLT       = query.OpLT
	OpLTE      = query.OpLTE
	OpGT       = query.OpGT
	OpGTE      = query.OpGTE
)

// Row is one (id, record) result of evaluating a QueryRef.
type Row = query.Row

// Update is a dotted-path record mutation, per docdb/values.
type Update = values.Update

// ItemRef is a handle on one document: (collection, id).
type ItemRef struct {
	db         *Database
	collection string
	id         string
}

// Value returns the current record, or (nil, false) if absent. It never
// returns an error — absence is a plain boolean, per spec.md §7.
func (r *ItemRef) Value() (values.Record, bool) {
	return r.db.provider.GetItem(r.collection, r.id)
}

// Require returns the current record, or errs.ErrAbsent if it does not
// exist. Use this form when the caller has no sensible fallback for a
// missing document and would otherwise have to check the bool itself; use
// Value when absence is an expected, handled case.
func (r *ItemRef) Require() (values.Record, error) {
	v, ok := r.db.provider.GetItem(r.collection, r.id)
	if !ok {
		return nil, errs.ErrAbsent
	}
	return v, nil
}

// Set overwrites the record.
func (r *ItemRef) Set(record values.Record) {
	r.db.provider.SetItem(r.collection, r.id, record)
}

// Update applies updates to the record, treating an absent record as
// empty.
func (r *ItemRef) Update(updates []Update) {
	r.db.provider.UpdateItem(r.collection, r.id, updates)
}

// Delete removes the record if present.
func (r *ItemRef) Delete() {
	r.db.provider.DeleteItem(r.collection, r.id)
}

// Subscribe registers an observer delivered the current value at the
// next scheduling boundary and on every subsequent change. The third
// onNext argument is an optional diff against the value most recently
// delivered to this observer; see Provider.SubscribeItem.
func (r *ItemRef) Subscribe(onNext func(values.Record, bool, *values.Diff), onError func(error)) func() {
	return r.db.provider.SubscribeItem(r.collection, r.id, onNext, onError)
}

// QueryRef is a handle on a filtered/sorted/limited view of a
// collection.
type QueryRef struct {
	db         *Database
	collection string
	descriptor Descriptor
}

func newQueryRef(db *Database, collection string, d Descriptor) *QueryRef {
	return &QueryRef{db: db, collection: collection, descriptor: d}
}

func (r *QueryRef) with(d Descriptor) *QueryRef {
	return newQueryRef(r.db, r.collection, d)
}

// WithDescriptor returns a new QueryRef over the same collection with d
// in place of this ref's descriptor. Exposed so packages built on top
// of QueryRef (docdb/paginate) can derive cursor queries without
// reaching into Database internals.
func (r *QueryRef) WithDescriptor(d Descriptor) *QueryRef {
	return r.with(d)
}

// Is adds an `is` filter.
func (r *QueryRef) Is(field string, operand any) *QueryRef {
	return r.with(r.descriptor.Is(field, operand))
}

// In adds an `in` filter.
func (r *QueryRef) In(field string, operand []any) *QueryRef {
	return r.with(r.descriptor.In(field, operand))
}

// Contains adds a `contains` filter.
func (r *QueryRef) Contains(field string, operand any) *QueryRef {
	return r.with(r.descriptor.Contains(field, operand))
}

// LT adds a `lt` filter.
func (r *QueryRef) LT(field string, operand any) *QueryRef {
	return r.with(r.descriptor.LT(field, operand))
}

// LTE adds a `lte` filter.
func (r *QueryRef) LTE(field string, operand any) *QueryRef {
	return r.with(r.descriptor.LTE(field, operand))
}

// GT adds a `gt` filter.
func (r *QueryRef) GT(field string, operand any) *QueryRef {
	return r.with(r.descriptor.GT(field, operand))
}

// GTE adds a `gte` filter.
func (r *QueryRef) GTE(field string, operand any) *QueryRef {
	return r.with(r.descriptor.GTE(field, operand))
}

// Asc adds an ascending sort on field.
func (r *QueryRef) Asc(field string) *QueryRef {
	return r.with(r.descriptor.SortAsc(field))
}

// Desc adds a descending sort on field.
func (r *QueryRef) Desc(field string) *QueryRef {
	return r.with(r.descriptor.SortDesc(field))
}

// Max sets the result limit. n must be non-negative.
func (r *QueryRef) Max(n int) *QueryRef {
	d, err := r.descriptor.WithLimit(n)
	if err != nil {
		panic(err)
	}
	return r.with(d)
}

// Descriptor returns the underlying query descriptor, mainly for
// callers building on top of a QueryRef (e.g. docdb/paginate).
func (r *QueryRef) Descriptor() Descriptor {
	return r.descriptor
}

// Collection returns the name of the collection this ref queries.
func (r *QueryRef) Collection() string {
	return r.collection
}

// Value evaluates the query synchronously. An empty result is a valid,
// non-error outcome.
func (r *QueryRef) Value() []Row {
	return r.db.provider.GetQuery(r.collection, r.descriptor)
}

// RequireValue evaluates the query synchronously and returns
// errs.ErrAbsent if it matches no rows. Use this form when an empty
// result means the caller's expectations were violated rather than a
// normal "nothing matched" outcome.
func (r *QueryRef) RequireValue() ([]Row, error) {
	rows := r.db.provider.GetQuery(r.collection, r.descriptor)
	if len(rows) == 0 {
		return nil, errs.ErrAbsent
	}
	return rows, nil
}

// Count evaluates the query's match count synchronously.
func (r *QueryRef) Count() int {
	return r.db.provider.CountQuery(r.collection, r.descriptor)
}

// Delete deletes every currently matching row and returns the count
// deleted. Matches are taken as a snapshot at call time; a concurrent
// writer is not re-checked against.
func (r *QueryRef) Delete() int {
	return r.db.provider.DeleteQuery(r.collection, r.descriptor)
}

// Update applies updates to every currently matching row and returns
// the count updated, with the same snapshot-at-call-time semantics as
// Delete.
func (r *QueryRef) Update(updates []Update) int {
	return r.db.provider.UpdateQuery(r.collection, r.descriptor, updates)
}

// Subscribe registers an observer delivered the current view at the
// next scheduling boundary and on every subsequent change to it. The
// second onNext argument is an optional diff against the view most
// recently delivered to this observer; see Provider.SubscribeQuery.
func (r *QueryRef) Subscribe(onNext func([]Row, *values.Diff), onError func(error)) func() {
	return r.db.provider.SubscribeQuery(r.collection, r.descriptor, onNext, onError)
}

// Fingerprint returns the canonical fingerprint of this ref's
// descriptor, namespaced by collection.
func (r *QueryRef) Fingerprint() string {
	return r.collection + "\x00" + query.Fingerprint(r.descriptor)
}

// isSameRef reports whether a and b denote the same collection and
// descriptor fingerprint — and so are safe to treat as one shared
// subscription.
func isSameRef(a, b *QueryRef) bool {
	return a.Fingerprint() == b.Fingerprint()
}
