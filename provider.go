// Package docdb is the reference layer: Database, ItemRef, QueryRef,
// dispatching to a pluggable Provider.
//
// The Provider boundary is grounded on the retrieval pack's
// gocloud.dev/docstore/driver.Collection (other_examples), generalized
// down from its batched-action (RunActions/RunGetQuery/RunUpdateQuery)
// shape to the simpler per-call synchronous boundary this module
// actually needs, and on the teacher's Storage[T] interface
// (nodestorage/v2/storage.go) for per-method documentation density and
// naming register.
package docdb

import (
	"docdb/query"
	"docdb/values"
)

// Provider is the storage boundary a Database dispatches every
// operation to. A concrete Provider owns one or more collections, each
// a mapping from document id to record, plus whatever listener
// bookkeeping it needs to honor Subscribe* deliveries.
//
// memstore.Store is the in-memory reference implementation; a
// network-backed provider (a remote collaborator per this module's
// scope) would implement the same interface.
type Provider interface {
	// GetItem returns the record stored at (collection, id), or
	// (nil, false) if absent.
	GetItem(collection, id string) (values.Record, bool)

	// SetItem writes record at (collection, id). A record deeply equal
	// to the one already stored is a no-op.
	SetItem(collection, id string, record values.Record)

	// UpdateItem applies updates to the record at (collection, id),
	// treating an absent record as an empty one.
	UpdateItem(collection, id string, updates []values.Update)

	// DeleteItem removes (collection, id) if present.
	DeleteItem(collection, id string)

	// AddItem stores record under a freshly generated id and returns it.
	AddItem(collection string, record values.Record) string

	// GetQuery evaluates d against collection and returns the matching
	// rows, filtered, sorted and sliced.
	GetQuery(collection string, d query.Descriptor) []query.Row

	// CountQuery evaluates d's filters against collection and returns
	// the match count, capped at d.Limit when set.
	CountQuery(collection string, d query.Descriptor) int

	// DeleteQuery deletes every row currently matching d and returns
	// the count deleted.
	DeleteQuery(collection string, d query.Descriptor) int

	// UpdateQuery applies updates to every row currently matching d and
	// returns the count updated.
	UpdateQuery(collection string, d query.Descriptor, updates []values.Update) int

	// SubscribeItem registers an observer for (collection, id). The
	// observer is delivered the current value at the next scheduling
	// boundary and on every subsequent change. The third onNext argument
	// is a diff against the value most recently delivered to this
	// observer, or nil when there is nothing to diff against (the first
	// delivery, or a transition to/from absent).
	SubscribeItem(collection, id string, onNext func(values.Record, bool, *values.Diff), onError func(error)) (unsubscribe func())

	// SubscribeQuery registers an observer for d's view of collection,
	// delivered at the next scheduling boundary and on every subsequent
	// change to the view. The second onNext argument is a diff against
	// the view most recently delivered to this observer, or nil on first
	// delivery.
	SubscribeQuery(collection string, d query.Descriptor, onNext func([]query.Row, *values.Diff), onError func(error)) (unsubscribe func())

	// Close releases all resources the provider holds: pending timers,
	// background goroutines, listener tables.
	Close()
}
