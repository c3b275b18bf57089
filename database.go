package docdb

import "docdb/errs"

// CollectionSchema presently carries no field-level information — the
// spec explicitly defers field validation to callers. It exists as a
// named type so a richer schema can be introduced later without
// changing Database's constructor signature.
type CollectionSchema struct{}

// Schema names every collection a Database will serve.
type Schema map[string]CollectionSchema

// Options configures a Database. Construct one with DefaultOptions and
// the WithXxx functions below, following the teacher's
// Options/DefaultOptions/WithXxx pattern in options.go.
type Options struct {
	// StrictSchema panics on any Collection/Item/Query call naming a
	// collection absent from the Database's Schema. Disable it with
	// WithLenientSchema to let a Database serve collections outside the
	// schema it was constructed with.
	StrictSchema bool
}

// Option mutates an Options.
type Option func(*Options)

// DefaultOptions returns the options NewDatabase uses when none are
// given: StrictSchema enabled.
func DefaultOptions() *Options {
	return &Options{StrictSchema: true}
}

// WithLenientSchema disables schema enforcement: collections absent
// from Schema are served rather than panicking.
func WithLenientSchema() Option {
	return func(o *Options) {
		o.StrictSchema = false
	}
}

// Database is the reference layer entry point: it binds a Schema to a
// Provider and hands out ItemRef/QueryRef facades over named
// collections.
type Database struct {
	schema   Schema
	provider Provider
	opts     *Options
}

// NewDatabase creates a Database dispatching to provider, serving only
// the collections named in schema unless WithLenientSchema is given.
func NewDatabase(schema Schema, provider Provider, opts ...Option) *Database {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Database{schema: schema, provider: provider, opts: o}
}

// Collection returns an unfiltered QueryRef over name, i.e. its
// convenience "query the whole collection" entry point.
func (db *Database) Collection(name string) *QueryRef {
	db.mustKnow(name)
	return newQueryRef(db, name, Descriptor{})
}

// Item returns an ItemRef for (collection, id).
func (db *Database) Item(collection, id string) *ItemRef {
	db.mustKnow(collection)
	return &ItemRef{db: db, collection: collection, id: id}
}

// Query returns a QueryRef for collection, starting from an unfiltered
// descriptor that builder methods can refine.
func (db *Database) Query(collection string) *QueryRef {
	return db.Collection(collection)
}

// Close releases the underlying provider's resources.
func (db *Database) Close() {
	db.provider.Close()
}

func (db *Database) mustKnow(collection string) {
	if !db.opts.StrictSchema {
		return
	}
	if _, ok := db.schema[collection]; !ok {
		panic(errs.NewDescriptorError("collection", collection, "unknown collection: not present in schema"))
	}
}
