// Package paginate implements cursor pagination over a sorted, limited
// QueryRef: a growing ordered list, extended forward past the last
// element or backward before the first, backed by a state.State so
// callers can subscribe to the accumulated window the same way they
// subscribe to any other reactive value.
//
// It is grounded on the teacher's cursor-less FindMany (plain
// filter+sort, no native pagination in the copied slice) combined with
// the retrieval pack's docstore/driver.Query Limit/OrderByField fields:
// since nothing in the pack implements cursor pagination directly, this
// package builds cursors out of the existing query machinery — a
// secondary Descriptor adding a strict inequality on the primary sort
// field — rather than introducing a new storage primitive.
package paginate

import (
	"sync"

	"docdb"
	"docdb/errs"
	"docdb/query"
	"docdb/sched"
	"docdb/state"
	"docdb/values"
)

// Pagination wraps a sorted-and-limited QueryRef and maintains a
// growing ordered window over it.
type Pagination struct {
	mu       sync.Mutex
	base     *docdb.QueryRef
	st       *state.State[[]docdb.Row]
	items    []docdb.Row
	complete bool
}

// New creates a Pagination over ref, whose descriptor must carry at
// least one sort and a limit.
func New(queue *sched.Queue, ref *docdb.QueryRef) (*Pagination, error) {
	d := ref.Descriptor()
	if len(d.Sorts) == 0 {
		return nil, errs.NewDescriptorError("paginate", "", "requires at least one sort")
	}
	if !d.HasLimit {
		return nil, errs.NewDescriptorError("paginate", "", "requires a limit")
	}

	p := &Pagination{base: ref}
	first := ref.Value()
	p.items = first
	p.complete = len(first) < d.Limit
	p.st = state.New(queue, cloneRows(first))
	return p, nil
}

// Value returns the current accumulated window.
func (p *Pagination) Value() []docdb.Row {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneRows(p.items)
}

// Complete reports whether the most recently loaded forward page (the
// first page loaded by New or Reset, or the latest Forward) returned
// fewer rows than the page limit, meaning there is nothing further to
// load.
func (p *Pagination) Complete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.complete
}

// Subscribe delegates to the underlying state.
func (p *Pagination) Subscribe(onNext func([]docdb.Row, *values.Diff), onError func(error)) func() {
	return p.st.Subscribe(onNext, onError)
}

// Forward extends the window past the current last element using a
// secondary "after last" query on the primary sort field. It is a
// no-op once Complete is true.
func (p *Pagination) Forward() {
	p.mu.Lock()
	if p.complete || len(p.items) == 0 {
		p.mu.Unlock()
		return
	}
	pivot := p.items[len(p.items)-1]
	d := p.base.Descriptor()
	p.mu.Unlock()

	cursor := afterCursor(d, pivot, d.Sorts[0].Direction)
	next := p.base.WithDescriptor(cursor).Value()

	p.mu.Lock()
	p.items = append(p.items, next...)
	p.complete = len(next) < d.Limit
	snapshot := cloneRows(p.items)
	p.mu.Unlock()

	p.st.Set(snapshot)
}

// Backward extends the window before the current first element using a
// secondary "before first" query on the primary sort field.
func (p *Pagination) Backward() {
	p.mu.Lock()
	if len(p.items) == 0 {
		p.mu.Unlock()
		return
	}
	pivot := p.items[0]
	d := p.base.Descriptor()
	p.mu.Unlock()

	cursor := beforeCursor(d, pivot, d.Sorts[0].Direction)
	prev := p.base.WithDescriptor(cursor).Value()
	reverseRows(prev)

	p.mu.Lock()
	p.items = append(append([]docdb.Row{}, prev...), p.items...)
	snapshot := cloneRows(p.items)
	p.mu.Unlock()

	p.st.Set(snapshot)
}

// Reset drops the accumulated window and reloads the first page. Use
// when the anchor record may no longer exist (e.g. deleted) and the
// pagination needs to recover without discarding the Pagination object.
func (p *Pagination) Reset() {
	d := p.base.Descriptor()
	first := p.base.Value()

	p.mu.Lock()
	p.items = first
	p.complete = len(first) < d.Limit
	snapshot := cloneRows(p.items)
	p.mu.Unlock()

	p.st.Set(snapshot)
}

func pivotValue(row docdb.Row, field string) any {
	if field == query.IDField {
		return row.ID
	}
	return row.Record[field]
}

func afterCursor(d docdb.Descriptor, pivot docdb.Row, primaryDir query.Direction) docdb.Descriptor {
	field := d.Sorts[0].Field
	op := query.OpGT
	if primaryDir == query.Desc {
		op = query.OpLT
	}
	return d.WithFilter(query.Filter{Field: field, Op: op, Operand: pivotValue(pivot, field)})
}

func beforeCursor(d docdb.Descriptor, pivot docdb.Row, primaryDir query.Direction) docdb.Descriptor {
	field := d.Sorts[0].Field
	op := query.OpLT
	if primaryDir == query.Desc {
		op = query.OpGT
	}
	flipped := d.WithFilter(query.Filter{Field: field, Op: op, Operand: pivotValue(pivot, field)})
	flipped.Sorts = append([]query.SortSpec{}, flipped.Sorts...)
	if flipped.Sorts[0].Direction == query.Asc {
		flipped.Sorts[0].Direction = query.Desc
	} else {
		flipped.Sorts[0].Direction = query.Asc
	}
	return flipped
}

func reverseRows(rows []docdb.Row) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}

func cloneRows(rows []docdb.Row) []docdb.Row {
	out := make([]docdb.Row, len(rows))
	copy(out, rows)
	return out
}
