// Package memstore implements docdb.Provider entirely in memory: each
// collection is a plain map from id to record, mutations mark listener
// groups dirty instead of notifying inline, and a flush pass delivers
// at most one notification per observer per scheduling boundary.
//
// It is grounded on the teacher's notify/dispatch machinery in
// nodestorage/v2/storage_impl.go: startWatching/broadcastEvent/
// removeSubscriber (dirty-event-to-many-subscribers fan-out, context-
// scoped subscriber lifecycle) adapted from "one MongoDB change stream
// feeding N subscriber channels" to "one dirty-mark set feeding N
// listener callbacks through docdb/sched," and FindOneAndUpdate's
// compare-before-notify loop (adapted here to compare against the
// last-delivered value per listener rather than against a version
// field, since records in this module carry no version).
package memstore

import (
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docdb"
	"docdb/dlog"
	"docdb/errs"
	"docdb/query"
	"docdb/sched"
	"docdb/values"
)

var _ docdb.Provider = (*Store)(nil)

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
const idLength = 16
const defaultMaxIDAttempts = 64

// EditOptions configures mutation behavior for a Store, following the
// teacher's Options/DefaultOptions/WithXxx pattern in options.go.
type EditOptions struct {
	// MaxIDAttempts bounds how many random ids AddItem will try before
	// giving up on a collision.
	MaxIDAttempts int
}

// EditOption mutates an EditOptions.
type EditOption func(*EditOptions)

// DefaultEditOptions returns the options New uses when none are given.
func DefaultEditOptions() *EditOptions {
	return &EditOptions{MaxIDAttempts: defaultMaxIDAttempts}
}

// WithMaxIDAttempts sets the id-collision retry bound. A non-positive
// value is ignored and the default is kept.
func WithMaxIDAttempts(n int) EditOption {
	return func(o *EditOptions) {
		if n > 0 {
			o.MaxIDAttempts = n
		}
	}
}

type itemKey struct {
	collection string
	id         string
}

type itemObserver struct {
	onNext    func(values.Record, bool, *values.Diff)
	onError   func(error)
	delivered bool
	lastOK    bool
	lastVal   values.Record
}

type queryEntry struct {
	descriptor  query.Descriptor
	observers   map[uuid.UUID]*queryObserver
	order       []uuid.UUID
	lastView    []query.Row
	hasLastView bool
}

type queryObserver struct {
	onNext    func([]query.Row, *values.Diff)
	onError   func(error)
	delivered bool
}

// Store is the in-memory docdb.Provider reference implementation.
type Store struct {
	mu sync.Mutex

	queue *sched.Queue

	collections map[string]map[string]values.Record

	itemObservers map[itemKey]map[uuid.UUID]*itemObserver
	itemOrder     map[itemKey][]uuid.UUID
	queryEntries  map[string]map[string]*queryEntry // collection -> fingerprint -> entry

	dirtyItems  map[itemKey]bool
	dirtyItemsQ []itemKey
	dirtyQuery  map[string]map[string]bool
	dirtyQueryQ []queryKey

	maxIDAttempts int

	flushQueued bool
	closed      bool
}

type queryKey struct {
	collection  string
	fingerprint string
}

// New creates a Store whose scheduling boundary is driven by queue.
func New(queue *sched.Queue, opts ...EditOption) *Store {
	o := DefaultEditOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Store{
		queue:         queue,
		maxIDAttempts: o.MaxIDAttempts,
		collections:   make(map[string]map[string]values.Record),
		itemObservers: make(map[itemKey]map[uuid.UUID]*itemObserver),
		itemOrder:     make(map[itemKey][]uuid.UUID),
		queryEntries:  make(map[string]map[string]*queryEntry),
		dirtyItems:    make(map[itemKey]bool),
		dirtyQuery:    make(map[string]map[string]bool),
	}
}

func (s *Store) collectionLocked(c string) map[string]values.Record {
	m, ok := s.collections[c]
	if !ok {
		m = make(map[string]values.Record)
		s.collections[c] = m
	}
	return m
}

// GetItem implements docdb.Provider.
func (s *Store) GetItem(collection, id string) (values.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.collections[collection][id]
	if !ok {
		return nil, false
	}
	return values.Clone(rec).(values.Record), true
}

// SetItem implements docdb.Provider.
func (s *Store) SetItem(collection, id string, record values.Record) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	coll := s.collectionLocked(collection)
	prior, existed := coll[id]
	next := values.Clone(record).(values.Record)
	if existed && values.Equal(prior, next) {
		s.mu.Unlock()
		return
	}
	coll[id] = next
	s.markItemDirtyLocked(collection, id)
	s.markAllQueriesDirtyLocked(collection)
	s.mu.Unlock()
	s.scheduleFlush()
}

// UpdateItem implements docdb.Provider.
func (s *Store) UpdateItem(collection, id string, updates []values.Update) {
	cur, ok := s.GetItem(collection, id)
	if !ok {
		cur = values.Record{}
	}
	next := values.UpdateRecord(cur, updates)
	s.SetItem(collection, id, next)
}

// DeleteItem implements docdb.Provider.
func (s *Store) DeleteItem(collection, id string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	coll := s.collections[collection]
	if _, existed := coll[id]; !existed {
		s.mu.Unlock()
		return
	}
	delete(coll, id)
	s.markItemDirtyLocked(collection, id)
	s.markAllQueriesDirtyLocked(collection)
	s.mu.Unlock()
	s.scheduleFlush()
}

// AddItem implements docdb.Provider.
func (s *Store) AddItem(collection string, record values.Record) string {
	s.mu.Lock()
	coll := s.collectionLocked(collection)
	maxAttempts := s.maxIDAttempts
	var id string
	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate := generateID()
		if _, exists := coll[candidate]; !exists {
			id = candidate
			break
		}
	}
	s.mu.Unlock()
	if id == "" {
		dlog.Error("memstore: exhausted id generation attempts", zap.String("collection", collection))
		panic(fmt.Errorf("memstore: exhausted %d id generation attempts for collection %q: %w", maxAttempts, collection, errs.ErrInvalidArgument))
	}
	s.SetItem(collection, id, record)
	return id
}

func generateID() string {
	buf := make([]byte, idLength)
	if _, err := rand.Read(buf); err != nil {
		panic("memstore: crypto/rand unavailable: " + err.Error())
	}
	out := make([]byte, idLength)
	for i, b := range buf {
		out[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return string(out)
}

// GetQuery implements docdb.Provider.
func (s *Store) GetQuery(collection string, d query.Descriptor) []query.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evaluateLocked(collection, d)
}

func (s *Store) evaluateLocked(collection string, d query.Descriptor) []query.Row {
	coll := s.collections[collection]
	rows := make([]query.Row, 0, len(coll))
	for id, rec := range coll {
		rows = append(rows, query.Row{ID: id, Record: values.Clone(rec).(values.Record)})
	}
	return query.Slice(rows, d)
}

// CountQuery implements docdb.Provider.
func (s *Store) CountQuery(collection string, d query.Descriptor) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll := s.collections[collection]
	count := 0
	for id, rec := range coll {
		if query.Match(id, rec, d) {
			count++
		}
	}
	if d.HasLimit && count > d.Limit {
		count = d.Limit
	}
	return count
}

// DeleteQuery implements docdb.Provider.
func (s *Store) DeleteQuery(collection string, d query.Descriptor) int {
	s.mu.Lock()
	rows := s.evaluateLocked(collection, d)
	s.mu.Unlock()

	for _, r := range rows {
		s.DeleteItem(collection, r.ID)
	}
	return len(rows)
}

// UpdateQuery implements docdb.Provider.
func (s *Store) UpdateQuery(collection string, d query.Descriptor, updates []values.Update) int {
	s.mu.Lock()
	rows := s.evaluateLocked(collection, d)
	s.mu.Unlock()

	for _, r := range rows {
		s.UpdateItem(collection, r.ID, updates)
	}
	return len(rows)
}

// SubscribeItem implements docdb.Provider.
func (s *Store) SubscribeItem(collection, id string, onNext func(values.Record, bool, *values.Diff), onError func(error)) func() {
	key := itemKey{collection, id}
	obsID := uuid.New()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return func() {}
	}
	if s.itemObservers[key] == nil {
		s.itemObservers[key] = make(map[uuid.UUID]*itemObserver)
	}
	s.itemObservers[key][obsID] = &itemObserver{onNext: onNext, onError: onError}
	s.itemOrder[key] = append(s.itemOrder[key], obsID)
	s.markItemDirtyLocked(collection, id)
	s.mu.Unlock()
	s.scheduleFlush()

	return func() { s.removeItemObserver(key, obsID) }
}

func (s *Store) removeItemObserver(key itemKey, obsID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obs := s.itemObservers[key]
	if obs == nil {
		return
	}
	delete(obs, obsID)
	order := s.itemOrder[key]
	for i, id := range order {
		if id == obsID {
			s.itemOrder[key] = append(order[:i], order[i+1:]...)
			break
		}
	}
	if len(obs) == 0 {
		delete(s.itemObservers, key)
		delete(s.itemOrder, key)
	}
}

// SubscribeQuery implements docdb.Provider.
func (s *Store) SubscribeQuery(collection string, d query.Descriptor, onNext func([]query.Row, *values.Diff), onError func(error)) func() {
	fp := query.Fingerprint(d)
	obsID := uuid.New()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return func() {}
	}
	byFP, ok := s.queryEntries[collection]
	if !ok {
		byFP = make(map[string]*queryEntry)
		s.queryEntries[collection] = byFP
	}
	entry, existed := byFP[fp]
	if !existed {
		entry = &queryEntry{descriptor: d, observers: make(map[uuid.UUID]*queryObserver)}
		byFP[fp] = entry
		// first subscriber: evaluate synchronously and store, per the
		// new-subscriber semantics — delivery itself still waits for the
		// next scheduling boundary.
		entry.lastView = s.evaluateLocked(collection, d)
		entry.hasLastView = true
	}
	entry.observers[obsID] = &queryObserver{onNext: onNext, onError: onError}
	entry.order = append(entry.order, obsID)
	s.markQueryDirtyLocked(collection, fp)
	s.mu.Unlock()
	s.scheduleFlush()

	return func() { s.removeQueryObserver(collection, fp, obsID) }
}

func (s *Store) removeQueryObserver(collection, fp string, obsID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byFP := s.queryEntries[collection]
	if byFP == nil {
		return
	}
	entry := byFP[fp]
	if entry == nil {
		return
	}
	delete(entry.observers, obsID)
	for i, id := range entry.order {
		if id == obsID {
			entry.order = append(entry.order[:i], entry.order[i+1:]...)
			break
		}
	}
	if len(entry.observers) == 0 {
		delete(byFP, fp)
		if len(byFP) == 0 {
			delete(s.queryEntries, collection)
		}
	}
}

// Close implements docdb.Provider.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.itemObservers = make(map[itemKey]map[uuid.UUID]*itemObserver)
	s.itemOrder = make(map[itemKey][]uuid.UUID)
	s.queryEntries = make(map[string]map[string]*queryEntry)
	s.dirtyItems = make(map[itemKey]bool)
	s.dirtyItemsQ = nil
	s.dirtyQuery = make(map[string]map[string]bool)
	s.dirtyQueryQ = nil
}
