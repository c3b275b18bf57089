package memstore

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docdb/dlog"
	"docdb/query"
	"docdb/values"
)

// markItemDirtyLocked records that (collection, id) needs attention at
// the next flush — because its record changed, or because a new
// observer needs its guaranteed first delivery. Callers must hold s.mu.
func (s *Store) markItemDirtyLocked(collection, id string) {
	key := itemKey{collection, id}
	if s.dirtyItems[key] {
		return
	}
	s.dirtyItems[key] = true
	s.dirtyItemsQ = append(s.dirtyItemsQ, key)
}

// markQueryDirtyLocked records that (collection, fingerprint) needs
// re-evaluation at the next flush. Callers must hold s.mu.
func (s *Store) markQueryDirtyLocked(collection, fingerprint string) {
	byFP, ok := s.dirtyQuery[collection]
	if !ok {
		byFP = make(map[string]bool)
		s.dirtyQuery[collection] = byFP
	}
	if byFP[fingerprint] {
		return
	}
	byFP[fingerprint] = true
	s.dirtyQueryQ = append(s.dirtyQueryQ, queryKey{collection, fingerprint})
}

// markAllQueriesDirtyLocked marks every live query against collection
// dirty — any item mutation can change any query's matched set, so a
// mutation conservatively dirties every query on that collection rather
// than trying to predict which descriptors it affects. Callers must
// hold s.mu.
func (s *Store) markAllQueriesDirtyLocked(collection string) {
	for fp := range s.queryEntries[collection] {
		s.markQueryDirtyLocked(collection, fp)
	}
}

func (s *Store) scheduleFlush() {
	s.mu.Lock()
	if s.closed || s.flushQueued {
		s.mu.Unlock()
		return
	}
	s.flushQueued = true
	s.mu.Unlock()
	s.queue.Post(s.flush)
}

// flush runs at a scheduling boundary. It takes a snapshot of whatever
// is dirty right now and clears the dirty sets before delivering
// anything, so that listeners registered by a callback invoked during
// this pass land in the cleared sets and are picked up by the next
// flush rather than re-entering this one.
func (s *Store) flush() {
	s.mu.Lock()
	s.flushQueued = false
	if s.closed {
		s.mu.Unlock()
		return
	}
	items := s.dirtyItemsQ
	s.dirtyItemsQ = nil
	for _, k := range items {
		delete(s.dirtyItems, k)
	}
	queries := s.dirtyQueryQ
	s.dirtyQueryQ = nil
	for _, qk := range queries {
		if byFP := s.dirtyQuery[qk.collection]; byFP != nil {
			delete(byFP, qk.fingerprint)
		}
	}
	s.mu.Unlock()

	s.flushItems(items)
	s.flushQueries(queries)
}

func (s *Store) flushItems(items []itemKey) {
	for _, key := range items {
		s.mu.Lock()
		rec, present := s.collections[key.collection][key.id]
		order := append([]uuid.UUID{}, s.itemOrder[key]...)
		s.mu.Unlock()

		var recClone query.Row
		if present {
			recClone = query.Row{ID: key.id, Record: values.Clone(rec).(values.Record)}
		}

		for _, obsID := range order {
			s.mu.Lock()
			obs, ok := s.itemObservers[key][obsID]
			s.mu.Unlock()
			if !ok {
				continue
			}
			changed := !obs.delivered || obs.lastOK != present || !values.Equal(obs.lastVal, recClone.Record)
			if !changed {
				continue
			}
			var diff *values.Diff
			if obs.delivered && obs.lastOK && present {
				d, err := values.ComputeDiff(obs.lastVal, recClone.Record)
				if err != nil {
					dlog.Error("memstore: computing item diff", zap.Error(err))
				} else {
					diff = d
				}
			}
			obs.delivered = true
			obs.lastOK = present
			obs.lastVal = recClone.Record
			if obs.onNext != nil {
				notifyItemObserver(obs.onNext, recClone.Record, present, diff)
			}
		}
	}
}

// notifyItemObserver invokes onNext with a recover guard: a panicking
// subscriber must not stop delivery to this item's other observers, or
// take down the shared flush goroutine.
func notifyItemObserver(onNext func(values.Record, bool, *values.Diff), rec values.Record, present bool, diff *values.Diff) {
	defer func() {
		if r := recover(); r != nil {
			dlog.ReportUnhandled(fmt.Errorf("memstore: recovered panic in item observer: %v", r))
		}
	}()
	onNext(rec, present, diff)
}

func (s *Store) flushQueries(keys []queryKey) {
	for _, qk := range keys {
		s.mu.Lock()
		byFP := s.queryEntries[qk.collection]
		var entry *queryEntry
		if byFP != nil {
			entry = byFP[qk.fingerprint]
		}
		s.mu.Unlock()
		if entry == nil {
			continue
		}

		newView := s.GetQuery(qk.collection, entry.descriptor)

		s.mu.Lock()
		prevView := entry.lastView
		hadPrev := entry.hasLastView
		changed := !hadPrev || !query.SameRows(prevView, newView)
		if changed {
			entry.lastView = newView
			entry.hasLastView = true
		}
		order := append([]uuid.UUID{}, entry.order...)
		view := entry.lastView
		s.mu.Unlock()

		var diff *values.Diff
		if changed && hadPrev {
			d, err := values.ComputeDiff(prevView, newView)
			if err != nil {
				dlog.Error("memstore: computing query diff", zap.Error(err))
			} else {
				diff = d
			}
		}

		for _, obsID := range order {
			s.mu.Lock()
			obs, ok := entry.observers[obsID]
			s.mu.Unlock()
			if !ok {
				continue
			}
			firstDelivery := !obs.delivered
			if !changed && obs.delivered {
				continue
			}
			obs.delivered = true
			if obs.onNext != nil {
				var d *values.Diff
				if !firstDelivery {
					d = diff
				}
				notifyQueryObserver(obs.onNext, view, d)
			}
		}
	}
}

// notifyQueryObserver invokes onNext with a recover guard: a panicking
// subscriber must not stop delivery to this query's other observers, or
// take down the shared flush goroutine.
func notifyQueryObserver(onNext func([]query.Row, *values.Diff), view []query.Row, diff *values.Diff) {
	defer func() {
		if r := recover(); r != nil {
			dlog.ReportUnhandled(fmt.Errorf("memstore: recovered panic in query observer: %v", r))
		}
	}()
	onNext(view, diff)
}
