// Package state implements the reactive cell primitive: a typed value
// with pending/error/age/observer-count attributes, coalesced
// scheduling-boundary delivery, and promise supersession.
//
// It is grounded on the teacher's Watch/Subscriber[T] bookkeeping in
// nodestorage/v2/storage_impl.go (per-observer id, cancel-on-remove,
// best-effort delivery) adapted from "broadcast to N independent
// channels" to "coalesce into one delivery per observer through a
// shared scheduling queue."
package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"docdb/dlog"
	"docdb/sched"
	"docdb/values"
)

// Result is the outcome of a promise-of-value passed to Set.
type Result[T any] struct {
	Value T
	Err   error
}

type observer[T any] struct {
	id      uuid.UUID
	onNext  func(T, *values.Diff)
	onError func(error)
}

// State is a reactive cell of type T.
type State[T any] struct {
	mu sync.Mutex

	queue *sched.Queue

	value      T
	hasValue   bool
	pending    bool
	err        error
	lastUpdate time.Time
	generation uint64

	observers      map[uuid.UUID]*observer[T]
	order          []uuid.UUID
	deliveryQueued bool
	closed         bool

	lastDelivered    T
	hasLastDelivered bool
}

// New creates a State already holding v.
func New[T any](queue *sched.Queue, v T) *State[T] {
	return &State[T]{
		queue:      queue,
		value:      v,
		hasValue:   true,
		lastUpdate: time.Now(),
		observers:  make(map[uuid.UUID]*observer[T]),
	}
}

// NewPending creates a State with no value yet, pending until the first
// Set resolves it.
func NewPending[T any](queue *sched.Queue) *State[T] {
	return &State[T]{
		queue:     queue,
		pending:   true,
		observers: make(map[uuid.UUID]*observer[T]),
	}
}

// Value returns the current value and whether one is currently present
// (loaded and not errored).
func (s *State[T]) Value() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasValue || s.err != nil {
		var zero T
		return zero, false
	}
	return s.value, true
}

// Pending reports whether a next value is currently awaited.
func (s *State[T]) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Err returns the error from the latest failed resolution, if any.
func (s *State[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Age reports the time since the last non-pending update. It is zero if
// the state has never resolved a value.
func (s *State[T]) Age() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastUpdate.IsZero() {
		return 0
	}
	return time.Since(s.lastUpdate)
}

// Observers returns the count of live subscribers.
func (s *State[T]) Observers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observers)
}

// Closed reports whether Close has been called.
func (s *State[T]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Set accepts either a T or a promise of one, typed as
// <-chan Result[T]. Values equal to the current value by deep
// structural equality are a no-op and do not notify. A promise marks
// the state pending; when it resolves, the resolved value is applied
// only if no later Set has superseded it.
func (s *State[T]) Set(v any) {
	switch val := v.(type) {
	case <-chan Result[T]:
		s.setPromise(val)
	case T:
		s.setValue(val, nil)
	default:
		panic("state: Set called with a value that is neither T nor <-chan Result[T]")
	}
}

func (s *State[T]) setValue(v T, err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if err == nil && !s.pending && s.hasValue && s.err == nil && values.Equal(s.value, v) {
		s.mu.Unlock()
		return
	}
	s.value = v
	s.hasValue = err == nil
	s.pending = false
	s.err = err
	s.lastUpdate = time.Now()
	s.generation++
	s.mu.Unlock()
	s.scheduleDelivery()
}

func (s *State[T]) setPromise(p <-chan Result[T]) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = true
	s.err = nil
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	go func() {
		res, ok := <-p
		if !ok {
			return
		}
		s.resolvePromise(gen, res)
	}()
}

func (s *State[T]) resolvePromise(gen uint64, res Result[T]) {
	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.pending = false
	if res.Err != nil {
		s.err = res.Err
	} else {
		s.value = res.Value
		s.hasValue = true
		s.err = nil
		s.lastUpdate = time.Now()
	}
	s.mu.Unlock()
	s.scheduleDelivery()
}

// Update applies fn to the current value and sets the result, per the
// same equality and notification rules as Set.
func (s *State[T]) Update(fn func(T) T) {
	s.mu.Lock()
	cur := s.value
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	s.setValue(fn(cur), nil)
}

// Subscribe registers an observer. onNext is never called synchronously
// from Subscribe — it, or onError, is invoked once at the next
// scheduling boundary with the current value or error, and again on
// every subsequent delivery. The second onNext argument is a diff against
// the value most recently delivered to this State's observers, or nil
// when there is nothing to diff against (the first delivery, or a
// delivery whose value is not diffable — see values.ComputeDiff). onError
// may be nil; an error delivered to a subscriber with no error handler is
// routed to dlog's error sink.
func (s *State[T]) Subscribe(onNext func(T, *values.Diff), onError func(error)) (unsubscribe func()) {
	id := uuid.New()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return func() {}
	}
	s.observers[id] = &observer[T]{id: id, onNext: onNext, onError: onError}
	s.order = append(s.order, id)
	s.mu.Unlock()

	s.scheduleDelivery()

	return func() { s.removeObserver(id) }
}

func (s *State[T]) removeObserver(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.observers[id]; !ok {
		return
	}
	delete(s.observers, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Close transitions the state to terminal: no further notifications are
// delivered and all observers are released.
func (s *State[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.observers = make(map[uuid.UUID]*observer[T])
	s.order = nil
	s.mu.Unlock()
}

func (s *State[T]) scheduleDelivery() {
	s.mu.Lock()
	if s.closed || s.deliveryQueued {
		s.mu.Unlock()
		return
	}
	s.deliveryQueued = true
	s.mu.Unlock()
	s.queue.Post(s.deliver)
}

// deliver runs at a scheduling boundary, delivering the latest snapshot
// to every observer registered at that moment, in registration order.
// Observers of a pending, non-errored state receive nothing this round
// — they are caught by a later delivery once the state resolves.
func (s *State[T]) deliver() {
	s.mu.Lock()
	s.deliveryQueued = false
	if s.closed {
		s.mu.Unlock()
		return
	}
	val := s.value
	pending := s.pending
	err := s.err
	prev := s.lastDelivered
	hasPrev := s.hasLastDelivered
	if err == nil && !pending {
		s.lastDelivered = val
		s.hasLastDelivered = true
	}
	obs := make([]*observer[T], 0, len(s.order))
	for _, id := range s.order {
		if o, ok := s.observers[id]; ok {
			obs = append(obs, o)
		}
	}
	s.mu.Unlock()

	var diff *values.Diff
	if err == nil && !pending && hasPrev {
		d, derr := values.ComputeDiff(prev, val)
		if derr != nil {
			dlog.ReportUnhandled(fmt.Errorf("state: computing diff: %w", derr))
		} else {
			diff = d
		}
	}

	for _, o := range obs {
		if err != nil {
			deliverToObserver(func() {
				if o.onError != nil {
					o.onError(err)
				} else {
					dlog.ReportUnhandled(err)
				}
			})
			continue
		}
		if pending {
			continue
		}
		if o.onNext != nil {
			deliverToObserver(func() { o.onNext(val, diff) })
		}
	}
}

// deliverToObserver runs a single observer callback with a recover guard
// so a panicking subscriber cannot stop delivery to the others, or kill
// the shared scheduling queue's worker goroutine.
func deliverToObserver(call func()) {
	defer func() {
		if r := recover(); r != nil {
			dlog.ReportUnhandled(fmt.Errorf("state: recovered panic in observer callback: %v", r))
		}
	}()
	call()
}
