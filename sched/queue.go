// Package sched implements the single shared microtask-style queue that
// docdb uses to model the "scheduling boundary" the reference model
// relies on for coalesced notification delivery.
//
// The caller creates a Queue and hands the same one to the Provider
// (memstore.New) and to every State it creates (state.New), so that all
// of their deliveries share one worker. docdb.NewDatabase does not create
// or take a Queue itself.
package sched

import (
	"fmt"
	"sync"

	"docdb/dlog"
)

// Queue runs posted work on a single background goroutine, in the order
// it was posted. Work posted from inside a running job is appended to the
// same queue rather than re-entering the caller's stack, which is what
// gives State and the memory provider their "no synchronous re-entrancy"
// guarantee.
type Queue struct {
	mu      sync.Mutex
	jobs    []func()
	wake    chan struct{}
	pending sync.WaitGroup
	closeMu sync.Mutex
	closed  bool
	done    chan struct{}
}

// New creates a Queue and starts its worker goroutine.
func New() *Queue {
	q := &Queue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for range q.wake {
		for {
			q.mu.Lock()
			if len(q.jobs) == 0 {
				q.mu.Unlock()
				break
			}
			job := q.jobs[0]
			q.jobs = q.jobs[1:]
			q.mu.Unlock()

			runJob(job)
			q.pending.Done()
		}
	}
}

// runJob runs a single job with a recover guard: a panicking job must not
// take down the worker goroutine shared by every State and Provider on the
// Database, or every other subscriber would silently stop receiving
// deliveries forever. The panic is routed to the same process-wide sink
// used for unhandled observer errors.
func runJob(job func()) {
	defer func() {
		if r := recover(); r != nil {
			dlog.ReportUnhandled(fmt.Errorf("sched: recovered panic in queued job: %v", r))
		}
	}()
	job()
}

// Post schedules fn to run on the queue's worker goroutine. Post never
// runs fn synchronously, including when called from inside another job —
// that is the mechanism by which mutations made from an observer are
// deferred to the next flush instead of re-entering immediately.
func (q *Queue) Post(fn func()) {
	q.pending.Add(1)
	q.mu.Lock()
	q.jobs = append(q.jobs, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Drain blocks until every job posted so far — and every job those jobs
// transitively post — has run. It is the deterministic stand-in for
// "wait for the next scheduling boundary" in tests; production code
// should not need to call it.
func (q *Queue) Drain() {
	q.pending.Wait()
}

// Close stops the worker goroutine once it has run the jobs already
// posted; it blocks until then. Close is idempotent. Post must not be
// called after Close.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.wake)
	<-q.done
}
