// Package sourcecache implements the deduplicating source cache: a
// process-wide mapping from fingerprint string to a reference-counted
// state.State, so independent callers requesting the same
// (fetcher, args) or (subscription, args) share one in-flight operation.
//
// It is grounded on the teacher's cache.MemoryCache[T]
// (nodestorage/v2/cache/memory.go): the map+mutex shape is the same, but
// eviction is adapted from a periodic ticker sweep over many
// independent TTLs (right when every key expires on its own schedule)
// to one time.AfterFunc armed per key on last-unsubscribe and cancelled
// on re-acquire (right for "nobody is listening to this key anymore").
package sourcecache

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"docdb/dlog"
	"docdb/state"
	"docdb/values"
)

// DefaultGrace is the default window a key survives with no consumers
// before it is evicted and closed.
const DefaultGrace = 60 * time.Second

// CacheOptions configures a Cache. Construct one with DefaultCacheOptions
// and the WithXxx functions below, following the teacher's
// Options/DefaultOptions/WithXxx pattern in options.go.
type CacheOptions struct {
	// Grace is the window a key survives with no consumers before it is
	// evicted and closed.
	Grace time.Duration
}

// CacheOption mutates a CacheOptions.
type CacheOption func(*CacheOptions)

// DefaultCacheOptions returns the options New uses when none are given:
// DefaultGrace.
func DefaultCacheOptions() *CacheOptions {
	return &CacheOptions{Grace: DefaultGrace}
}

// WithGrace sets the eviction grace window. A non-positive value is
// ignored and DefaultGrace is kept.
func WithGrace(grace time.Duration) CacheOption {
	return func(o *CacheOptions) {
		if grace > 0 {
			o.Grace = grace
		}
	}
}

type entry[T any] struct {
	st                *state.State[T]
	refs              int
	timer             *time.Timer
	subscribed        bool
	unsubscribeSource func()
}

// Cache is a fingerprint-keyed, reference-counted cache of
// state.State[T] values.
type Cache[T any] struct {
	mu      sync.Mutex
	grace   time.Duration
	entries map[string]*entry[T]
}

// New creates a Cache. With no options, keys are evicted DefaultGrace
// after their last subscriber unsubscribes.
func New[T any](opts ...CacheOption) *Cache[T] {
	o := DefaultCacheOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Cache[T]{grace: o.Grace, entries: make(map[string]*entry[T])}
}

// Acquire returns the State for key, creating it via factory if absent.
// Any pending eviction timer for key is cancelled.
func (c *Cache[T]) Acquire(key string, factory func() *state.State[T]) *state.State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		e = &entry[T]{st: factory()}
		c.entries[key] = e
	}
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	return e.st
}

// Subscribe is the sanctioned way to observe a cached State: it counts
// as one consumer reference against key, arming the grace timer when
// the last subscriber releases it. Subscribing to a key never acquired
// is a no-op returning a no-op unsubscribe.
func (c *Cache[T]) Subscribe(key string, onNext func(T, *values.Diff), onError func(error)) func() {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return func() {}
	}
	e.refs++
	st := e.st
	c.mu.Unlock()

	unsub := st.Subscribe(onNext, onError)

	var once sync.Once
	return func() {
		once.Do(func() {
			unsub()
			c.release(key)
		})
	}
}

func (c *Cache[T]) release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs < 0 {
		e.refs = 0
	}
	if e.refs > 0 {
		return
	}
	e.timer = time.AfterFunc(c.grace, func() { c.evict(key) })
}

func (c *Cache[T]) evict(key string) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || e.refs > 0 {
		c.mu.Unlock()
		return
	}
	delete(c.entries, key)
	c.mu.Unlock()

	if e.unsubscribeSource != nil {
		e.unsubscribeSource()
	}
	e.st.Close()
	dlog.Debug("sourcecache: evicted idle entry", zap.String("key", key))
}

// Refresh fetches a new value for key if its State has no value yet or
// its age exceeds maxAge, and it is neither pending nor actively
// subscribed via SubscribeTo. A key never acquired is a no-op.
func (c *Cache[T]) Refresh(key string, fetcher func() <-chan state.Result[T], maxAge time.Duration) {
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		return
	}
	if e.subscribed || e.st.Pending() {
		return
	}
	if _, hasValue := e.st.Value(); hasValue && e.st.Age() <= maxAge {
		return
	}
	e.st.Set(fetcher())
}

// SubscribeTo arms a live update source for key, if none is active yet.
// subscriber is invoked with the cached State to obtain an unsubscribe
// callback, which is stored and run on eviction. While a source
// subscription is active, Refresh is a no-op for that key. A key never
// acquired is a no-op.
func (c *Cache[T]) SubscribeTo(key string, subscriber func(*state.State[T]) func()) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || e.subscribed {
		c.mu.Unlock()
		return
	}
	e.subscribed = true
	st := e.st
	c.mu.Unlock()

	unsub := subscriber(st)

	c.mu.Lock()
	e.unsubscribeSource = unsub
	c.mu.Unlock()
}

// Close evicts every entry immediately, closing its State and
// unsubscribing any active source. Intended for shutdown and test
// teardown.
func (c *Cache[T]) Close() {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[string]*entry[T])
	c.mu.Unlock()

	for _, e := range entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		if e.unsubscribeSource != nil {
			e.unsubscribeSource()
		}
		e.st.Close()
	}
}
