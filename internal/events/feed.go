package events

import (
	"sort"
	"sync"
)

// Feed is a typed in-process observer list. Subscribers are called
// synchronously, in subscription order, on the publishing goroutine and
// outside the feed's lock, so a subscriber may unsubscribe itself.
type Feed[T any] struct {
	mu        sync.RWMutex
	listeners map[uint64]func(T)
	nextID    uint64
	replay    bool
	last      *T
	closed    bool
}

// NewFeed creates an empty feed. With replayLast set, a new subscriber is
// immediately called with the most recently published value, if any.
func NewFeed[T any](replayLast bool) *Feed[T] {
	return &Feed[T]{
		listeners: make(map[uint64]func(T)),
		replay:    replayLast,
	}
}

// Subscribe registers fn and returns a function removing it again.
// Subscribing to a closed feed registers nothing.
func (f *Feed[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	if fn == nil {
		panic("events: nil subscriber")
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return func() {}
	}
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	var last *T
	if f.replay && f.last != nil {
		v := *f.last
		last = &v
	}
	f.mu.Unlock()

	if last != nil {
		fn(*last)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.listeners, id)
			f.mu.Unlock()
		})
	}
}

// Publish delivers value to every current subscriber
func (f *Feed[T]) Publish(value T) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	if f.replay {
		v := value
		f.last = &v
	}
	ids := make([]uint64, 0, len(f.listeners))
	for id := range f.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(T), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, f.listeners[id])
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(value)
	}
}

// Close drops all subscribers; later publishes are ignored
func (f *Feed[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.listeners = make(map[uint64]func(T))
	f.last = nil
}

// Len returns the number of subscribers
func (f *Feed[T]) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.listeners)
}
