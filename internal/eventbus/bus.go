// Package eventbus is an in-process publish/subscribe bus used by the local
// host to deliver upstream state changes.
package eventbus

import "sync"

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Bus delivers each published event to every subscriber, synchronously and
// in subscription order. Events are never dropped or reordered.
type Bus[T any] struct {
	mu     sync.RWMutex
	subs   []subscriber[T]
	nextID uint64
	closed bool
}

// New creates a new Bus.
func New[T any]() *Bus[T] { return &Bus[T]{} }

// Publish calls every subscriber with e. Handlers run outside the bus lock
// and may unsubscribe themselves.
func (b *Bus[T]) Publish(e T) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	subs := make([]subscriber[T], len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()
	for _, s := range subs {
		s.fn(e)
	}
}

// Subscribe registers fn and returns a function removing it. Subscribing to a
// closed bus is a no-op.
func (b *Bus[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber[T]{id: id, fn: fn})
	var once sync.Once
	return func() { once.Do(func() { b.remove(id) }) }
}

func (b *Bus[T]) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Len returns the number of subscribers.
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close drops all subscribers; later publishes are ignored.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	b.closed = true
	b.subs = nil
	b.mu.Unlock()
}
