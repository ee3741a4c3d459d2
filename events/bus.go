// Package events delivers queue lifecycle events to subscribers in
// emission order, without polling.
package events

import (
	"sort"
	"sync"

	"github.com/greengoods/gardenqueue/job"
)

// Bus fans queue events out to zero or more subscribers. Delivery is
// synchronous and ordered; unsubscribing during delivery is safe and
// does not drop other subscribers' deliveries. Handlers observe only;
// they cannot mutate engine state through the event.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[int]func(job.Event)
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(job.Event))}
}

// Subscribe registers a handler and returns its unsubscribe function.
// Subscribing the same handler twice yields two independent deliveries.
func (b *Bus) Subscribe(fn func(job.Event)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	b.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
		})
	}
}

// Publish delivers the event to every current subscriber in
// subscription order. The subscriber set is snapshotted first, so a
// handler unsubscribing itself or others mid-delivery cannot corrupt
// iteration.
func (b *Bus) Publish(ev job.Event) {
	b.mu.Lock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]func(job.Event), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, b.subs[id])
	}
	b.mu.Unlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

// SubscriberCount returns the current number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
