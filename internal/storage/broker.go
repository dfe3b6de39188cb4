// ABOUTME: In-process fan-out of change events to realtime subscribers.
// ABOUTME: Each subscriber gets a buffered channel filtered by table; a reader that falls behind is cut off.
package storage

import (
	"sync"

	"github.com/2389-research/laulau/internal/models"
)

// subscriberBuffer is the per-subscriber channel capacity.
const subscriberBuffer = 64

type subscriber struct {
	ch     chan models.ChangeEvent
	tables map[models.Table]bool
}

// Broker delivers published events to every subscriber of the event's table.
type Broker struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool

	// OnOverflow, if set, is called when a subscriber is cut off for falling behind.
	OnOverflow func(table models.Table)
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[*subscriber]struct{})}
}

// Subscribe registers a subscriber for the given tables (all when empty).
// The returned func is idempotent and closes the channel.
func (b *Broker) Subscribe(tables ...models.Table) (<-chan models.ChangeEvent, func()) {
	if len(tables) == 0 {
		tables = models.AllTables
	}
	s := &subscriber{
		ch:     make(chan models.ChangeEvent, subscriberBuffer),
		tables: make(map[models.Table]bool, len(tables)),
	}
	for _, t := range tables {
		s.tables[t] = true
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[s]; ok {
				delete(b.subs, s)
				close(s.ch)
			}
		})
	}
}

// Publish delivers ev to matching subscribers without blocking. A subscriber
// whose buffer is full is removed and its channel closed, so it sees the end of
// its feed instead of a gap; it must resubscribe and reload.
func (b *Broker) Publish(ev models.ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		if !s.tables[ev.Table] {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			delete(b.subs, s)
			close(s.ch)
			if b.OnOverflow != nil {
				b.OnOverflow(ev.Table)
			}
		}
	}
}

// Len returns the number of live subscribers.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Closed reports whether Close has been called.
func (b *Broker) Closed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// Close closes every subscriber channel. Later subscriptions get a closed channel.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		close(s.ch)
		delete(b.subs, s)
	}
}
