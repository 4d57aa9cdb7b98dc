package events

import (
	"context"
	"sync"
)

// MemoryBus delivers events in publish order per topic within one process.
// Delivery is non-blocking: a subscriber that stops draining its channel
// loses events rather than stalling publishers.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[string][]*memorySub
}

type memorySub struct {
	ch     chan Event
	closed bool
}

const subscriberBuffer = 16

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string][]*memorySub)}
}

func (b *MemoryBus) Publish(_ context.Context, e Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs[e.Topic] {
		select {
		case sub.ch <- e:
		default:
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(topic string) (<-chan Event, func()) {
	sub := &memorySub{ch: make(chan Event, subscriberBuffer)}

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub.closed {
			return
		}
		sub.closed = true
		list := b.subs[topic]
		for i, s := range list {
			if s == sub {
				b.subs[topic] = append(list[:i], list[i+1:]...)
				break
			}
		}
		close(sub.ch)
	}
	return sub.ch, cancel
}
