package server

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/eunomia-bpf/agent-tracer/pkg/event"
	"github.com/eunomia-bpf/agent-tracer/pkg/metrics"
)

// Subscriber receives broadcast events on a bounded queue.
type Subscriber struct {
	ID     string
	Events chan event.Event
}

// Broadcast fans events out to any number of subscribers. Each subscriber
// holds a bounded-capacity queue; when full, the oldest pending event is
// dropped and counted. The producer never blocks on a slow subscriber.
type Broadcast struct {
	capacity    int
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	dropped     atomic.Uint64
}

// NewBroadcast creates a broadcast channel with the given per-subscriber
// queue depth.
func NewBroadcast(capacity int) *Broadcast {
	if capacity <= 0 {
		capacity = 256
	}
	return &Broadcast{
		capacity:    capacity,
		subscribers: make(map[string]*Subscriber),
	}
}

// Subscribe registers a new subscriber.
func (b *Broadcast) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscriber{
		ID:     uuid.NewString(),
		Events: make(chan event.Event, b.capacity),
	}
	b.subscribers[sub.ID] = sub
	metrics.BroadcastSubscribers.Set(float64(len(b.subscribers)))
	return sub
}

// Unsubscribe removes a subscriber and closes its queue.
func (b *Broadcast) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub.ID]; !ok {
		return
	}
	delete(b.subscribers, sub.ID)
	close(sub.Events)
	metrics.BroadcastSubscribers.Set(float64(len(b.subscribers)))
}

// Publish delivers an event to every subscriber, dropping the oldest
// pending event of any full queue.
func (b *Broadcast) Publish(e event.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		select {
		case sub.Events <- e:
			continue
		default:
		}
		// Queue full: evict the oldest, then retry once. The second
		// select copes with a concurrent drain.
		select {
		case <-sub.Events:
			b.noteDrop()
		default:
		}
		select {
		case sub.Events <- e:
		default:
			b.noteDrop()
		}
	}
}

func (b *Broadcast) noteDrop() {
	metrics.BroadcastDropped.Inc()
	b.dropped.Add(1)
}

// Dropped returns the total number of events dropped to slow subscribers.
func (b *Broadcast) Dropped() uint64 {
	return b.dropped.Load()
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcast) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close unsubscribes everyone.
func (b *Broadcast) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subscribers {
		delete(b.subscribers, id)
		close(sub.Events)
	}
	metrics.BroadcastSubscribers.Set(0)
}
