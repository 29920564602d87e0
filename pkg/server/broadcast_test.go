package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eunomia-bpf/agent-tracer/pkg/event"
)

func TestBroadcastDeliversToAllSubscribers(t *testing.T) {
	b := NewBroadcast(8)
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	assert.Equal(t, 2, b.SubscriberCount())

	b.Publish(event.Event{Source: "ssl"})

	e1 := <-s1.Events
	e2 := <-s2.Events
	assert.Equal(t, "ssl", e1.Source)
	assert.Equal(t, "ssl", e2.Source)
}

// Slow subscribers lose their oldest pending event; the producer never
// blocks.
func TestBroadcastDropsOldestWhenFull(t *testing.T) {
	b := NewBroadcast(2)
	sub := b.Subscribe()

	for i := 0; i < 5; i++ {
		b.Publish(event.Event{Timestamp: int64(i)})
	}

	// Queue depth 2: the three oldest were dropped.
	assert.Equal(t, uint64(3), b.Dropped())
	e := <-sub.Events
	assert.Equal(t, int64(3), e.Timestamp)
	e = <-sub.Events
	assert.Equal(t, int64(4), e.Timestamp)
}

func TestBroadcastUnsubscribeClosesQueue(t *testing.T) {
	b := NewBroadcast(2)
	sub := b.Subscribe()
	b.Unsubscribe(sub)

	_, ok := <-sub.Events
	assert.False(t, ok)
	assert.Zero(t, b.SubscriberCount())

	// Publishing to nobody is a no-op.
	b.Publish(event.Event{})

	// Double unsubscribe is safe.
	b.Unsubscribe(sub)
}

func TestBroadcastClose(t *testing.T) {
	b := NewBroadcast(2)
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	b.Close()

	_, ok := <-s1.Events
	require.False(t, ok)
	_, ok = <-s2.Events
	require.False(t, ok)
	assert.Zero(t, b.SubscriberCount())
}
