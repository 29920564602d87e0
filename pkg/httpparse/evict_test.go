package httpparse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eunomia-bpf/agent-tracer/pkg/event"
)

func TestIdleEvictionFlushesOpenStreams(t *testing.T) {
	a := New(Config{IdleTimeout: 10 * time.Millisecond, SSEMerge: true})

	run(a,
		sslEvent("c1", "read", "HTTP/1.1 200 OK\r\nContent-Type: text/event-stream\r\n\r\n"),
		sslEvent("c1", "read", "data: orphan"),
	)
	require.Len(t, a.conns, 1)

	out := a.evictIdle(time.Now().Add(time.Minute))
	assert.Empty(t, a.conns, "idle state dropped")
	assert.Equal(t, uint64(1), a.Evictions())

	// The partial block and the terminal response both flush.
	var types []string
	for _, e := range out {
		types = append(types, e.Type())
	}
	assert.Contains(t, types, "sse.message")
	assert.Contains(t, types, "http.response")
}

func TestIdleEvictionSkipsLiveConnections(t *testing.T) {
	a := New(Config{IdleTimeout: time.Hour})
	run(a, sslEvent("c1", "read", "HTTP/1.1 200 OK\r\nContent-Length: 99\r\n\r\n"))

	// Event timestamps drive the idle deadline; "now" is still inside it.
	out := a.evictIdle(time.Unix(0, 1000))
	assert.Empty(t, out)
	assert.Len(t, a.conns, 1)
}

// End to end through Process: the analyzer contract (cancellation, state
// release, pass-through) holds when driven as a stream.
func TestProcessStreaming(t *testing.T) {
	a := New(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan event.Event, 4)
	out := a.Process(ctx, in)

	in <- sslEvent("c1", "read", "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok")
	e := <-out
	assert.Equal(t, "http.response", e.Type())

	close(in)
	for range out {
	}
}

func TestProcessDrainsOpenStateOnEndOfInput(t *testing.T) {
	a := New(Config{})
	in := make(chan event.Event, 2)
	out := a.Process(context.Background(), in)

	in <- sslEvent("c1", "read", "HTTP/1.0 200 OK\r\n\r\nidentity tail")
	close(in)

	var types []string
	for e := range out {
		types = append(types, e.Type())
	}
	assert.Contains(t, types, "http.response", "open identity body flushed at end of input")
}
