package analyzer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eunomia-bpf/agent-tracer/pkg/event"
	"github.com/eunomia-bpf/agent-tracer/pkg/filter"
)

// tagAnalyzer appends its tag to each event, recording chain order.
type tagAnalyzer struct {
	tag string
}

func (a *tagAnalyzer) Name() string { return a.tag }

func (a *tagAnalyzer) Process(ctx context.Context, in <-chan event.Event) <-chan event.Event {
	return transform(ctx, in, 16, func(e event.Event, emit func(event.Event)) {
		order, _ := e.Data["order"].(string)
		e.Data["order"] = order + a.tag
		emit(e)
	})
}

func TestComposeAppliesRegistrationOrder(t *testing.T) {
	in := make(chan event.Event, 1)
	in <- event.Event{Data: map[string]any{}}
	close(in)

	out := Compose(context.Background(),
		[]Analyzer{&tagAnalyzer{"a"}, &tagAnalyzer{"b"}, &tagAnalyzer{"c"}}, in)

	e := <-out
	assert.Equal(t, "abc", e.Data["order"])
}

func TestComposeEmptyChainReturnsInput(t *testing.T) {
	in := make(chan event.Event)
	out := Compose(context.Background(), nil, in)
	assert.Equal(t, (<-chan event.Event)(in), out)
}

func TestFilterAnalyzerDropsRejected(t *testing.T) {
	f, err := filter.New("t", []string{"keep=yes"})
	require.NoError(t, err)

	in := make(chan event.Event, 3)
	in <- event.Event{Data: map[string]any{"keep": "yes", "n": float64(1)}}
	in <- event.Event{Data: map[string]any{"keep": "no"}}
	in <- event.Event{Data: map[string]any{"keep": "yes", "n": float64(2)}}
	close(in)

	var survivors []float64
	for e := range NewFilter(f, 0).Process(context.Background(), in) {
		n, _ := e.DataInt64("n")
		survivors = append(survivors, float64(n))
	}
	assert.Equal(t, []float64{1, 2}, survivors)
}

// Back-pressure: with link capacity 8 and a blocked consumer, a producer
// of 20 events must stall; resuming consumption drains all 20 in order
// with zero loss.
func TestBoundedLinkBackpressure(t *testing.T) {
	const total = 20
	const capacity = 8

	in := make(chan event.Event) // unbuffered: the analyzer's queue is the only slack

	out := transform(context.Background(), in, capacity, func(e event.Event, emit func(event.Event)) {
		emit(e)
	})

	var produced atomic.Int64
	go func() {
		for i := 0; i < total; i++ {
			in <- event.Event{Timestamp: int64(i), Data: map[string]any{}}
			produced.Add(1)
		}
		close(in)
	}()

	// Nobody consumes out yet: the producer must stall once the bounded
	// link plus the in-flight event are full.
	time.Sleep(200 * time.Millisecond)
	stalled := produced.Load()
	require.Less(t, stalled, int64(total), "producer should be blocked by back-pressure")
	require.LessOrEqual(t, stalled, int64(capacity+2))

	var got []int64
	for e := range out {
		got = append(got, e.Timestamp)
	}
	require.Len(t, got, total, "no loss after draining")
	for i, ts := range got {
		assert.Equal(t, int64(i), ts, "order preserved")
	}
}

func TestTransformStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan event.Event)

	out := transform(ctx, in, 1, func(e event.Event, emit func(event.Event)) {
		emit(e)
	})

	cancel()
	select {
	case _, ok := <-out:
		assert.False(t, ok, "output must close on cancellation")
	case <-time.After(time.Second):
		t.Fatal("analyzer did not terminate on cancellation")
	}
}
