package analyzer

import (
	"context"

	"github.com/eunomia-bpf/agent-tracer/pkg/event"
)

// Analyzer is a stream transformer: it consumes an input event sequence
// and produces an output sequence. An analyzer may buffer, emit zero
// events, or emit many per input.
//
// Implementations must terminate promptly and release all held state when
// the context is cancelled or the input channel closes, and must close
// their output channel when done.
type Analyzer interface {
	// Name identifies the analyzer in logs and metrics.
	Name() string

	// Process starts the analyzer and returns its output sequence.
	Process(ctx context.Context, in <-chan event.Event) <-chan event.Event
}

// Compose chains analyzers in registration order: analyzers[0] sees the
// raw input, analyzers[k] sees analyzers[k-1]'s output. With no analyzers
// the input channel is returned unchanged.
func Compose(ctx context.Context, analyzers []Analyzer, in <-chan event.Event) <-chan event.Event {
	out := in
	for _, a := range analyzers {
		out = a.Process(ctx, out)
	}
	return out
}

// transform runs a one-in, zero-or-more-out function over a stream. It is
// the shared scaffolding for stateless analyzers: the goroutine returns on
// context cancellation without draining its input, and always closes its
// output.
func transform(ctx context.Context, in <-chan event.Event, capacity int, fn func(event.Event, func(event.Event))) <-chan event.Event {
	out := make(chan event.Event, capacity)
	emit := func(e event.Event) {
		select {
		case out <- e:
		case <-ctx.Done():
		}
	}
	go func() {
		defer close(out)
		for {
			select {
			case e, ok := <-in:
				if !ok {
					return
				}
				fn(e, emit)
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// DefaultLinkCapacity is the bounded channel depth between pipeline
// stages when no explicit capacity is configured.
const DefaultLinkCapacity = 1024
