package runner

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/eunomia-bpf/agent-tracer/pkg/analyzer"
	"github.com/eunomia-bpf/agent-tracer/pkg/event"
)

// FakeRunner replays canned probe stdout lines as an event sequence. It
// exercises the same line parser as ProbeRunner (config preamble,
// malformed-line counting) without a child process. For tests and demos.
type FakeRunner struct {
	name      string
	lines     []string
	delay     time.Duration
	analyzers []analyzer.Analyzer
	linkCap   int

	parser lineParser
	state  atomic.Value
	cancel context.CancelFunc
	done   chan struct{}
}

// FakeOption tweaks a FakeRunner.
type FakeOption func(*FakeRunner)

// WithFakeAnalyzers sets the analyzer chain.
func WithFakeAnalyzers(analyzers ...analyzer.Analyzer) FakeOption {
	return func(r *FakeRunner) { r.analyzers = analyzers }
}

// WithFakeDelay spaces out emitted events.
func WithFakeDelay(d time.Duration) FakeOption {
	return func(r *FakeRunner) { r.delay = d }
}

// WithFakeLinkCapacity sets the bounded channel depth.
func WithFakeLinkCapacity(n int) FakeOption {
	return func(r *FakeRunner) {
		if n > 0 {
			r.linkCap = n
		}
	}
}

// NewFakeRunner builds a synthetic runner emitting the given stdout lines.
func NewFakeRunner(name string, lines []string, opts ...FakeOption) *FakeRunner {
	r := &FakeRunner{
		name:    name,
		lines:   lines,
		linkCap: analyzer.DefaultLinkCapacity,
		done:    make(chan struct{}),
	}
	r.parser = lineParser{source: name, clock: &event.Clock{}}
	r.state.Store(StateCreated)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name implements Runner.
func (r *FakeRunner) Name() string { return r.name }

// State implements Runner.
func (r *FakeRunner) State() State { return r.state.Load().(State) }

// ProbeConfig returns the recorded configuration preamble, if any.
func (r *FakeRunner) ProbeConfig() map[string]any { return r.parser.ProbeConfig() }

// ParseErrors returns the count of malformed lines discarded.
func (r *FakeRunner) ParseErrors() uint64 { return r.parser.ParseErrors() }

// Run implements Runner.
func (r *FakeRunner) Run(ctx context.Context) (<-chan event.Event, error) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.state.Store(StateRunning)

	raw := make(chan event.Event, r.linkCap)
	go func() {
		defer close(r.done)
		defer close(raw)
		defer r.state.Store(StateStopped)
		for _, line := range r.lines {
			e, ok := r.parser.parse([]byte(line))
			if !ok {
				continue
			}
			select {
			case raw <- e:
			case <-ctx.Done():
				return
			}
			if r.delay > 0 {
				select {
				case <-time.After(r.delay):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return analyzer.Compose(ctx, r.analyzers, raw), nil
}

// Stop implements Runner.
func (r *FakeRunner) Stop() error {
	if r.cancel == nil {
		r.state.Store(StateStopped)
		return nil
	}
	r.cancel()
	<-r.done
	return nil
}
