package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eunomia-bpf/agent-tracer/pkg/analyzer"
	"github.com/eunomia-bpf/agent-tracer/pkg/event"
	"github.com/eunomia-bpf/agent-tracer/pkg/log"
)

// AgentRunner composes multiple runners: it starts every child
// concurrently, merges their analyzed outputs, and applies a set of
// global analyzers to the merged stream.
//
// Merging preserves each child's relative order but gives no ordering
// guarantee across children: events are delivered in arrival order at the
// merge point. Consumers needing global ordering must sort downstream.
type AgentRunner struct {
	runners  []Runner
	global   []analyzer.Analyzer
	linkCap  int
	deadline time.Duration

	cancel context.CancelFunc
	merged chan event.Event
}

// AgentOption tweaks an AgentRunner.
type AgentOption func(*AgentRunner)

// WithGlobalAnalyzers sets the analyzers applied to the merged stream.
func WithGlobalAnalyzers(analyzers ...analyzer.Analyzer) AgentOption {
	return func(a *AgentRunner) { a.global = analyzers }
}

// WithAgentLinkCapacity sets the merge channel depth.
func WithAgentLinkCapacity(n int) AgentOption {
	return func(a *AgentRunner) {
		if n > 0 {
			a.linkCap = n
		}
	}
}

// WithAgentStopDeadline bounds the concurrent child stop on shutdown.
func WithAgentStopDeadline(d time.Duration) AgentOption {
	return func(a *AgentRunner) {
		if d > 0 {
			a.deadline = d
		}
	}
}

// NewAgentRunner composes the given child runners.
func NewAgentRunner(runners []Runner, opts ...AgentOption) *AgentRunner {
	a := &AgentRunner{
		runners:  runners,
		linkCap:  analyzer.DefaultLinkCapacity,
		deadline: DefaultStopDeadline,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts every child concurrently and returns the merged, globally
// analyzed sequence. A child that fails to spawn aborts only itself; Run
// errors only if every child fails.
func (a *AgentRunner) Run(ctx context.Context) (<-chan event.Event, error) {
	ctx, a.cancel = context.WithCancel(ctx)
	logger := log.WithComponent("agent")

	a.merged = make(chan event.Event, a.linkCap)
	g := &errgroup.Group{}
	clock := &event.Clock{}

	started := 0
	for _, r := range a.runners {
		ch, err := r.Run(ctx)
		if err != nil {
			logger.Error().Err(err).Str("runner", r.Name()).Msg("runner failed to start")
			// Surface the failure on the feed itself so sinks and SSE
			// subscribers see it.
			diag := event.Diagnostic(clock, "runner failed to start", map[string]any{
				"runner": r.Name(),
				"error":  err.Error(),
			})
			select {
			case a.merged <- diag:
			default:
			}
			continue
		}
		started++
		g.Go(func() error {
			for e := range ch {
				select {
				case a.merged <- e:
				case <-ctx.Done():
					return nil
				}
			}
			return nil
		})
	}
	if started == 0 {
		a.cancel()
		close(a.merged)
		return nil, errors.New("no runner could be started")
	}

	go func() {
		_ = g.Wait()
		close(a.merged)
	}()

	return analyzer.Compose(ctx, a.global, a.merged), nil
}

// Stop cancels every child concurrently and awaits their terminal states
// under the configured deadline.
func (a *AgentRunner) Stop() error {
	if a.cancel != nil {
		a.cancel()
	}
	g := &errgroup.Group{}
	for _, r := range a.runners {
		g.Go(r.Stop)
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(a.deadline + time.Second):
		return fmt.Errorf("agent runner did not stop within deadline")
	}
}
