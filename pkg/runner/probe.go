package runner

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/eunomia-bpf/agent-tracer/pkg/analyzer"
	"github.com/eunomia-bpf/agent-tracer/pkg/event"
	"github.com/eunomia-bpf/agent-tracer/pkg/log"
	"github.com/eunomia-bpf/agent-tracer/pkg/metrics"
)

// maxLineBytes bounds a single probe stdout line.
const maxLineBytes = 4 << 20

// DefaultStopDeadline is the drain deadline before SIGTERM escalates to
// SIGKILL.
const DefaultStopDeadline = 2 * time.Second

// ProbeRunner runs one probe executable, line-buffers its stdout, parses
// each line as JSON, and emits Events through its analyzer chain.
type ProbeRunner struct {
	name      string
	path      string
	args      []string
	analyzers []analyzer.Analyzer
	linkCap   int
	deadline  time.Duration
	logger    zerolog.Logger

	parser lineParser
	state  atomic.Value // State

	cancel context.CancelFunc
	done   chan struct{}
	runErr atomic.Value // error recorded during STOPPING
}

// ProbeOption tweaks a ProbeRunner.
type ProbeOption func(*ProbeRunner)

// WithAnalyzers sets the runner's ordered analyzer chain.
func WithAnalyzers(analyzers ...analyzer.Analyzer) ProbeOption {
	return func(r *ProbeRunner) { r.analyzers = analyzers }
}

// WithLinkCapacity sets the bounded channel depth between stages.
func WithLinkCapacity(n int) ProbeOption {
	return func(r *ProbeRunner) {
		if n > 0 {
			r.linkCap = n
		}
	}
}

// WithStopDeadline sets the graceful-stop drain deadline.
func WithStopDeadline(d time.Duration) ProbeOption {
	return func(r *ProbeRunner) {
		if d > 0 {
			r.deadline = d
		}
	}
}

// WithArgs sets the probe command-line arguments.
func WithArgs(args ...string) ProbeOption {
	return func(r *ProbeRunner) { r.args = args }
}

// NewProbeRunner builds a runner for a probe executable. The name becomes
// the source tag on every event.
func NewProbeRunner(name, path string, opts ...ProbeOption) *ProbeRunner {
	r := &ProbeRunner{
		name:     name,
		path:     path,
		linkCap:  analyzer.DefaultLinkCapacity,
		deadline: DefaultStopDeadline,
		logger:   log.WithRunner(name),
		done:     make(chan struct{}),
	}
	r.parser = lineParser{source: name, clock: &event.Clock{}}
	r.state.Store(StateCreated)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name implements Runner.
func (r *ProbeRunner) Name() string { return r.name }

// State implements Runner.
func (r *ProbeRunner) State() State { return r.state.Load().(State) }

// ProbeConfig returns the probe's configuration preamble, if seen.
func (r *ProbeRunner) ProbeConfig() map[string]any { return r.parser.ProbeConfig() }

// ParseErrors returns the count of malformed stdout lines discarded.
func (r *ProbeRunner) ParseErrors() uint64 { return r.parser.ParseErrors() }

// Run implements Runner. The child is spawned immediately; spawn failure
// is fatal. The returned sequence carries the analyzer chain's output.
func (r *ProbeRunner) Run(ctx context.Context) (<-chan event.Event, error) {
	r.state.Store(StateStarting)

	ctx, r.cancel = context.WithCancel(ctx)

	cmd := exec.Command(r.path, r.args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		r.state.Store(StateFailed)
		r.cancel()
		close(r.done)
		return nil, fmt.Errorf("failed to open probe stdout: %w", err)
	}
	cmd.Stderr = &stderrWriter{logger: r.logger}

	if err := cmd.Start(); err != nil {
		r.state.Store(StateFailed)
		r.cancel()
		close(r.done)
		metrics.RunnerRestarts.WithLabelValues(r.name).Inc()
		return nil, fmt.Errorf("failed to spawn probe %s: %w", r.path, err)
	}

	r.state.Store(StateRunning)
	metrics.RunnersRunning.Inc()
	r.logger.Info().Str("path", r.path).Int("pid", cmd.Process.Pid).Msg("probe started")

	raw := make(chan event.Event, r.linkCap)
	readDone := make(chan struct{})

	// Reader: split stdout into lines, parse, stamp, push with
	// back-pressure. Stopping the consumer stops the reads, which lets
	// the kernel pipe fill and blocks the probe; designed behavior.
	go func() {
		defer close(readDone)
		defer close(raw)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64<<10), maxLineBytes)
		for scanner.Scan() {
			e, ok := r.parser.parse(scanner.Bytes())
			if !ok {
				continue
			}
			select {
			case raw <- e:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			// Read error after startup: record and wind down.
			r.runErr.Store(err)
			r.logger.Error().Err(err).Msg("probe stdout read failed")
		}
	}()

	// Reaper: on cancellation or reader exit, transition to STOPPING,
	// signal the child, and escalate after the drain deadline.
	go func() {
		defer close(r.done)
		select {
		case <-ctx.Done():
		case <-readDone:
		}
		r.state.Store(StateStopping)

		waited := make(chan error, 1)
		go func() { waited <- cmd.Wait() }()

		_ = cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-waited:
		case <-time.After(r.deadline):
			r.logger.Warn().Msg("probe did not stop in time, killing")
			_ = cmd.Process.Kill()
			<-waited
		}

		metrics.RunnersRunning.Dec()
		if err, ok := r.runErr.Load().(error); ok && err != nil {
			r.state.Store(StateFailed)
			metrics.RunnerRestarts.WithLabelValues(r.name).Inc()
		} else {
			r.state.Store(StateStopped)
		}
		r.logger.Info().Str("state", string(r.State())).Msg("probe stopped")
	}()

	return analyzer.Compose(ctx, r.analyzers, raw), nil
}

// Stop implements Runner.
func (r *ProbeRunner) Stop() error {
	if r.cancel == nil {
		r.state.Store(StateStopped)
		return nil
	}
	r.cancel()
	select {
	case <-r.done:
		return nil
	case <-time.After(r.deadline + time.Second):
		return fmt.Errorf("runner %s did not stop within deadline", r.name)
	}
}

// stderrWriter forwards probe stderr into the structured log.
type stderrWriter struct {
	logger zerolog.Logger
}

func (w *stderrWriter) Write(p []byte) (int, error) {
	w.logger.Debug().Str("stream", "stderr").Msg(string(p))
	return len(p), nil
}
