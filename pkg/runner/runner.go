package runner

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/eunomia-bpf/agent-tracer/pkg/event"
	"github.com/eunomia-bpf/agent-tracer/pkg/metrics"
)

// Runner owns one event source (normally a probe child process) and
// surfaces its output as a lazy event sequence with the runner's analyzer
// chain already applied.
type Runner interface {
	// Name is the source tag stamped on every event ("ssl", "process").
	Name() string

	// Run starts the source and returns its analyzed event sequence. The
	// channel closes when the source ends or the context is cancelled.
	// A spawn failure is fatal and returned immediately.
	Run(ctx context.Context) (<-chan event.Event, error)

	// Stop requests a graceful stop and blocks until the runner reaches
	// StateStopped or StateFailed, bounded by the configured deadline.
	Stop() error

	// State reports the lifecycle state.
	State() State
}

// State is a runner lifecycle state.
type State string

const (
	StateCreated  State = "created"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
	StateFailed   State = "failed"
)

// lineParser turns probe stdout lines into Events. Shared by the probe
// and fake runners so both honor the config-preamble and malformed-line
// contracts.
type lineParser struct {
	source string
	clock  *event.Clock

	mu          sync.Mutex
	probeConfig map[string]any
	parseErrors uint64
}

// parse decodes one stdout line. ok is false for discarded lines: blank
// input, malformed JSON (counted), and the config preamble (recorded).
func (p *lineParser) parse(line []byte) (event.Event, bool) {
	if len(line) == 0 {
		return event.Event{}, false
	}
	var payload map[string]any
	if err := json.Unmarshal(line, &payload); err != nil {
		p.mu.Lock()
		p.parseErrors++
		p.mu.Unlock()
		metrics.ProbeParseErrors.WithLabelValues(p.source).Inc()
		return event.Event{}, false
	}
	if t, _ := payload["type"].(string); t == "config" {
		p.mu.Lock()
		p.probeConfig = payload
		p.mu.Unlock()
		return event.Event{}, false
	}
	metrics.EventsIngested.WithLabelValues(p.source).Inc()
	return event.New(p.clock.Now(), p.source, payload), true
}

// ProbeConfig returns the recorded configuration preamble, if the probe
// emitted one. Exposed as a side channel; never an Event.
func (p *lineParser) ProbeConfig() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.probeConfig
}

// ParseErrors returns the count of malformed lines discarded so far.
func (p *lineParser) ParseErrors() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.parseErrors
}
