package analyzer

import (
	"context"
	"sync"

	"github.com/eunomia-bpf/agent-tracer/pkg/event"
)

// Correlator enriches events with process identity learned from the
// process probe. EXEC events record {pid → comm, ppid}; subsequent events
// attributed to the same pid but missing a comm are annotated; EXIT evicts
// the entry.
//
// Runs as a global analyzer so it sees the merged stream of both probes.
type Correlator struct {
	capacity int

	mu    sync.Mutex
	procs map[int32]procInfo
}

type procInfo struct {
	comm string
	ppid int64
}

// NewCorrelator builds an empty correlator.
func NewCorrelator(capacity int) *Correlator {
	if capacity <= 0 {
		capacity = DefaultLinkCapacity
	}
	return &Correlator{
		capacity: capacity,
		procs:    make(map[int32]procInfo),
	}
}

// Name implements Analyzer.
func (c *Correlator) Name() string { return "correlate" }

// Process implements Analyzer.
func (c *Correlator) Process(ctx context.Context, in <-chan event.Event) <-chan event.Event {
	return transform(ctx, in, c.capacity, func(e event.Event, emit func(event.Event)) {
		emit(c.annotate(e))
	})
}

func (c *Correlator) annotate(e event.Event) event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e.Source == event.SourceProcess {
		switch e.Type() {
		case "EXEC":
			info := procInfo{comm: e.Comm}
			if ppid, ok := e.DataInt64("ppid"); ok {
				info.ppid = ppid
			}
			c.procs[e.PID] = info
		case "EXIT":
			delete(c.procs, e.PID)
		}
		return e
	}

	info, ok := c.procs[e.PID]
	if !ok || e.PID == 0 {
		return e
	}
	if e.Comm == "" {
		e.Comm = info.comm
	}
	if info.ppid != 0 {
		if _, present := e.Data["ppid"]; !present && e.Data != nil {
			e.Data["ppid"] = info.ppid
		}
	}
	return e
}

// Tracked returns the number of live process entries, for tests and the
// health endpoint.
func (c *Correlator) Tracked() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.procs)
}
