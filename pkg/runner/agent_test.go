package runner

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eunomia-bpf/agent-tracer/pkg/analyzer"
	"github.com/eunomia-bpf/agent-tracer/pkg/event"
)

func numberedLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf(`{"seq":%d}`, i)
	}
	return lines
}

func TestAgentMergesAllChildren(t *testing.T) {
	a := NewAgentRunner([]Runner{
		NewFakeRunner("ssl", numberedLines(10)),
		NewFakeRunner("process", numberedLines(10)),
	})

	ch, err := a.Run(context.Background())
	require.NoError(t, err)
	events := collect(t, ch)

	require.Len(t, events, 20)
	counts := map[string]int{}
	for _, e := range events {
		counts[e.Source]++
	}
	assert.Equal(t, 10, counts["ssl"])
	assert.Equal(t, 10, counts["process"])
}

// Merge preserves each child's relative order even though no cross-child
// ordering is guaranteed.
func TestAgentPreservesPerChildOrder(t *testing.T) {
	a := NewAgentRunner([]Runner{
		NewFakeRunner("ssl", numberedLines(50)),
		NewFakeRunner("process", numberedLines(50)),
	})

	ch, err := a.Run(context.Background())
	require.NoError(t, err)

	last := map[string]int64{"ssl": -1, "process": -1}
	for _, e := range collect(t, ch) {
		seq, _ := e.DataInt64("seq")
		require.Greater(t, seq, last[e.Source],
			"per-child order violated for %s", e.Source)
		last[e.Source] = seq
	}
}

func TestAgentAppliesGlobalAnalyzers(t *testing.T) {
	correlator := analyzer.NewCorrelator(0)
	a := NewAgentRunner(
		[]Runner{
			NewFakeRunner("process", []string{
				`{"event":"EXEC","pid":5,"comm":"python3"}`,
			}),
		},
		WithGlobalAnalyzers(correlator),
	)

	ch, err := a.Run(context.Background())
	require.NoError(t, err)
	events := collect(t, ch)
	require.Len(t, events, 1)
	assert.Equal(t, "EXEC", events[0].Type())
	assert.Equal(t, 1, correlator.Tracked(), "global correlator saw the EXEC")
}

func TestAgentFailsOnlyWhenEveryChildFails(t *testing.T) {
	bad := NewProbeRunner("ssl", "/no/such/binary")
	good := NewFakeRunner("process", numberedLines(3))

	a := NewAgentRunner([]Runner{bad, good})
	ch, err := a.Run(context.Background())
	require.NoError(t, err, "one healthy child keeps the agent alive")

	events := collect(t, ch)
	require.Len(t, events, 4, "three events plus one diagnostic")
	var diagnostics int
	for _, e := range events {
		if e.Source == event.SourceDiagnostic {
			diagnostics++
			assert.Equal(t, "ssl", e.DataString("runner"))
		}
	}
	assert.Equal(t, 1, diagnostics)

	allBad := NewAgentRunner([]Runner{
		NewProbeRunner("ssl", "/no/such/binary"),
		NewProbeRunner("process", "/no/such/binary"),
	})
	_, err = allBad.Run(context.Background())
	assert.Error(t, err)
}

func TestAgentStopPropagates(t *testing.T) {
	// Slow fakes that would run for a long time unless stopped.
	slow := func(name string) Runner {
		return NewFakeRunner(name, numberedLines(100000),
			WithFakeDelay(time.Millisecond))
	}
	a := NewAgentRunner([]Runner{slow("ssl"), slow("process")})

	ch, err := a.Run(context.Background())
	require.NoError(t, err)

	// Consume a few events, then stop.
	for i := 0; i < 5; i++ {
		<-ch
	}
	require.NoError(t, a.Stop())

	// The merged sequence must close promptly.
	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("merged sequence did not close after Stop")
		}
	}
}
