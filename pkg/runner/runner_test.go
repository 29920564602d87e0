package runner

import (
	"context"
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eunomia-bpf/agent-tracer/pkg/analyzer"
	"github.com/eunomia-bpf/agent-tracer/pkg/event"
)

func collect(t *testing.T, ch <-chan event.Event) []event.Event {
	t.Helper()
	var out []event.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, e)
		case <-timeout:
			t.Fatal("timed out collecting events")
		}
	}
}

func TestFakeRunnerEmitsParsedLines(t *testing.T) {
	r := NewFakeRunner("ssl", []string{
		`{"data_type":"read","pid":7,"comm":"python3"}`,
		`{"data_type":"write","pid":7,"comm":"python3"}`,
	})

	ch, err := r.Run(context.Background())
	require.NoError(t, err)
	events := collect(t, ch)

	require.Len(t, events, 2)
	assert.Equal(t, "ssl", events[0].Source)
	assert.Equal(t, int32(7), events[0].PID)
	assert.Equal(t, "python3", events[0].Comm)
	assert.Equal(t, StateStopped, r.State())
}

func TestConfigPreambleIsSideChannel(t *testing.T) {
	r := NewFakeRunner("ssl", []string{
		`{"type":"config","tracked_pids":[1,2]}`,
		`{"data_type":"read"}`,
	})

	ch, err := r.Run(context.Background())
	require.NoError(t, err)
	events := collect(t, ch)

	require.Len(t, events, 1, "config preamble must not become an event")
	cfg := r.ProbeConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, "config", cfg["type"])
}

func TestMalformedLinesCountedNotFatal(t *testing.T) {
	r := NewFakeRunner("ssl", []string{
		`{"data_type":"read"}`,
		`this is not json`,
		``,
		`{"data_type":"write"}`,
	})

	ch, err := r.Run(context.Background())
	require.NoError(t, err)
	events := collect(t, ch)

	assert.Len(t, events, 2)
	assert.Equal(t, uint64(1), r.ParseErrors())
}

// Per-runner order preservation through an analyzer chain.
func TestOrderPreservedThroughAnalyzers(t *testing.T) {
	lines := make([]string, 50)
	for i := range lines {
		lines[i] = fmt.Sprintf(`{"data_type":"read","seq":%d}`, i)
	}
	r := NewFakeRunner("ssl", lines,
		WithFakeAnalyzers(analyzer.NewScrubber(nil, 4)),
		WithFakeLinkCapacity(4))

	ch, err := r.Run(context.Background())
	require.NoError(t, err)
	events := collect(t, ch)

	require.Len(t, events, 50)
	for i, e := range events {
		seq, _ := e.DataInt64("seq")
		assert.Equal(t, int64(i), seq)
	}
}

func TestFakeRunnerTimestampsNonDecreasing(t *testing.T) {
	lines := make([]string, 100)
	for i := range lines {
		lines[i] = `{"data_type":"read"}`
	}
	r := NewFakeRunner("ssl", lines)
	ch, err := r.Run(context.Background())
	require.NoError(t, err)

	events := collect(t, ch)
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].Timestamp, events[i-1].Timestamp)
	}
}

func TestProbeRunnerReadsChildStdout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	r := NewProbeRunner("ssl", "/bin/sh",
		WithArgs("-c", `printf '{"type":"config","probe":"test"}\n{"data_type":"read","pid":9}\nnot json\n{"data_type":"write","pid":9}\n'`))

	ch, err := r.Run(context.Background())
	require.NoError(t, err)
	events := collect(t, ch)

	require.Len(t, events, 2)
	assert.Equal(t, int32(9), events[0].PID)
	assert.Equal(t, uint64(1), r.ParseErrors())
	assert.NotNil(t, r.ProbeConfig())

	require.NoError(t, r.Stop())
	assert.Equal(t, StateStopped, r.State())
}

func TestProbeRunnerSpawnFailureIsFatal(t *testing.T) {
	r := NewProbeRunner("ssl", "/no/such/binary")
	_, err := r.Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, StateFailed, r.State())
}

func TestProbeRunnerStopTerminatesLingeringChild(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	// A child that ignores nothing but never exits on its own.
	r := NewProbeRunner("ssl", "/bin/sh",
		WithArgs("-c", `printf '{"data_type":"read"}\n'; sleep 300`),
		WithStopDeadline(200*time.Millisecond))

	ch, err := r.Run(context.Background())
	require.NoError(t, err)

	e := <-ch
	assert.Equal(t, "read", e.DataString("data_type"))

	start := time.Now()
	require.NoError(t, r.Stop())
	assert.Less(t, time.Since(start), 3*time.Second, "stop must not wait for the sleep")
	state := r.State()
	assert.True(t, state == StateStopped || state == StateFailed)
}
