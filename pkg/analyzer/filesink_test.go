package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eunomia-bpf/agent-tracer/pkg/event"
)

// padEvent builds an event whose serialized line is exactly n bytes
// including the trailing newline.
func padEvent(t *testing.T, n int, seq int) event.Event {
	t.Helper()
	e := event.Event{Source: "t", Data: map[string]any{"seq": seq, "pad": ""}}
	line, err := e.Marshal()
	require.NoError(t, err)
	pad := n - len(line) - 1
	require.GreaterOrEqual(t, pad, 0, "line already longer than %d", n)
	e.Data["pad"] = strings.Repeat("x", pad)
	line, err = e.Marshal()
	require.NoError(t, err)
	require.Equal(t, n-1, len(line))
	return e
}

func runSink(t *testing.T, sink *FileSink, events []event.Event) {
	t.Helper()
	in := make(chan event.Event, len(events))
	for _, e := range events {
		in <- e
	}
	close(in)
	out := sink.Process(context.Background(), in)
	for range out {
	}
}

func TestFileSinkWritesLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")
	sink, err := NewFileSink(path, 0, 0)
	require.NoError(t, err)

	runSink(t, sink, []event.Event{
		{Source: "a", Data: map[string]any{"n": 1}},
		{Source: "b", Data: map[string]any{"n": 2}},
	})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"source":"a"`)
	assert.Contains(t, lines[1], `"source":"b"`)
}

func TestFileSinkRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")
	sink, err := NewFileSink(path, 250, 0)
	require.NoError(t, err)

	// Three 100-byte lines against a 250-byte cap: the third write would
	// exceed the cap, so the first two lines rotate into events.ndjson.1
	// and the third lands in the fresh live file.
	runSink(t, sink, []event.Event{
		padEvent(t, 100, 1),
		padEvent(t, 100, 2),
		padEvent(t, 100, 3),
	})

	rotated, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(rotated), "\n"))
	assert.Contains(t, string(rotated), `"seq":1`)
	assert.Contains(t, string(rotated), `"seq":2`)

	live, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(live), "\n"))
	assert.Contains(t, string(live), `"seq":3`)
}

func TestFileSinkRotationPicksSmallestUnusedSuffix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.ndjson")
	require.NoError(t, os.WriteFile(path+".1", []byte("old\n"), 0o644))

	sink, err := NewFileSink(path, 150, 0)
	require.NoError(t, err)
	runSink(t, sink, []event.Event{
		padEvent(t, 100, 1),
		padEvent(t, 100, 2),
	})

	// .1 exists already, so the rotation lands on .2.
	_, err = os.Stat(path + ".2")
	assert.NoError(t, err)
	old, _ := os.ReadFile(path + ".1")
	assert.Equal(t, "old\n", string(old), "pre-existing rotations untouched")
}

func TestFileSinkForwardsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")
	sink, err := NewFileSink(path, 0, 0)
	require.NoError(t, err)

	in := make(chan event.Event, 2)
	in <- event.Event{Source: "a"}
	in <- event.Event{Source: "b"}
	close(in)

	var got []string
	for e := range sink.Process(context.Background(), in) {
		got = append(got, e.Source)
	}
	assert.Equal(t, []string{"a", "b"}, got, "events pass through unchanged and in order")
}

func TestFileSinkOpenFailureIsFatal(t *testing.T) {
	_, err := NewFileSink(filepath.Join(t.TempDir(), "no", "such", "dir", "f"), 0, 0)
	assert.Error(t, err)
}
