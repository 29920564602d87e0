package event

import (
	"encoding/json"
	"sync"
	"time"
)

// Well-known event sources.
const (
	SourceSSL        = "ssl"
	SourceProcess    = "process"
	SourceDiagnostic = "diagnostic"
)

// Event is the canonical pipeline message. Every probe line, every parsed
// HTTP message, and every diagnostic travels through the pipeline as an
// Event value.
type Event struct {
	// Timestamp is epoch nanoseconds stamped at ingestion, not probe time.
	// Non-decreasing within a single runner's output.
	Timestamp int64 `json:"timestamp"`

	// Source identifies the originating runner ("ssl", "process", ...).
	// Immutable once set.
	Source string `json:"source"`

	// PID is the process the event is attributed to; 0 if unknown.
	PID int32 `json:"pid"`

	// Comm is the short process name; empty if unknown.
	Comm string `json:"comm"`

	// Data is the free-form structured payload.
	Data map[string]any `json:"data"`
}

// New wraps a parsed probe payload in an Event, stamping the given
// timestamp and extracting pid/comm from the payload when present.
func New(ts int64, source string, data map[string]any) Event {
	e := Event{
		Timestamp: ts,
		Source:    source,
		Data:      data,
	}
	if pid, ok := asInt64(data["pid"]); ok {
		e.PID = int32(pid)
	}
	if comm, ok := data["comm"].(string); ok {
		e.Comm = comm
	}
	return e
}

// Diagnostic builds a structured diagnostic event (source="diagnostic").
// Used for user-visible failure reporting on the file sink and SSE feed.
func Diagnostic(clock *Clock, message string, fields map[string]any) Event {
	data := map[string]any{"message": message}
	for k, v := range fields {
		data[k] = v
	}
	return Event{
		Timestamp: clock.Now(),
		Source:    SourceDiagnostic,
		Data:      data,
	}
}

// Marshal encodes the event as a single JSON line without trailing newline.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// DataString returns the named payload field as a string.
func (e Event) DataString(key string) string {
	s, _ := e.Data[key].(string)
	return s
}

// DataInt64 returns the named payload field as an int64, accepting the
// numeric representations json decoding may produce.
func (e Event) DataInt64(key string) (int64, bool) {
	return asInt64(e.Data[key])
}

// Type returns the semantic type tag of a derived event ("http.request",
// "sse.message", ...), or the probe "event" tag, or empty.
func (e Event) Type() string {
	if t, ok := e.Data["type"].(string); ok {
		return t
	}
	if t, ok := e.Data["event"].(string); ok {
		return t
	}
	return ""
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

// Clock issues non-decreasing epoch-nanosecond timestamps. Each runner owns
// one so that its output satisfies the per-runner timestamp invariant even
// when the wall clock steps backwards.
type Clock struct {
	mu   sync.Mutex
	last int64
}

// Now returns the current time in epoch nanoseconds, clamped to be
// non-decreasing across calls.
func (c *Clock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now().UnixNano()
	if now < c.last {
		now = c.last
	}
	c.last = now
	return now
}
