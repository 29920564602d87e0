package event

import (
	"encoding/json"
	"testing"
)

func TestNewExtractsIdentity(t *testing.T) {
	clock := &Clock{}
	e := New(clock.Now(), SourceSSL, map[string]any{
		"pid":  float64(4321),
		"comm": "python3",
		"data": "payload",
	})

	if e.Source != "ssl" {
		t.Errorf("expected source ssl, got %s", e.Source)
	}
	if e.PID != 4321 {
		t.Errorf("expected pid 4321, got %d", e.PID)
	}
	if e.Comm != "python3" {
		t.Errorf("expected comm python3, got %s", e.Comm)
	}
}

func TestNewMissingIdentity(t *testing.T) {
	clock := &Clock{}
	e := New(clock.Now(), SourceProcess, map[string]any{"event": "EXEC"})

	if e.PID != 0 {
		t.Errorf("expected pid 0, got %d", e.PID)
	}
	if e.Comm != "" {
		t.Errorf("expected empty comm, got %q", e.Comm)
	}
}

func TestClockNonDecreasing(t *testing.T) {
	clock := &Clock{}
	last := int64(0)
	for i := 0; i < 1000; i++ {
		now := clock.Now()
		if now < last {
			t.Fatalf("clock went backwards: %d < %d", now, last)
		}
		last = now
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	clock := &Clock{}
	e := New(clock.Now(), SourceSSL, map[string]any{"data_type": "read"})

	line, err := e.Marshal()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded Event
	if err := json.Unmarshal(line, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.Source != e.Source || decoded.Timestamp != e.Timestamp {
		t.Errorf("round trip mismatch: %+v vs %+v", decoded, e)
	}
	if decoded.DataString("data_type") != "read" {
		t.Errorf("payload lost in round trip")
	}
}

func TestDiagnostic(t *testing.T) {
	clock := &Clock{}
	e := Diagnostic(clock, "probe crashed", map[string]any{"runner": "ssl"})

	if e.Source != SourceDiagnostic {
		t.Errorf("expected diagnostic source, got %s", e.Source)
	}
	if e.DataString("message") != "probe crashed" {
		t.Errorf("message missing from diagnostic payload")
	}
	if e.DataString("runner") != "ssl" {
		t.Errorf("fields missing from diagnostic payload")
	}
}

func TestType(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
		want string
	}{
		{"derived type", map[string]any{"type": "http.request"}, "http.request"},
		{"probe event tag", map[string]any{"event": "EXEC"}, "EXEC"},
		{"type wins", map[string]any{"type": "sse.message", "event": "EXEC"}, "sse.message"},
		{"neither", map[string]any{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Event{Data: tt.data}
			if got := e.Type(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
