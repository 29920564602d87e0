package analyzer

import (
	"context"
	"strings"

	"github.com/eunomia-bpf/agent-tracer/pkg/event"
)

// RedactionMarker replaces scrubbed header values.
const RedactionMarker = "[REDACTED]"

// DefaultScrubbedHeaders are the header names scrubbed when no explicit
// set is configured.
var DefaultScrubbedHeaders = []string{
	"Authorization",
	"Proxy-Authorization",
	"Cookie",
	"Set-Cookie",
	"X-Api-Key",
}

// Scrubber rewrites HTTP message events, replacing the values of a
// configured header set with a fixed redaction marker. Header presence and
// order are preserved. Stateless and idempotent.
type Scrubber struct {
	headers  map[string]struct{} // lower-cased names
	capacity int
}

// NewScrubber builds a scrubber for the given header names; nil means
// DefaultScrubbedHeaders.
func NewScrubber(headers []string, capacity int) *Scrubber {
	if headers == nil {
		headers = DefaultScrubbedHeaders
	}
	if capacity <= 0 {
		capacity = DefaultLinkCapacity
	}
	set := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		set[strings.ToLower(h)] = struct{}{}
	}
	return &Scrubber{headers: set, capacity: capacity}
}

// Name implements Analyzer.
func (s *Scrubber) Name() string { return "scrub" }

// Process implements Analyzer.
func (s *Scrubber) Process(ctx context.Context, in <-chan event.Event) <-chan event.Event {
	return transform(ctx, in, s.capacity, func(e event.Event, emit func(event.Event)) {
		emit(s.scrub(e))
	})
}

// scrub rewrites the header lists found under the request and response
// payload objects. Non-HTTP events pass through untouched.
func (s *Scrubber) scrub(e event.Event) event.Event {
	switch e.Type() {
	case "http.request", "http.response":
	default:
		return e
	}
	for _, section := range []string{"request", "response"} {
		msg, ok := e.Data[section].(map[string]any)
		if !ok {
			continue
		}
		headers, ok := msg["headers"].([]any)
		if !ok {
			continue
		}
		for i, h := range headers {
			hdr, ok := h.(map[string]any)
			if !ok {
				continue
			}
			name, _ := hdr["name"].(string)
			if _, hit := s.headers[strings.ToLower(name)]; !hit {
				continue
			}
			value, _ := hdr["value"].(string)
			if value == RedactionMarker {
				continue
			}
			redacted := map[string]any{
				"name":  name,
				"value": RedactionMarker,
				// Approximate original sizing for downstream metrics.
				"value_len": len(value),
			}
			headers[i] = redacted
		}
	}
	return e
}
