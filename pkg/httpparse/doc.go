/*
Package httpparse reconstructs HTTP/1.1 semantics from raw SSL probe
payloads.

The probes deliver decrypted application bytes as they crossed the TLS
boundary, fragmented into kernel-sized messages with no respect for
protocol framing. This package owns the stateful re-assembly:

	ssl event (payload, direction, connection_id)
	      │
	      ▼
	┌─ per-(connection, direction) state machine ─────────────┐
	│  IDLE → HEADERS → BODY_LENGTH(n)                        │
	│                 → BODY_CHUNKED   (RFC 7230 decoding)    │
	│                 → BODY_SSE       (event-stream blocks)  │
	│                 → identity       (read until close)     │
	└──────────────────────────────────────────────────────────┘
	      │
	      ▼
	http.request / http.response / sse.message / http.parse_error

Header parsing is byte-oriented and preserves original casing; payloads
may contain invalid UTF-8. A malformed start line clears the direction's
buffers and emits an http.parse_error event instead of failing the
pipeline. Bodies beyond the configured cap are truncated and marked.

Requests and responses on one connection are paired FIFO; responses carry
a summary of the request they answer.

Connection state lives in a bounded map keyed by the probe-supplied
connection id. Entries are dropped on a connection-close hint, at end of
input, on an idle timeout, or when the map exceeds capacity,
least-recently-touched first; the last two are counted as evictions.
Keep-alive connections
retain their entry between messages so request/response pairing survives.

SSE streams emit one sse.message event per completed block. With SSEMerge
enabled, a terminal http.response carrying all block payloads
newline-joined follows when the stream closes.
*/
package httpparse
