/*
Package event defines the canonical pipeline message for agent-tracer.

Every message flowing through the pipeline — raw probe output, parsed HTTP
messages, SSE blocks, diagnostics — is an Event value:

	┌──────────────────────── EVENT ───────────────────────┐
	│  timestamp   epoch ns, stamped at ingestion           │
	│  source      originating runner ("ssl", "process")    │
	│  pid         attributed process id (0 = unknown)      │
	│  comm        short process name ("" = unknown)        │
	│  data        free-form JSON payload                   │
	└───────────────────────────────────────────────────────┘

Events are value-typed and move through the pipeline; no component retains
references to prior events beyond its own buffered state. The JSON encoding
of an Event is both the NDJSON file-sink line format and the SSE frame data
format.

Timestamps are issued by a per-runner Clock and are non-decreasing within a
single runner's output. No ordering is guaranteed across runners merged by
the agent runner.
*/
package event
