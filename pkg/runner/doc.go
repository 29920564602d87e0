/*
Package runner owns probe child processes and their event sequences.

A Runner spawns one probe, line-buffers its stdout, parses each line as a
JSON object, and wraps it in an Event stamped at ingestion. The runner's
ordered analyzer chain is composed over that sequence before it reaches
the caller:

	┌─────────── RUNNER ───────────────────────────────────────┐
	│  probe child ──stdout──▶ line scanner ──▶ JSON parse      │
	│        │                                    │             │
	│     SIGTERM→SIGKILL                         ▼             │
	│     on stop           analyzer[0] → … → analyzer[n-1] ──▶ │
	└───────────────────────────────────────────────────────────┘

Lifecycle: created → starting → running → stopping → stopped | failed.
Stopping is entered on consumer cancellation, external Stop, or child
exit; it signals SIGTERM, drains under a bounded deadline (default 2 s),
and escalates to SIGKILL. Malformed stdout lines are counted and
discarded, never fatal. A leading {"type":"config", ...} preamble is
recorded and exposed via ProbeConfig, never emitted as an Event.

The AgentRunner composes several runners, merging their outputs in
arrival order (per-child order preserved, no cross-child ordering) and
applying global analyzers to the merged stream. FakeRunner replays canned
lines through the same parsing path for tests.
*/
package runner
