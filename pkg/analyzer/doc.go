/*
Package analyzer provides the stream-transformer framework of the
agent-tracer pipeline.

An Analyzer consumes an event sequence and produces another. Each runner
carries an ordered chain of analyzers; the agent runner applies a second,
global chain to the merged stream:

	probe stdout → line split → JSON parse → Event
	      │
	      ▼
	┌──── per-runner chain ────┐      ┌──── global chain ────┐
	│ filter → http → scrub    │ ──▶  │ correlate → filesink │ ──▶ broadcast
	└──────────────────────────┘      └──────────────────────┘

Analyzer flavors in this package:

  - FilterAnalyzer: stateless, drops events rejected by a filter expression
  - Scrubber: stateless, redacts authentication header values
  - Correlator: stateful, annotates events with process identity
  - FileSink / ConsoleSink: terminal side-effecting, forward unchanged

Stages talk over bounded channels, so back-pressure propagates from the
slowest consumer up to the probe's stdout pipe. Dropping the downstream
consumer (context cancellation) makes every analyzer release its state and
close its output promptly.

The HTTP parser and chunk merger, the largest stateful analyzer, live in
the sibling httpparse package.
*/
package analyzer
