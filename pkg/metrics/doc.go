/*
Package metrics provides Prometheus metrics and component health for
agent-tracer.

All collectors are package-level variables registered in init() and exposed
by the embedded server at GET /metrics. The package also tracks coarse
component health (runners, sinks, server) served at GET /health.

Metric families:

	agent_tracer_events_ingested_total{source}     probe events ingested
	agent_tracer_probe_parse_errors_total{source}  malformed probe lines
	agent_tracer_http_messages_total{kind}         re-assembled HTTP messages
	agent_tracer_http_parse_errors_total           parse/chunk decode errors
	agent_tracer_merger_connections                live connection states
	agent_tracer_merger_evictions_total            evicted connection states
	agent_tracer_filter_events_total{filter,outcome} filter decisions
	agent_tracer_broadcast_subscribers             connected SSE clients
	agent_tracer_broadcast_dropped_total           events dropped to slow clients
	agent_tracer_sink_lines_written_total          NDJSON lines written
	agent_tracer_sink_rotations_total              file sink rotations
	agent_tracer_runners_running                   running probe runners
	agent_tracer_runner_failures_total{source}     runner failures

The authoritative per-filter counters (resettable on request) live on the
filter values themselves; the Prometheus counters are a monotonic mirror.
*/
package metrics
