package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Ingestion metrics
	EventsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_tracer_events_ingested_total",
			Help: "Total number of probe events ingested by source",
		},
		[]string{"source"},
	)

	ProbeParseErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_tracer_probe_parse_errors_total",
			Help: "Total number of malformed probe lines discarded by source",
		},
		[]string{"source"},
	)

	// HTTP re-assembly metrics
	HTTPMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_tracer_http_messages_total",
			Help: "Total number of re-assembled HTTP messages by kind",
		},
		[]string{"kind"},
	)

	HTTPParseErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_tracer_http_parse_errors_total",
			Help: "Total number of HTTP parse and chunk decode errors",
		},
	)

	MergerConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agent_tracer_merger_connections",
			Help: "Current number of tracked connection states in the chunk merger",
		},
	)

	MergerEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_tracer_merger_evictions_total",
			Help: "Total number of connection states evicted by capacity or idle timeout",
		},
	)

	// Filter metrics
	FilterEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_tracer_filter_events_total",
			Help: "Total number of events seen by filters, by filter name and outcome",
		},
		[]string{"filter", "outcome"},
	)

	// Broadcast metrics
	BroadcastSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agent_tracer_broadcast_subscribers",
			Help: "Current number of connected SSE subscribers",
		},
	)

	BroadcastDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_tracer_broadcast_dropped_total",
			Help: "Total number of events dropped from slow subscriber queues",
		},
	)

	// File sink metrics
	SinkLinesWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_tracer_sink_lines_written_total",
			Help: "Total number of NDJSON lines written to the file sink",
		},
	)

	SinkRotations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_tracer_sink_rotations_total",
			Help: "Total number of file sink rotations",
		},
	)

	// Runner metrics
	RunnersRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agent_tracer_runners_running",
			Help: "Current number of running probe runners",
		},
	)

	RunnerRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_tracer_runner_failures_total",
			Help: "Total number of runner failures by source",
		},
		[]string{"source"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(EventsIngested)
	prometheus.MustRegister(ProbeParseErrors)
	prometheus.MustRegister(HTTPMessages)
	prometheus.MustRegister(HTTPParseErrors)
	prometheus.MustRegister(MergerConnections)
	prometheus.MustRegister(MergerEvictions)
	prometheus.MustRegister(FilterEvents)
	prometheus.MustRegister(BroadcastSubscribers)
	prometheus.MustRegister(BroadcastDropped)
	prometheus.MustRegister(SinkLinesWritten)
	prometheus.MustRegister(SinkRotations)
	prometheus.MustRegister(RunnersRunning)
	prometheus.MustRegister(RunnerRestarts)
}
