/*
Package log provides structured logging for agent-tracer using zerolog.

The log package wraps zerolog with a global logger, component-scoped child
loggers, and level configuration. All pipeline components log through it so
that output is uniformly structured and never mixes with the NDJSON event
stream on stdout.

# Usage

Initialize once at startup, before any component starts:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: false,
	})

Create component loggers for context-rich messages:

	logger := log.WithComponent("runner")
	logger.Info().Str("source", "ssl").Msg("probe started")

	logger := log.WithConnection("pid1234-fd7")
	logger.Warn().Msg("chunk decode error, clearing connection state")

# Levels

  - debug: per-event tracing, parser state transitions
  - info: lifecycle (probe start/stop, server bind, rotation)
  - warn: recoverable errors (parse failures, dropped subscribers)
  - error: failures that abort a runner or sink

Console output (with colors) is the default; --log-json switches to pure
JSON for log aggregation.
*/
package log
