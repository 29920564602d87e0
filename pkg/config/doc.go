/*
Package config defines the agent-tracer configuration surface.

Configuration is a YAML file plus command-line overrides. Normalize fills
the numeric limits (body cap, idle timeout, connection cap, queue depths,
shutdown deadline) and the default asset, so an empty file (or no file at
all) yields a working pipeline. Filters, file.path, file.rotate_bytes and
server.bind have no default: they stay empty, which leaves the filters
passing everything, the file sink and the server disabled, and rotation
off. An example file:

	ssl:
	  filter: ["data_type=read"]
	http:
	  filter: ["response.status>=400"]
	  raw_data: false
	sse:
	  merge: false
	chunk:
	  max_bytes: 16777216
	merger:
	  idle_ms: 30000
	file:
	  path: /var/log/agent-tracer/events.ndjson
	  rotate_bytes: 104857600
	server:
	  bind: 127.0.0.1:8765
	broadcast:
	  capacity: 256
	shutdown:
	  deadline_ms: 2000
*/
package config
