/*
Package server embeds the web server delivering live events and static
assets.

Endpoints:

	GET /api/events        Server-Sent Events stream of the pipeline feed
	GET /api/assets/{path} embedded static assets (MIME by extension)
	GET /metrics           Prometheus metrics
	GET /health            component health as JSON
	GET /                  redirect to the default asset

Each subscriber to the broadcast holds a bounded queue (default 256
events). When a queue is full the oldest pending event is dropped and
counted; the producer never blocks on a slow subscriber. Every event
becomes one SSE frame:

	event: agent
	data: {"timestamp":...,"source":"ssl","pid":...,"comm":"...","data":{...}}

Idle connections receive a ping frame every 15 seconds.
*/
package server
