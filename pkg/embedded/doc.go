/*
Package embedded owns the materialization of bundled probe binaries.

The kernel probes (an SSL/TLS payload tracer and a process-lifecycle
tracer) are opaque executables bundled into the agent-tracer binary at
build time via go:embed. Keeping them embedded makes the probe/userspace
boundary a process-spawn boundary, not a linker boundary: the runner simply
executes the extracted file and reads its stdout.

# Lifecycle

	extractor, err := embedded.NewExtractor()
	if err != nil {
		// I/O, permission, or no-space failure: do not proceed
	}
	defer extractor.Close()

	path, _ := extractor.Path(embedded.ProbeSSL)

Each extractor creates a uniquely named private directory (0700) under the
system temp directory, writes every embedded blob with executable
permission, and removes the directory recursively on Close. Directories
are prefixed "agent-tracer-" so that stale ones left by a crashed process
can be scavenged by operators.

Extraction failures surface as errors that distinguish a read-only temp
filesystem from a plain permission problem.
*/
package embedded
