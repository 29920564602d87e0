package runner

import (
	"fmt"

	"github.com/eunomia-bpf/agent-tracer/pkg/embedded"
	"github.com/eunomia-bpf/agent-tracer/pkg/event"
)

// NewSSLRunner builds the runner for the SSL/TLS payload probe. The probe
// binary comes from the extractor; events carry source "ssl".
func NewSSLRunner(ext *embedded.Extractor, opts ...ProbeOption) (*ProbeRunner, error) {
	path, err := ext.Path(embedded.ProbeSSL)
	if err != nil {
		return nil, fmt.Errorf("failed to locate ssl probe: %w", err)
	}
	return NewProbeRunner(event.SourceSSL, path, opts...), nil
}

// NewProcessRunner builds the runner for the process-lifecycle probe.
// Events carry source "process".
func NewProcessRunner(ext *embedded.Extractor, opts ...ProbeOption) (*ProbeRunner, error) {
	path, err := ext.Path(embedded.ProbeProcess)
	if err != nil {
		return nil, fmt.Errorf("failed to locate process probe: %w", err)
	}
	return NewProbeRunner(event.SourceProcess, path, opts...), nil
}
