package analyzer

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/eunomia-bpf/agent-tracer/pkg/event"
	"github.com/eunomia-bpf/agent-tracer/pkg/log"
)

// ConsoleSink writes one NDJSON line per event to a writer (stdout by
// default), forwarding events unchanged. Output is buffered and flushed on
// shutdown so the event path never blocks on terminal I/O per line.
type ConsoleSink struct {
	w        io.Writer
	capacity int
}

// NewConsoleSink builds a console sink; nil writer means stdout.
func NewConsoleSink(w io.Writer, capacity int) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	if capacity <= 0 {
		capacity = DefaultLinkCapacity
	}
	return &ConsoleSink{w: w, capacity: capacity}
}

// Name implements Analyzer.
func (s *ConsoleSink) Name() string { return "console" }

// Process implements Analyzer.
func (s *ConsoleSink) Process(ctx context.Context, in <-chan event.Event) <-chan event.Event {
	out := make(chan event.Event, s.capacity)
	logger := log.WithComponent("console")
	bw := bufio.NewWriter(s.w)
	go func() {
		defer close(out)
		defer func() {
			if err := bw.Flush(); err != nil {
				logger.Warn().Err(err).Msg("console flush failed")
			}
		}()
		for {
			select {
			case e, ok := <-in:
				if !ok {
					return
				}
				if line, err := e.Marshal(); err == nil {
					_, _ = bw.Write(line)
					_ = bw.WriteByte('\n')
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
