package analyzer

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/eunomia-bpf/agent-tracer/pkg/event"
	"github.com/eunomia-bpf/agent-tracer/pkg/log"
	"github.com/eunomia-bpf/agent-tracer/pkg/metrics"
)

// FileSink appends one JSON-serialized event per line to a file, rotating
// by size when configured. Events are forwarded downstream unchanged.
//
// Writes are line-atomic: a full line followed by '\n' reaches the file in
// a single Write call. fsync happens on graceful shutdown, not per event.
type FileSink struct {
	path        string
	rotateBytes int64
	capacity    int

	file *os.File
	size int64
}

// NewFileSink opens (or creates, appending) the sink file. Open failure is
// fatal to the caller. rotateBytes 0 disables rotation.
func NewFileSink(path string, rotateBytes int64, capacity int) (*FileSink, error) {
	if capacity <= 0 {
		capacity = DefaultLinkCapacity
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open sink file %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat sink file %s: %w", path, err)
	}
	return &FileSink{
		path:        path,
		rotateBytes: rotateBytes,
		capacity:    capacity,
		file:        f,
		size:        info.Size(),
	}, nil
}

// Name implements Analyzer.
func (s *FileSink) Name() string { return "filesink" }

// Process implements Analyzer.
func (s *FileSink) Process(ctx context.Context, in <-chan event.Event) <-chan event.Event {
	out := make(chan event.Event, s.capacity)
	logger := log.WithComponent("filesink")
	go func() {
		defer close(out)
		defer s.close(logger)
		for {
			select {
			case e, ok := <-in:
				if !ok {
					return
				}
				if err := s.write(e); err != nil {
					logger.Error().Err(err).Msg("sink write failed")
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

func (s *FileSink) write(e event.Event) error {
	line, err := e.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	line = append(line, '\n')

	if s.rotateBytes > 0 && s.size+int64(len(line)) > s.rotateBytes && s.size > 0 {
		if err := s.rotate(); err != nil {
			return err
		}
	}

	n, err := s.file.Write(line)
	if err != nil {
		return fmt.Errorf("failed to write event line: %w", err)
	}
	s.size += int64(n)
	metrics.SinkLinesWritten.Inc()
	return nil
}

// rotate renames the live file to <path>.<N> for the smallest unused N and
// reopens a fresh file. The write that triggered rotation lands in the new
// file.
func (s *FileSink) rotate() error {
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("failed to close sink file for rotation: %w", err)
	}

	var dest string
	for n := 1; ; n++ {
		dest = fmt.Sprintf("%s.%d", s.path, n)
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			break
		}
	}
	if err := os.Rename(s.path, dest); err != nil {
		return fmt.Errorf("failed to rotate sink file to %s: %w", dest, err)
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to reopen sink file after rotation: %w", err)
	}
	s.file = f
	s.size = 0
	metrics.SinkRotations.Inc()
	return nil
}

// close flushes and closes the live file on shutdown.
func (s *FileSink) close(logger zerolog.Logger) {
	if s.file == nil {
		return
	}
	if err := s.file.Sync(); err != nil {
		logger.Warn().Err(err).Msg("sink fsync failed")
	}
	if err := s.file.Close(); err != nil {
		logger.Warn().Err(err).Msg("sink close failed")
	}
	s.file = nil
}
