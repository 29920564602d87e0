package embedded

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/eunomia-bpf/agent-tracer/pkg/log"
)

// Probe binaries are bundled at build time. The checked-in files are
// placeholders; the Makefile replaces them with the compiled BPF loaders
// before a release build.
//
//go:embed probes/*
var probes embed.FS

// DirPrefix tags extraction directories so operators can scavenge stale
// ones left behind by a crashed process.
const DirPrefix = "agent-tracer-"

// Logical probe names, usable with Extractor.Path.
const (
	ProbeSSL     = "sslsniff"
	ProbeProcess = "process"
)

// Extractor materializes the embedded probe binaries into a private
// temporary directory and removes them on Close. No two extractors share
// a directory.
type Extractor struct {
	dir   string
	paths map[string]string
}

// NewExtractor unpacks every embedded probe into a fresh private directory
// and marks each executable. The caller must Close the extractor to remove
// the directory.
func NewExtractor() (*Extractor, error) {
	dir, err := os.MkdirTemp("", DirPrefix+uuid.NewString()[:8]+"-")
	if err != nil {
		return nil, classifyExtractError("create extraction directory", err)
	}
	if err := os.Chmod(dir, 0o700); err != nil {
		_ = os.RemoveAll(dir)
		return nil, classifyExtractError("restrict extraction directory", err)
	}

	e := &Extractor{
		dir:   dir,
		paths: make(map[string]string),
	}

	entries, err := probes.ReadDir("probes")
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to read embedded probes: %w", err)
	}

	logger := log.WithComponent("extractor")
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		data, err := probes.ReadFile("probes/" + name)
		if err != nil {
			_ = os.RemoveAll(dir)
			return nil, fmt.Errorf("failed to read embedded probe %s: %w", name, err)
		}
		dest := filepath.Join(dir, name)
		if err := os.WriteFile(dest, data, 0o755); err != nil {
			_ = os.RemoveAll(dir)
			return nil, classifyExtractError("write probe "+name, err)
		}
		e.paths[name] = dest
		logger.Debug().Str("probe", name).Str("path", dest).Msg("extracted probe binary")
	}

	if len(e.paths) == 0 {
		_ = os.RemoveAll(dir)
		return nil, errors.New("no embedded probe binaries found - run 'make bundle' to embed them")
	}

	logger.Info().Str("dir", dir).Int("probes", len(e.paths)).Msg("probe binaries extracted")
	return e, nil
}

// Path returns the on-disk path of a probe by logical name.
func (e *Extractor) Path(name string) (string, error) {
	p, ok := e.paths[name]
	if !ok {
		return "", fmt.Errorf("unknown probe %q", name)
	}
	return p, nil
}

// Dir returns the private extraction directory.
func (e *Extractor) Dir() string {
	return e.dir
}

// Close removes the extraction directory and everything in it.
func (e *Extractor) Close() error {
	if e.dir == "" {
		return nil
	}
	err := os.RemoveAll(e.dir)
	e.dir = ""
	if err != nil {
		return fmt.Errorf("failed to remove extraction directory: %w", err)
	}
	return nil
}

// classifyExtractError distinguishes a read-only filesystem from a plain
// permission problem so the operator gets an actionable message.
func classifyExtractError(op string, err error) error {
	switch {
	case errors.Is(err, syscall.EROFS):
		return fmt.Errorf("failed to %s: filesystem is read-only: %w", op, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("failed to %s: permission denied: %w", op, err)
	case errors.Is(err, syscall.ENOSPC):
		return fmt.Errorf("failed to %s: no space left on device: %w", op, err)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}
