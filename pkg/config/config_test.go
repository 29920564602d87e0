package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 16<<20, cfg.Chunk.MaxBytes)
	assert.Equal(t, 30*time.Second, cfg.MergerIdle())
	assert.Equal(t, 1024, cfg.Merger.MaxConnections)
	assert.Equal(t, 256, cfg.Broadcast.Capacity)
	assert.Equal(t, 1024, cfg.Pipeline.LinkCapacity)
	assert.Equal(t, 2*time.Second, cfg.ShutdownDeadline())
	assert.False(t, cfg.SSE.Merge)
	assert.False(t, cfg.HTTP.RawData)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
ssl:
  filter: ["data_type=read"]
http:
  filter: ["response.status>=400"]
  raw_data: true
sse:
  merge: true
chunk:
  max_bytes: 1048576
merger:
  idle_ms: 5000
file:
  path: /tmp/events.ndjson
  rotate_bytes: 1000
server:
  bind: 127.0.0.1:9999
broadcast:
  capacity: 16
shutdown:
  deadline_ms: 500
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"data_type=read"}, cfg.SSL.Filter)
	assert.Equal(t, []string{"response.status>=400"}, cfg.HTTP.Filter)
	assert.True(t, cfg.HTTP.RawData)
	assert.True(t, cfg.SSE.Merge)
	assert.Equal(t, 1<<20, cfg.Chunk.MaxBytes)
	assert.Equal(t, 5*time.Second, cfg.MergerIdle())
	assert.Equal(t, "/tmp/events.ndjson", cfg.File.Path)
	assert.Equal(t, int64(1000), cfg.File.RotateBytes)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Bind)
	assert.Equal(t, 16, cfg.Broadcast.Capacity)
	assert.Equal(t, 500*time.Millisecond, cfg.ShutdownDeadline())
	// Unset options still get defaults.
	assert.Equal(t, 1024, cfg.Pipeline.LinkCapacity)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ssl: ["), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
