package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full agent-tracer configuration surface. Zero values are
// replaced by documented defaults in Normalize.
type Config struct {
	SSL       SSLConfig       `yaml:"ssl"`
	HTTP      HTTPConfig      `yaml:"http"`
	SSE       SSEConfig       `yaml:"sse"`
	Chunk     ChunkConfig     `yaml:"chunk"`
	Merger    MergerConfig    `yaml:"merger"`
	File      FileConfig      `yaml:"file"`
	Server    ServerConfig    `yaml:"server"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Shutdown  ShutdownConfig  `yaml:"shutdown"`
}

// SSLConfig controls the SSL runner.
type SSLConfig struct {
	// Filter is a filter expression list applied to raw SSL events.
	Filter []string `yaml:"filter"`
}

// HTTPConfig controls HTTP parsing.
type HTTPConfig struct {
	// Filter is a filter expression list applied to parsed HTTP events.
	Filter []string `yaml:"filter"`
	// RawData keeps the raw SSL data field on decoded HTTP events.
	RawData bool `yaml:"raw_data"`
}

// SSEConfig controls Server-Sent Event re-assembly.
type SSEConfig struct {
	// Merge makes SSE streams emit a terminal consolidated response event.
	Merge bool `yaml:"merge"`
}

// ChunkConfig bounds body re-assembly.
type ChunkConfig struct {
	// MaxBytes caps re-assembled bodies; excess is truncated.
	MaxBytes int `yaml:"max_bytes"`
}

// MergerConfig controls per-connection re-assembly state.
type MergerConfig struct {
	// IdleMs is the idle timeout for per-connection state, milliseconds.
	IdleMs int `yaml:"idle_ms"`
	// MaxConnections bounds the connection state map; least-recently
	// touched entries are evicted beyond it.
	MaxConnections int `yaml:"max_connections"`
}

// FileConfig controls the file sink.
type FileConfig struct {
	// Path is the destination for the NDJSON sink; empty disables it.
	Path string `yaml:"path"`
	// RotateBytes triggers size rotation; 0 disables.
	RotateBytes int64 `yaml:"rotate_bytes"`
}

// ServerConfig controls the embedded web server.
type ServerConfig struct {
	// Bind is the host:port to listen on; empty disables the server.
	Bind string `yaml:"bind"`
	// DefaultAsset is the asset path "/" redirects to.
	DefaultAsset string `yaml:"default_asset"`
}

// BroadcastConfig controls the SSE fan-out.
type BroadcastConfig struct {
	// Capacity is the per-subscriber queue depth.
	Capacity int `yaml:"capacity"`
}

// PipelineConfig tunes inter-stage links.
type PipelineConfig struct {
	// LinkCapacity is the bounded channel depth between pipeline stages.
	LinkCapacity int `yaml:"link_capacity"`
}

// ShutdownConfig controls graceful teardown.
type ShutdownConfig struct {
	// DeadlineMs is the drain deadline for stopping runners, milliseconds.
	DeadlineMs int `yaml:"deadline_ms"`
}

// Default returns the documented default configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.Normalize()
	return cfg
}

// Load reads a YAML configuration file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Normalize fills zero values with documented defaults.
func (c *Config) Normalize() {
	if c.Chunk.MaxBytes <= 0 {
		c.Chunk.MaxBytes = 16 << 20 // 16 MiB
	}
	if c.Merger.IdleMs <= 0 {
		c.Merger.IdleMs = 30_000
	}
	if c.Merger.MaxConnections <= 0 {
		c.Merger.MaxConnections = 1024
	}
	if c.Broadcast.Capacity <= 0 {
		c.Broadcast.Capacity = 256
	}
	if c.Pipeline.LinkCapacity <= 0 {
		c.Pipeline.LinkCapacity = 1024
	}
	if c.Shutdown.DeadlineMs <= 0 {
		c.Shutdown.DeadlineMs = 2_000
	}
	if c.Server.DefaultAsset == "" {
		c.Server.DefaultAsset = "index.html"
	}
}

// MergerIdle returns the merger idle timeout as a duration.
func (c *Config) MergerIdle() time.Duration {
	return time.Duration(c.Merger.IdleMs) * time.Millisecond
}

// ShutdownDeadline returns the drain deadline as a duration.
func (c *Config) ShutdownDeadline() time.Duration {
	return time.Duration(c.Shutdown.DeadlineMs) * time.Millisecond
}
