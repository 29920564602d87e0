package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eunomia-bpf/agent-tracer/pkg/analyzer"
	"github.com/eunomia-bpf/agent-tracer/pkg/config"
	"github.com/eunomia-bpf/agent-tracer/pkg/embedded"
	"github.com/eunomia-bpf/agent-tracer/pkg/filter"
	"github.com/eunomia-bpf/agent-tracer/pkg/httpparse"
	"github.com/eunomia-bpf/agent-tracer/pkg/log"
	"github.com/eunomia-bpf/agent-tracer/pkg/metrics"
	"github.com/eunomia-bpf/agent-tracer/pkg/runner"
	"github.com/eunomia-bpf/agent-tracer/pkg/server"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "agent-tracer",
	Short: "agent-tracer - AI-agent observability at the system boundary",
	Long: `agent-tracer monitors AI-agent processes at the system boundary.

Kernel-resident probes trace SSL/TLS payloads and process lifecycles;
agent-tracer reconstructs HTTP and SSE semantics from the raw probe
output, filters and enriches the stream, and serves it live over SSE
while persisting to disk.`,
	Version: Version,
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"agent-tracer version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	// Initialize logging before command execution
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(traceCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{
		Level:      log.Level(level),
		JSONOutput: jsonOut,
	})
	metrics.SetVersion(Version)
}

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Run the probes and the full analysis pipeline",
	RunE:  runTrace,
}

func init() {
	traceCmd.Flags().String("config", "", "Path to YAML configuration file")
	traceCmd.Flags().String("server", "", "host:port for the embedded server (overrides config)")
	traceCmd.Flags().String("file", "", "Path for the NDJSON file sink (overrides config)")
	traceCmd.Flags().Bool("console", false, "Echo events to stdout as NDJSON")
	traceCmd.Flags().StringSlice("ssl-filter", nil, "Filter expression applied to SSL events (repeatable)")
	traceCmd.Flags().StringSlice("http-filter", nil, "Filter expression applied to parsed HTTP events (repeatable)")
}

func runTrace(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Extract the embedded probe binaries; cleaned up on shutdown.
	extractor, err := embedded.NewExtractor()
	if err != nil {
		return fmt.Errorf("failed to extract probes: %w", err)
	}
	defer func() {
		if err := extractor.Close(); err != nil {
			log.Errorf("extractor cleanup failed", err)
		}
	}()

	agent, err := buildAgent(cmd, cfg, extractor)
	if err != nil {
		return err
	}

	events, err := agent.Run(ctx)
	if err != nil {
		return fmt.Errorf("failed to start agent: %w", err)
	}
	metrics.RegisterComponent("agent", true, "running")

	if cfg.Server.Bind != "" {
		broadcast := server.NewBroadcast(cfg.Broadcast.Capacity)
		srv := server.New(cfg.Server.Bind, broadcast,
			server.WithDefaultAsset(cfg.Server.DefaultAsset))
		err = srv.Serve(ctx, events)
	} else {
		// No server: drain the sequence so sinks keep running.
		for range events {
		}
	}

	stopErr := agent.Stop()
	if err != nil {
		return err
	}
	return stopErr
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	var cfg *config.Config
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	if bind, _ := cmd.Flags().GetString("server"); bind != "" {
		cfg.Server.Bind = bind
	}
	if file, _ := cmd.Flags().GetString("file"); file != "" {
		cfg.File.Path = file
	}
	if sslFilter, _ := cmd.Flags().GetStringSlice("ssl-filter"); len(sslFilter) > 0 {
		cfg.SSL.Filter = sslFilter
	}
	if httpFilter, _ := cmd.Flags().GetStringSlice("http-filter"); len(httpFilter) > 0 {
		cfg.HTTP.Filter = httpFilter
	}
	return cfg, nil
}

// buildAgent wires the per-runner chains, the runners, and the global
// chain from configuration.
func buildAgent(cmd *cobra.Command, cfg *config.Config, extractor *embedded.Extractor) (*runner.AgentRunner, error) {
	linkCap := cfg.Pipeline.LinkCapacity

	// SSL chain: raw filter → HTTP re-assembly → HTTP filter → scrubbing.
	var sslChain []analyzer.Analyzer
	sslFilter, err := filter.New("ssl", cfg.SSL.Filter)
	if err != nil {
		return nil, err
	}
	if !sslFilter.Empty() {
		sslChain = append(sslChain, analyzer.NewFilter(sslFilter, linkCap))
	}
	sslChain = append(sslChain, httpparse.New(httpparse.Config{
		RawData:        cfg.HTTP.RawData,
		SSEMerge:       cfg.SSE.Merge,
		MaxBodyBytes:   cfg.Chunk.MaxBytes,
		IdleTimeout:    cfg.MergerIdle(),
		MaxConnections: cfg.Merger.MaxConnections,
		LinkCapacity:   linkCap,
	}))
	httpFilter, err := filter.New("http", cfg.HTTP.Filter)
	if err != nil {
		return nil, err
	}
	if !httpFilter.Empty() {
		sslChain = append(sslChain, analyzer.NewFilter(httpFilter, linkCap))
	}
	sslChain = append(sslChain, analyzer.NewScrubber(nil, linkCap))

	sslRunner, err := runner.NewSSLRunner(extractor,
		runner.WithAnalyzers(sslChain...),
		runner.WithLinkCapacity(linkCap),
		runner.WithStopDeadline(cfg.ShutdownDeadline()))
	if err != nil {
		return nil, err
	}

	processRunner, err := runner.NewProcessRunner(extractor,
		runner.WithLinkCapacity(linkCap),
		runner.WithStopDeadline(cfg.ShutdownDeadline()))
	if err != nil {
		return nil, err
	}

	// Global chain: correlation, then sinks.
	global := []analyzer.Analyzer{analyzer.NewCorrelator(linkCap)}
	if cfg.File.Path != "" {
		sink, err := analyzer.NewFileSink(cfg.File.Path, cfg.File.RotateBytes, linkCap)
		if err != nil {
			return nil, err
		}
		global = append(global, sink)
		metrics.RegisterComponent("filesink", true, cfg.File.Path)
	}
	if console, _ := cmd.Flags().GetBool("console"); console {
		global = append(global, analyzer.NewConsoleSink(nil, linkCap))
	}

	return runner.NewAgentRunner(
		[]runner.Runner{sslRunner, processRunner},
		runner.WithGlobalAnalyzers(global...),
		runner.WithAgentLinkCapacity(linkCap),
		runner.WithAgentStopDeadline(cfg.ShutdownDeadline()),
	), nil
}
