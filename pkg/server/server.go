package server

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eunomia-bpf/agent-tracer/pkg/event"
	"github.com/eunomia-bpf/agent-tracer/pkg/log"
	"github.com/eunomia-bpf/agent-tracer/pkg/metrics"
)

//go:embed assets/*
var assetFS embed.FS

// pingInterval is how often idle SSE connections receive a keep-alive.
const pingInterval = 15 * time.Second

// Server exposes the live event feed over SSE plus static assets, health,
// and Prometheus metrics.
type Server struct {
	bind         string
	defaultAsset string
	broadcast    *Broadcast
	httpServer   *http.Server
}

// Option tweaks a Server.
type Option func(*Server)

// WithDefaultAsset sets the asset path "/" redirects to.
func WithDefaultAsset(p string) Option {
	return func(s *Server) {
		if p != "" {
			s.defaultAsset = p
		}
	}
}

// New builds a server bound to host:port with the given broadcast.
func New(bind string, broadcast *Broadcast, opts ...Option) *Server {
	s := &Server{
		bind:         bind,
		defaultAsset: "index.html",
		broadcast:    broadcast,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/assets/", s.handleAsset)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleRoot)

	s.httpServer = &http.Server{
		Addr:              bind,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Serve starts the listener and pumps the event sequence into the
// broadcast until the sequence closes or the context is cancelled. It
// blocks; the returned error is nil on graceful shutdown.
func (s *Server) Serve(ctx context.Context, events <-chan event.Event) error {
	logger := log.WithComponent("server")

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("bind", s.bind).Msg("embedded server listening")
		metrics.RegisterComponent("server", true, "listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			metrics.UpdateComponent("server", false, err.Error())
			errCh <- err
		}
	}()

	pump := make(chan struct{})
	go func() {
		defer close(pump)
		for {
			select {
			case e, ok := <-events:
				if !ok {
					return
				}
				s.broadcast.Publish(e)
			case <-ctx.Done():
				return
			}
		}
	}()

	var err error
	select {
	case err = <-errCh:
	case <-pump:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.httpServer.Shutdown(shutdownCtx)
	s.broadcast.Close()
	if err != nil {
		return fmt.Errorf("embedded server failed: %w", err)
	}
	return nil
}

// handleEvents streams the broadcast as Server-Sent Events. Each event is
// one frame; a ping frame goes out every 15 s when idle.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.broadcast.Subscribe()
	defer s.broadcast.Unsubscribe(sub)

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case e, ok := <-sub.Events:
			if !ok {
				return
			}
			data, err := e.Marshal()
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: agent\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
			ping.Reset(pingInterval)
		case <-ping.C:
			if _, err := fmt.Fprintf(w, "event: ping\ndata: {}\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// handleAsset serves a file from the embedded asset map with the MIME
// type inferred from its extension. Unknown paths return 404.
func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/assets/")
	name = path.Clean("/" + name)[1:] // no traversal out of the asset root
	if name == "" {
		http.NotFound(w, r)
		return
	}

	data, err := fs.ReadFile(assetFS, "assets/"+name)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	ctype := mime.TypeByExtension(path.Ext(name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	_, _ = w.Write(data)
}

// handleHealth reports component health as JSON.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	health := metrics.GetHealth()
	w.Header().Set("Content-Type", "application/json")
	if health.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(health)
}

// handleRoot redirects to the configured default asset.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/api/assets/"+s.defaultAsset, http.StatusFound)
}
