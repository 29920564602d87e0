package httpparse

import (
	"container/list"
	"context"
	"encoding/base64"
	"strconv"
	"time"

	"github.com/eunomia-bpf/agent-tracer/pkg/event"
	"github.com/eunomia-bpf/agent-tracer/pkg/metrics"
)

// maxPendingRequests bounds the FIFO pairing queue per connection.
const maxPendingRequests = 256

// Config tunes the HTTP parser and chunk merger.
type Config struct {
	// RawData keeps the raw SSL payload on decoded HTTP events.
	RawData bool
	// SSEMerge emits a terminal consolidated http.response for SSE streams.
	SSEMerge bool
	// MaxBodyBytes caps re-assembled bodies; excess is truncated.
	MaxBodyBytes int
	// IdleTimeout evicts per-connection state not touched for this long.
	IdleTimeout time.Duration
	// MaxConnections bounds the state map; least-recently-touched entries
	// are evicted beyond it.
	MaxConnections int
	// LinkCapacity is the output channel depth.
	LinkCapacity int
}

func (c *Config) normalize() {
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 16 << 20
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Second
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = 1024
	}
	if c.LinkCapacity <= 0 {
		c.LinkCapacity = 1024
	}
}

// Analyzer reconstructs HTTP/1.1 request/response semantics from raw SSL
// payload events: header parsing, chunked transfer decoding, and SSE
// re-assembly spanning many kernel messages. Stateful with time-bounded
// per-connection memory.
type Analyzer struct {
	cfg Config

	// All state below is owned by the Process goroutine; no locking.
	conns     map[string]*connState
	lru       *list.List // front = most recently touched
	evictions uint64
}

// connState groups both directions of one logical connection plus the
// FIFO request queue used for response pairing.
type connState struct {
	id      string
	dirs    map[string]*dirState
	pending []reqInfo
	idleAt  time.Time
	elem    *list.Element
}

// New builds the parser/merger analyzer.
func New(cfg Config) *Analyzer {
	cfg.normalize()
	return &Analyzer{
		cfg:   cfg,
		conns: make(map[string]*connState),
		lru:   list.New(),
	}
}

// Name implements analyzer.Analyzer.
func (a *Analyzer) Name() string { return "http" }

// Process implements analyzer.Analyzer. SSL payload events are consumed
// and replaced by parsed events; everything else passes through unchanged.
func (a *Analyzer) Process(ctx context.Context, in <-chan event.Event) <-chan event.Event {
	out := make(chan event.Event, a.cfg.LinkCapacity)

	tick := a.cfg.IdleTimeout / 4
	if tick < time.Second {
		tick = time.Second
	}

	go func() {
		defer close(out)
		ticker := time.NewTicker(tick)
		defer ticker.Stop()

		emit := func(e event.Event) bool {
			select {
			case out <- e:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case e, ok := <-in:
				if !ok {
					a.drain(emit)
					return
				}
				for _, ev := range a.handle(e) {
					if !emit(ev) {
						return
					}
				}
			case <-ticker.C:
				for _, ev := range a.evictIdle(time.Now()) {
					if !emit(ev) {
						return
					}
				}
			case <-ctx.Done():
				a.clear()
				return
			}
		}
	}()
	return out
}

// handle routes one input event through the connection state machines and
// returns the events to emit in its place.
func (a *Analyzer) handle(e event.Event) []event.Event {
	if e.Source != event.SourceSSL {
		return []event.Event{e}
	}

	dataType := e.DataString("data_type")
	switch dataType {
	case "read", "write":
	case "close":
		return a.closeConn(e)
	default:
		if e.Type() == "connection_close" {
			return a.closeConn(e)
		}
		// Handshake and other non-payload events pass through.
		return []event.Event{e}
	}

	payload := decodePayload(e)
	if len(payload) == 0 {
		return nil
	}
	direction := e.DataString("direction")
	if direction == "" {
		direction = dataType
	}

	conn := a.touch(connID(e), e.Timestamp)
	dir, ok := conn.dirs[direction]
	if !ok {
		dir = &dirState{}
		conn.dirs[direction] = dir
	}

	var events []event.Event
	for _, r := range dir.feed(payload, a.cfg.MaxBodyBytes) {
		events = append(events, a.render(e, conn, r)...)
	}
	return events
}

// closeConn flushes and drops all state for the event's connection.
func (a *Analyzer) closeConn(e event.Event) []event.Event {
	id := connID(e)
	conn, ok := a.conns[id]
	if !ok {
		return []event.Event{e}
	}
	events := []event.Event{e}
	events = append(events, a.flushConn(e, conn)...)
	a.remove(conn)
	return events
}

func (a *Analyzer) flushConn(trigger event.Event, conn *connState) []event.Event {
	var events []event.Event
	for _, dir := range conn.dirs {
		for _, r := range dir.flush(a.cfg.MaxBodyBytes) {
			events = append(events, a.render(trigger, conn, r)...)
		}
	}
	return events
}

// render converts a state machine result into pipeline events.
func (a *Analyzer) render(trigger event.Event, conn *connState, r result) []event.Event {
	switch {
	case r.parseErr != "":
		metrics.HTTPParseErrors.Inc()
		return []event.Event{a.derive(trigger, map[string]any{
			"type":          "http.parse_error",
			"connection_id": conn.id,
			"error":         r.parseErr,
		})}

	case r.sse != nil:
		data := map[string]any{
			"type":          "sse.message",
			"connection_id": conn.id,
			"sse": map[string]any{
				"event": r.sse.Event,
				"id":    r.sse.ID,
				"data":  r.sse.Data,
			},
		}
		metrics.HTTPMessages.WithLabelValues("sse.message").Inc()
		return []event.Event{a.derive(trigger, data)}

	case r.msg != nil:
		return a.renderMessage(trigger, conn, r.msg)
	}
	return nil
}

func (a *Analyzer) renderMessage(trigger event.Event, conn *connState, m *message) []event.Event {
	// SSE streams only produce a terminal response when configured.
	if m.framing == framingSSE && !a.cfg.SSEMerge {
		return nil
	}

	body := map[string]any{
		"version":  m.version,
		"headers":  m.headerList(),
		"body":     string(m.body),
		"body_len": m.bodyLen,
	}
	if m.truncated {
		body["truncated"] = true
	}
	if m.framing == framingIdentity {
		body["framing"] = "identity"
	}

	data := map[string]any{
		"connection_id": conn.id,
	}
	if a.cfg.RawData {
		data["raw"] = trigger.DataString("data")
	}

	if m.isRequest {
		body["method"] = m.method
		body["path"] = m.path
		data["type"] = "http.request"
		data["request"] = body
		conn.pending = append(conn.pending, reqInfo{method: m.method, path: m.path})
		if len(conn.pending) > maxPendingRequests {
			conn.pending = conn.pending[1:]
		}
		metrics.HTTPMessages.WithLabelValues("request").Inc()
	} else {
		body["status"] = m.status
		body["reason"] = m.reason
		data["type"] = "http.response"
		data["response"] = body
		// FIFO pairing with the oldest unanswered request.
		if len(conn.pending) > 0 {
			req := conn.pending[0]
			conn.pending = conn.pending[1:]
			data["request"] = map[string]any{
				"method": req.method,
				"path":   req.path,
			}
		}
		metrics.HTTPMessages.WithLabelValues("response").Inc()
	}
	return []event.Event{a.derive(trigger, data)}
}

// derive stamps a new event from the trigger's identity.
func (a *Analyzer) derive(trigger event.Event, data map[string]any) event.Event {
	return event.Event{
		Timestamp: trigger.Timestamp,
		Source:    trigger.Source,
		PID:       trigger.PID,
		Comm:      trigger.Comm,
		Data:      data,
	}
}

// touch returns the connection state, creating it and refreshing its LRU
// position and idle stamp. Creation beyond capacity evicts the
// least-recently-touched connection.
func (a *Analyzer) touch(id string, ts int64) *connState {
	conn, ok := a.conns[id]
	if !ok {
		conn = &connState{
			id:   id,
			dirs: make(map[string]*dirState),
		}
		conn.elem = a.lru.PushFront(conn)
		a.conns[id] = conn
		metrics.MergerConnections.Set(float64(len(a.conns)))
		if len(a.conns) > a.cfg.MaxConnections {
			if oldest := a.lru.Back(); oldest != nil {
				a.evict(oldest.Value.(*connState))
			}
		}
	} else {
		a.lru.MoveToFront(conn.elem)
	}
	conn.idleAt = time.Unix(0, ts).Add(a.cfg.IdleTimeout)
	return conn
}

func (a *Analyzer) evict(conn *connState) {
	a.remove(conn)
	a.evictions++
	metrics.MergerEvictions.Inc()
}

func (a *Analyzer) remove(conn *connState) {
	delete(a.conns, conn.id)
	a.lru.Remove(conn.elem)
	metrics.MergerConnections.Set(float64(len(a.conns)))
}

// evictIdle flushes and drops connections whose idle deadline has passed.
func (a *Analyzer) evictIdle(now time.Time) []event.Event {
	var events []event.Event
	for e := a.lru.Back(); e != nil; {
		conn := e.Value.(*connState)
		prev := e.Prev()
		if now.Before(conn.idleAt) {
			// Deadlines are the touching event's timestamp plus a constant
			// timeout, so LRU order follows deadline order and the first
			// live entry ends the scan.
			break
		}
		for _, dir := range conn.dirs {
			for _, r := range dir.flush(a.cfg.MaxBodyBytes) {
				events = append(events, a.renderEvicted(conn, r)...)
			}
		}
		a.evict(conn)
		e = prev
	}
	return events
}

// renderEvicted renders flush results without a triggering event.
func (a *Analyzer) renderEvicted(conn *connState, r result) []event.Event {
	trigger := event.Event{
		Timestamp: time.Now().UnixNano(),
		Source:    event.SourceSSL,
	}
	return a.render(trigger, conn, r)
}

// drain flushes every open connection at end of input.
func (a *Analyzer) drain(emit func(event.Event) bool) {
	for id, conn := range a.conns {
		for _, dir := range conn.dirs {
			for _, r := range dir.flush(a.cfg.MaxBodyBytes) {
				for _, ev := range a.renderEvicted(conn, r) {
					if !emit(ev) {
						return
					}
				}
			}
		}
		delete(a.conns, id)
	}
	a.lru.Init()
	metrics.MergerConnections.Set(0)
}

// clear drops all state without emitting, on cancellation.
func (a *Analyzer) clear() {
	a.conns = make(map[string]*connState)
	a.lru.Init()
	metrics.MergerConnections.Set(0)
}

// Evictions returns the number of connection states evicted so far.
// Only meaningful after Process has returned or from tests driving the
// analyzer synchronously.
func (a *Analyzer) Evictions() uint64 { return a.evictions }

// connID returns the probe-supplied connection id, or a synthetic
// per-process fallback.
func connID(e event.Event) string {
	if id := e.DataString("connection_id"); id != "" {
		return id
	}
	if e.PID == 0 {
		return "pid-unknown"
	}
	return "pid-" + strconv.Itoa(int(e.PID))
}

// decodePayload returns the raw payload bytes. Probes emit either plain
// text or base64; a payload that decodes as standard base64 and passes
// looksBinaryEncoded is decoded, anything else is taken verbatim.
func decodePayload(e event.Event) []byte {
	s := e.DataString("data")
	if s == "" {
		s = e.DataString("payload")
	}
	if s == "" {
		return nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(s); err == nil && looksBinaryEncoded(s) {
		return decoded
	}
	return []byte(s)
}

// looksBinaryEncoded reports whether the payload is plausibly base64.
// Cleartext HTTP always contains spaces or CR/LF, which base64 never does.
func looksBinaryEncoded(s string) bool {
	if len(s) < 8 || len(s)%4 != 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '+', c == '/', c == '=':
		default:
			return false
		}
	}
	return true
}
