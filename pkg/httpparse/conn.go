package httpparse

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// maxHeaderBytes bounds the unparsed header block per direction; beyond it
// the stream is considered out of sync.
const maxHeaderBytes = 64 << 10

// result is one output of driving a direction's state machine.
type result struct {
	msg      *message // completed message, nil otherwise
	sse      *sseBlock
	parseErr string
}

// dirState is the per-(connection, direction) re-assembly state machine:
// IDLE → HEADERS → BODY_{LENGTH,CHUNKED,SSE,IDENTITY} → DONE, re-entering
// HEADERS for pipelined messages.
type dirState struct {
	buf []byte
	msg *message

	remaining int64 // bytes left for length framing
	chunk     chunkDecoder
	sse       sseDecoder
}

// feed appends payload bytes and drives the state machine as far as the
// buffered input allows. A framing error resets the direction to a clean
// HEADERS state so it can re-synchronize on the next message boundary.
func (s *dirState) feed(data []byte, maxBytes int) []result {
	s.buf = append(s.buf, data...)

	var results []result
	for {
		progressed, res, err := s.step(maxBytes)
		if err != nil {
			s.reset()
			results = append(results, result{parseErr: err.Error()})
			return results
		}
		results = append(results, res...)
		if !progressed {
			return results
		}
	}
}

// step advances the machine once. It reports whether any input was
// consumed or a message completed.
func (s *dirState) step(maxBytes int) (bool, []result, error) {
	if s.msg == nil {
		return s.stepHeaders()
	}

	switch s.msg.framing {
	case framingLength:
		if len(s.buf) == 0 {
			return false, nil, nil
		}
		n := s.remaining
		if n > int64(len(s.buf)) {
			n = int64(len(s.buf))
		}
		s.msg.appendBody(s.buf[:n], maxBytes)
		s.buf = s.buf[n:]
		s.remaining -= n
		if s.remaining > 0 {
			return false, nil, nil
		}
		return true, []result{{msg: s.finish()}}, nil

	case framingChunked:
		if len(s.buf) == 0 {
			return false, nil, nil
		}
		rest, done, err := s.chunk.feed(s.buf, s.msg, maxBytes)
		if err != nil {
			return false, nil, err
		}
		consumed := len(s.buf) != len(rest)
		s.buf = rest
		if !done {
			return consumed, nil, nil
		}
		return true, []result{{msg: s.finish()}}, nil

	case framingSSE:
		if len(s.buf) == 0 {
			return false, nil, nil
		}
		chunk := s.buf
		s.buf = nil
		s.msg.bodyLen += int64(len(chunk))
		blocks := s.sse.feed(chunk)
		// A pathological stream with no newlines must not grow without
		// bound; the partial line is dropped once it exceeds the body cap.
		if len(s.sse.pending) > maxBytes {
			s.sse.pending = nil
			s.msg.truncated = true
		}
		var results []result
		for i := range blocks {
			s.accumulateSSE(blocks[i], maxBytes)
			results = append(results, result{sse: &blocks[i]})
		}
		// The message itself stays open until close hint or idle eviction.
		return false, results, nil

	case framingIdentity:
		if len(s.buf) == 0 {
			return false, nil, nil
		}
		s.msg.appendBody(s.buf, maxBytes)
		s.buf = nil
		return false, nil, nil

	default:
		return true, []result{{msg: s.finish()}}, nil
	}
}

func (s *dirState) stepHeaders() (bool, []result, error) {
	idx := bytes.Index(s.buf, []byte("\r\n\r\n"))
	if idx < 0 {
		if len(s.buf) > maxHeaderBytes {
			return false, nil, fmt.Errorf("header block exceeds %d bytes", maxHeaderBytes)
		}
		return false, nil, nil
	}
	block := s.buf[:idx]
	s.buf = s.buf[idx+4:]

	msg, err := parseHeaderBlock(block)
	if err != nil {
		return false, nil, err
	}
	length, err := decideFraming(msg)
	if err != nil {
		return false, nil, err
	}
	s.msg = msg
	switch msg.framing {
	case framingLength:
		s.remaining = length
		if s.remaining == 0 {
			// Content-Length: 0 completes immediately.
			return true, []result{{msg: s.finish()}}, nil
		}
	case framingChunked:
		s.chunk = chunkDecoder{}
	case framingSSE:
		s.sse = sseDecoder{}
	}
	return true, nil, nil
}

// decideFraming applies the body framing precedence: chunked transfer
// encoding, then text/event-stream, then Content-Length, then empty for
// requests and HTTP/1.1 responses, identity (read until close) otherwise.
func decideFraming(msg *message) (int64, error) {
	if te, ok := msg.header("Transfer-Encoding"); ok &&
		strings.Contains(strings.ToLower(te), "chunked") {
		msg.framing = framingChunked
		return 0, nil
	}
	if !msg.isRequest {
		if ct, ok := msg.header("Content-Type"); ok &&
			strings.HasPrefix(strings.ToLower(strings.TrimSpace(ct)), "text/event-stream") {
			msg.framing = framingSSE
			return 0, nil
		}
	}
	if cl, ok := msg.header("Content-Length"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 63)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid Content-Length %q", cl)
		}
		msg.framing = framingLength
		return n, nil
	}
	if msg.isRequest || msg.version == "HTTP/1.1" {
		msg.framing = framingNone
		return 0, nil
	}
	msg.framing = framingIdentity
	return 0, nil
}

// parseHeaderBlock parses a start line plus header block. Byte-oriented:
// values may contain invalid UTF-8 and are carried through untouched.
func parseHeaderBlock(block []byte) (*message, error) {
	lines := bytes.Split(block, []byte("\r\n"))
	if len(lines) == 0 {
		return nil, fmt.Errorf("empty header block")
	}
	msg, err := parseStartLine(string(lines[0]))
	if err != nil {
		return nil, err
	}
	for _, raw := range lines[1:] {
		if len(raw) == 0 {
			continue
		}
		colon := bytes.IndexByte(raw, ':')
		if colon <= 0 {
			// Tolerate stray lines; the probe can split mid-handshake.
			continue
		}
		msg.headers = append(msg.headers, Header{
			Name:  string(raw[:colon]),
			Value: string(bytes.TrimLeft(raw[colon+1:], " \t")),
		})
	}
	return msg, nil
}

func parseStartLine(line string) (*message, error) {
	if strings.HasPrefix(line, "HTTP/") {
		parts := strings.SplitN(line, " ", 3)
		if len(parts) < 2 {
			return nil, fmt.Errorf("malformed response line %q", line)
		}
		status, err := strconv.Atoi(parts[1])
		if err != nil || status < 100 || status > 999 {
			return nil, fmt.Errorf("malformed response status in %q", line)
		}
		msg := &message{
			version: parts[0],
			status:  status,
		}
		if len(parts) == 3 {
			msg.reason = parts[2]
		}
		return msg, nil
	}

	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 || !strings.HasPrefix(parts[2], "HTTP/") || !validMethod(parts[0]) {
		return nil, fmt.Errorf("malformed start line %q", line)
	}
	return &message{
		isRequest: true,
		method:    parts[0],
		path:      parts[1],
		version:   parts[2],
	}, nil
}

func validMethod(m string) bool {
	if m == "" || len(m) > 24 {
		return false
	}
	for i := 0; i < len(m); i++ {
		c := m[i]
		if (c < 'A' || c > 'Z') && c != '-' {
			return false
		}
	}
	return true
}

// finish detaches and returns the completed message, re-arming the
// direction for the next one.
func (s *dirState) finish() *message {
	m := s.msg
	s.msg = nil
	return m
}

// reset discards all per-direction state after a framing error.
func (s *dirState) reset() {
	s.buf = nil
	s.msg = nil
	s.remaining = 0
	s.chunk = chunkDecoder{}
	s.sse = sseDecoder{}
}

// accumulateSSE appends a completed block to the open message body for the
// optional terminal consolidated response.
func (s *dirState) accumulateSSE(b sseBlock, maxBytes int) {
	if len(s.msg.body) > 0 {
		s.msg.appendCapped([]byte("\n"), maxBytes)
	}
	s.msg.appendCapped([]byte(b.Data), maxBytes)
}

// flush closes the direction on a connection-close hint or idle eviction,
// returning any pending SSE block and the open SSE/identity message.
func (s *dirState) flush(maxBytes int) []result {
	if s.msg == nil {
		s.reset()
		return nil
	}
	var results []result
	switch s.msg.framing {
	case framingSSE:
		for _, b := range s.sse.flush() {
			s.accumulateSSE(b, maxBytes)
			blk := b
			results = append(results, result{sse: &blk})
		}
		results = append(results, result{msg: s.finish()})
	case framingIdentity:
		results = append(results, result{msg: s.finish()})
	default:
		// Incomplete length/chunked message: nothing trustworthy to emit.
	}
	s.reset()
	return results
}
