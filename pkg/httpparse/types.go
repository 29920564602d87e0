package httpparse

import "strings"

// Header is one HTTP header with original casing preserved.
type Header struct {
	Name  string
	Value string
}

// message is a partially or fully parsed HTTP message.
type message struct {
	isRequest bool

	// request fields
	method string
	path   string

	// response fields
	status int
	reason string

	version   string
	headers   []Header
	body      []byte
	bodyLen   int64 // total logical body bytes seen, including truncated excess
	truncated bool
	framing   framing
}

// framing enumerates how the message body is delimited.
type framing int

const (
	framingNone framing = iota
	framingLength
	framingChunked
	framingSSE
	framingIdentity
)

func (f framing) String() string {
	switch f {
	case framingLength:
		return "length"
	case framingChunked:
		return "chunked"
	case framingSSE:
		return "sse"
	case framingIdentity:
		return "identity"
	default:
		return "none"
	}
}

// header returns the first header value matching name, case-insensitively.
func (m *message) header(name string) (string, bool) {
	for _, h := range m.headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// headerList renders headers as a JSON-friendly ordered list.
func (m *message) headerList() []any {
	out := make([]any, 0, len(m.headers))
	for _, h := range m.headers {
		out = append(out, map[string]any{
			"name":  h.Name,
			"value": h.Value,
		})
	}
	return out
}

// appendBody accumulates body bytes up to the cap; excess is counted but
// discarded so per-connection memory stays bounded.
func (m *message) appendBody(data []byte, maxBytes int) {
	m.bodyLen += int64(len(data))
	m.appendCapped(data, maxBytes)
}

// appendCapped appends without touching the logical length counter. Used
// when re-assembled SSE blocks are folded into an already-counted stream.
func (m *message) appendCapped(data []byte, maxBytes int) {
	room := maxBytes - len(m.body)
	if room <= 0 {
		m.truncated = true
		return
	}
	if len(data) > room {
		data = data[:room]
		m.truncated = true
	}
	m.body = append(m.body, data...)
}

// reqInfo is the request summary retained for response pairing.
type reqInfo struct {
	method string
	path   string
}
