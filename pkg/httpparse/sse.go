package httpparse

import (
	"bytes"
	"strings"
)

// sseBlock is one re-assembled Server-Sent Event.
type sseBlock struct {
	Event string
	ID    string
	Data  string
}

// sseDecoder re-assembles text/event-stream bodies spanning many kernel
// messages into event blocks. Blocks are separated by a blank line; within
// a block, "data:" lines are newline-joined, "event:" names the event, and
// "id:" sets the last-event-id.
type sseDecoder struct {
	pending []byte // bytes of the current, incomplete line or block

	event    string
	id       string
	data     []string
	hasField bool
}

// feed consumes body bytes and returns every block completed by them.
func (d *sseDecoder) feed(data []byte) []sseBlock {
	d.pending = append(d.pending, data...)

	var blocks []sseBlock
	for {
		idx := bytes.IndexByte(d.pending, '\n')
		if idx < 0 {
			return blocks
		}
		line := string(bytes.TrimSuffix(d.pending[:idx], []byte("\r")))
		d.pending = d.pending[idx+1:]

		if line == "" {
			if b, ok := d.complete(); ok {
				blocks = append(blocks, b)
			}
			continue
		}
		d.field(line)
	}
}

// flush emits the in-progress block, if any. Called when the stream closes
// without a trailing blank line.
func (d *sseDecoder) flush() []sseBlock {
	if len(d.pending) > 0 {
		line := strings.TrimSuffix(string(d.pending), "\r")
		d.pending = nil
		if line != "" {
			d.field(line)
		}
	}
	if b, ok := d.complete(); ok {
		return []sseBlock{b}
	}
	return nil
}

func (d *sseDecoder) field(line string) {
	// Comment lines start with a bare colon.
	if strings.HasPrefix(line, ":") {
		return
	}
	name, value := line, ""
	if idx := strings.IndexByte(line, ':'); idx >= 0 {
		name = line[:idx]
		value = line[idx+1:]
		value = strings.TrimPrefix(value, " ")
	}
	switch name {
	case "data":
		d.data = append(d.data, value)
		d.hasField = true
	case "event":
		d.event = value
		d.hasField = true
	case "id":
		d.id = value
		d.hasField = true
	}
}

func (d *sseDecoder) complete() (sseBlock, bool) {
	if !d.hasField {
		return sseBlock{}, false
	}
	b := sseBlock{
		Event: d.event,
		ID:    d.id,
		Data:  strings.Join(d.data, "\n"),
	}
	d.event, d.id, d.data, d.hasField = "", "", nil, false
	return b, true
}
