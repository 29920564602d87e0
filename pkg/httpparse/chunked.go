package httpparse

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// chunkDecoder incrementally decodes a chunked transfer-encoded body
// (RFC 7230 §4.1) from byte fragments that may split anywhere, including
// mid size-line.
type chunkDecoder struct {
	state     chunkState
	remaining int // payload bytes left in the current chunk
}

type chunkState int

const (
	chunkSize chunkState = iota
	chunkPayload
	chunkPayloadCRLF
	chunkTrailers
)

// feed consumes as much of buf as possible, appending decoded payload to
// msg. It returns the unconsumed remainder, whether the terminal chunk has
// been fully decoded, and any framing error. On error the caller must
// discard the connection state.
func (d *chunkDecoder) feed(buf []byte, msg *message, maxBytes int) (rest []byte, done bool, err error) {
	for {
		switch d.state {
		case chunkSize:
			idx := bytes.Index(buf, []byte("\r\n"))
			if idx < 0 {
				// A size line longer than any sane hex count means the
				// stream is out of sync.
				if len(buf) > 256 {
					return nil, false, fmt.Errorf("chunk size line exceeds 256 bytes")
				}
				return buf, false, nil
			}
			line := string(buf[:idx])
			buf = buf[idx+2:]
			// Strip chunk extensions.
			if semi := strings.IndexByte(line, ';'); semi >= 0 {
				line = line[:semi]
			}
			size, perr := strconv.ParseInt(strings.TrimSpace(line), 16, 63)
			if perr != nil || size < 0 {
				return nil, false, fmt.Errorf("invalid chunk size %q", line)
			}
			if size == 0 {
				d.state = chunkTrailers
				continue
			}
			d.remaining = int(size)
			d.state = chunkPayload

		case chunkPayload:
			if len(buf) == 0 {
				return buf, false, nil
			}
			n := d.remaining
			if n > len(buf) {
				n = len(buf)
			}
			msg.appendBody(buf[:n], maxBytes)
			buf = buf[n:]
			d.remaining -= n
			if d.remaining == 0 {
				d.state = chunkPayloadCRLF
			}

		case chunkPayloadCRLF:
			if len(buf) < 2 {
				return buf, false, nil
			}
			if buf[0] != '\r' || buf[1] != '\n' {
				return nil, false, fmt.Errorf("missing CRLF after chunk payload")
			}
			buf = buf[2:]
			d.state = chunkSize

		case chunkTrailers:
			// Zero or more trailer lines, then a bare CRLF.
			if len(buf) >= 2 && buf[0] == '\r' && buf[1] == '\n' {
				return buf[2:], true, nil
			}
			idx := bytes.Index(buf, []byte("\r\n"))
			if idx < 0 {
				if len(buf) > maxHeaderBytes {
					return nil, false, fmt.Errorf("trailer block exceeds %d bytes", maxHeaderBytes)
				}
				return buf, false, nil
			}
			// Trailer line consumed and ignored.
			buf = buf[idx+2:]
		}
	}
}
