package protocol

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"strings"
)

// Decoder reassembles frames from an event stream read in arbitrary chunks.
// Bytes are buffered until a complete block (terminated by a blank line)
// is available; a trailing partial block is carried into the next read.
type Decoder struct {
	r   io.Reader
	buf bytes.Buffer
	tmp [4096]byte
	eof bool
}

// NewDecoder wraps a raw byte stream, usually an HTTP response body.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Next returns the next complete frame. It returns io.EOF once the stream
// ends and no complete block remains buffered. Blocks whose payload cannot
// be parsed are logged and skipped without aborting the stream.
func (d *Decoder) Next() (Frame, error) {
	for {
		if block, ok := d.takeBlock(); ok {
			frame, ok := parseBlock(block)
			if !ok {
				log.Printf("[protocol] skipping unparseable event block: %q", truncate(block, 120))
				continue
			}
			return frame, nil
		}

		if d.eof {
			return Frame{}, io.EOF
		}

		n, err := d.r.Read(d.tmp[:])
		if n > 0 {
			d.buf.Write(d.tmp[:n])
		}
		if err == io.EOF {
			d.eof = true
			continue
		}
		if err != nil {
			return Frame{}, err
		}
	}
}

// takeBlock removes one double-line-break-terminated block from the buffer.
// Both bare and CRLF line endings terminate a block.
func (d *Decoder) takeBlock() (string, bool) {
	data := d.buf.Bytes()

	idx := bytes.Index(data, []byte("\n\n"))
	width := 2
	if crlf := bytes.Index(data, []byte("\r\n\r\n")); crlf >= 0 && (idx < 0 || crlf < idx) {
		idx = crlf
		width = 4
	}
	if idx < 0 {
		return "", false
	}

	block := string(data[:idx])
	d.buf.Next(idx + width)
	return block, true
}

// parseBlock interprets the header lines of one event block. A block needs
// both an event line and a data line carrying valid JSON to be usable.
func parseBlock(block string) (Frame, bool) {
	var eventType string
	var data strings.Builder

	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			// Multi-line data joins with a newline, per the SSE convention.
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}

	if eventType == "" || data.Len() == 0 {
		return Frame{}, false
	}
	if !json.Valid([]byte(data.String())) {
		return Frame{}, false
	}

	return Frame{Type: EventType(eventType), Data: json.RawMessage(data.String())}, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
