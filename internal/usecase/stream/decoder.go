// Package stream turns a server-sent generation stream into typed phase
// transitions. Decoder frames raw bytes, Dispatcher types and routes frames,
// Machine enforces phase order, and Client owns the request lifecycle.
package stream

import (
	"bytes"
	"strings"
)

// Frame is one data line of a complete stream record, before JSON decoding.
// Event holds the record's "event:" name, or "" when the record had none.
type Frame struct {
	Event string
	Data  []byte
}

var recordSep = []byte("\n\n")

// Decoder splits a byte stream into frames. It owns its carry-over buffer
// exclusively and is not safe for concurrent use.
type Decoder struct {
	buf []byte
}

// NewDecoder returns an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends chunk to the carry-over buffer and returns a frame for every
// record completed by it. CR bytes are dropped, so CRLF streams decode the
// same as LF streams. The frames returned for a byte sequence do not depend
// on how that sequence was split across calls.
func (d *Decoder) Feed(chunk []byte) []Frame {
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\r')
		if i < 0 {
			d.buf = append(d.buf, chunk...)
			break
		}
		d.buf = append(d.buf, chunk[:i]...)
		chunk = chunk[i+1:]
	}

	var frames []Frame
	consumed := 0
	for {
		i := bytes.Index(d.buf[consumed:], recordSep)
		if i < 0 {
			break
		}
		frames = appendRecord(frames, d.buf[consumed:consumed+i])
		consumed += i + len(recordSep)
	}
	if consumed > 0 {
		rest := len(d.buf) - consumed
		copy(d.buf, d.buf[consumed:])
		d.buf = d.buf[:rest]
	}
	return frames
}

// Buffered reports how many bytes are waiting for a record separator.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Close discards any partial record left at end of stream and returns the
// number of bytes dropped. Partial content never becomes a frame.
func (d *Decoder) Close() int {
	n := len(d.buf)
	d.buf = nil
	return n
}

// appendRecord parses one record and appends its frames. Each data line is
// its own frame. A record naming an event without data yields one frame
// with an empty payload. Comments, "id", "retry" and unknown fields are
// ignored.
func appendRecord(frames []Frame, record []byte) []Frame {
	var (
		event string
		data  [][]byte
	)
	for len(record) > 0 {
		var line []byte
		if i := bytes.IndexByte(record, '\n'); i >= 0 {
			line, record = record[:i], record[i+1:]
		} else {
			line, record = record, nil
		}
		if len(line) == 0 || line[0] == ':' {
			continue
		}

		field, value := splitField(line)
		switch field {
		case "event":
			event = strings.TrimSpace(string(value))
		case "data":
			data = append(data, bytes.Clone(value))
		}
	}

	if len(data) == 0 {
		if event != "" {
			frames = append(frames, Frame{Event: event})
		}
		return frames
	}
	for _, payload := range data {
		frames = append(frames, Frame{Event: event, Data: payload})
	}
	return frames
}

// splitField splits "name: value" at the first colon and drops one leading
// space from the value. A line without a colon is a field with no value.
func splitField(line []byte) (string, []byte) {
	i := bytes.IndexByte(line, ':')
	if i < 0 {
		return string(line), nil
	}
	value := line[i+1:]
	if len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}
	return string(line[:i]), value
}
