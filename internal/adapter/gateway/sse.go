package gateway

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"slidecoffee/internal/domain"
)

// SSEWriter writes stream events as server-sent events, flushing after each
// one.
type SSEWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

// NewSSEWriter wraps w. It fails when w cannot flush.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support flushing")
	}
	return &SSEWriter{w: w, flusher: f}, nil
}

// Emit writes ev as one "event:"/"data:" record. The payload also carries
// the event name in its "type" field.
func (s *SSEWriter) Emit(ev domain.StreamEvent) error {
	payload, err := domain.MarshalEvent(ev)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}

	var buf bytes.Buffer
	buf.Grow(len(payload) + 32)
	fmt.Fprintf(&buf, "event: %s\n", ev.Type())
	buf.WriteString("data: ")
	buf.Write(payload)
	buf.WriteString("\n\n")
	if _, err := s.w.Write(buf.Bytes()); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
