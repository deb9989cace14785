// Package sse writes server-sent event streams in the data-only framing the
// chat endpoint uses.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// Writer serializes SSE frames onto a response writer. Safe for concurrent
// use.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// New wraps a response writer, sets the SSE headers, and flushes them.
func New(w http.ResponseWriter) (*Writer, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	f.Flush()
	return &Writer{w: w, flusher: f}, nil
}

// Send writes one data frame with the JSON encoding of v.
func (sw *Writer) Send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return sw.sendRaw(string(b))
}

// Done writes the literal [DONE] terminator frame.
func (sw *Writer) Done() error {
	return sw.sendRaw("[DONE]")
}

func (sw *Writer) sendRaw(payload string) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}
