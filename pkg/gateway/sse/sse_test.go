package sse

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/medabroad/consult/pkg/core/types"
)

func TestWriterFraming(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := New(rec)
	if err != nil {
		t.Fatal(err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q", cc)
	}
	if ab := rec.Header().Get("X-Accel-Buffering"); ab != "no" {
		t.Errorf("X-Accel-Buffering = %q", ab)
	}
	if rec.Code != 200 {
		t.Errorf("status = %d", rec.Code)
	}

	if err := w.Send(types.StreamFrame{Content: "hi", SessionID: "s1"}); err != nil {
		t.Fatal(err)
	}
	if err := w.Done(); err != nil {
		t.Fatal(err)
	}

	body := rec.Body.String()
	frames := strings.Split(strings.TrimSuffix(body, "\n\n"), "\n\n")
	if len(frames) != 2 {
		t.Fatalf("frames = %d, body %q", len(frames), body)
	}
	if !strings.HasPrefix(frames[0], `data: {`) || !strings.Contains(frames[0], `"content":"hi"`) {
		t.Errorf("frame 0 = %q", frames[0])
	}
	if frames[1] != "data: [DONE]" {
		t.Errorf("frame 1 = %q", frames[1])
	}
}

func TestWriterRequiresFlusher(t *testing.T) {
	// A writer without http.Flusher cannot stream.
	if _, err := New(plainWriter{httptest.NewRecorder()}); err == nil {
		t.Error("expected error for non-flushable writer")
	}
}

type plainWriter struct{ rec *httptest.ResponseRecorder }

func (p plainWriter) Header() http.Header         { return p.rec.Header() }
func (p plainWriter) Write(b []byte) (int, error) { return p.rec.Write(b) }
func (p plainWriter) WriteHeader(code int)        { p.rec.WriteHeader(code) }
