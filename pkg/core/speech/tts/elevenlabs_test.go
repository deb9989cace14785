package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/medabroad/consult/pkg/core"
)

func newTestElevenLabs(handler http.HandlerFunc) (*ElevenLabs, *httptest.Server) {
	srv := httptest.NewServer(handler)
	e := NewElevenLabs("test-key")
	e.baseURL = srv.URL
	return e, srv
}

func TestElevenLabsSynthesize(t *testing.T) {
	var gotPath, gotKey string
	var gotBody elevenLabsRequest
	e, srv := newTestElevenLabs(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		gotKey = r.Header.Get("xi-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte("mp3-data"))
	})
	defer srv.Close()

	synth, err := e.Synthesize(context.Background(), "**Hello** patient", SynthesizeOptions{Voice: "voice-1"})
	if err != nil {
		t.Fatal(err)
	}
	if string(synth.Audio) != "mp3-data" || synth.MimeType != "audio/mpeg" {
		t.Errorf("synth = %+v", synth)
	}
	if gotPath != "/text-to-speech/voice-1?output_format=mp3_44100_128" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("api key header = %q", gotKey)
	}
	if gotBody.Text != "Hello patient" {
		t.Errorf("text = %q, want markdown stripped", gotBody.Text)
	}
	if gotBody.ModelID != "eleven_turbo_v2" {
		t.Errorf("model = %q", gotBody.ModelID)
	}
}

func TestElevenLabsValidation(t *testing.T) {
	e := NewElevenLabs("k")

	_, err := e.Synthesize(context.Background(), "hi", SynthesizeOptions{})
	ce, ok := core.AsError(err)
	if !ok || ce.Param != "voice" {
		t.Errorf("missing voice: err = %v", err)
	}

	_, err = e.Synthesize(context.Background(), "```code only```", SynthesizeOptions{Voice: "v"})
	ce, ok = core.AsError(err)
	if !ok || ce.Type != core.ErrInvalidRequest {
		t.Errorf("unspeakable text: err = %v", err)
	}
}

func TestElevenLabsClassifiesFailures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		retryAfter string
		wantType   core.ErrorType
		wantConfig bool
	}{
		{name: "bad key", status: http.StatusUnauthorized, wantType: core.ErrAuthentication, wantConfig: true},
		{name: "bad voice", status: http.StatusBadRequest, wantType: core.ErrInvalidRequest, wantConfig: true},
		{name: "rate limited", status: http.StatusTooManyRequests, retryAfter: "3", wantType: core.ErrRateLimit},
		{name: "server error", status: http.StatusBadGateway, wantType: core.ErrProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, srv := newTestElevenLabs(func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.status)
			})
			defer srv.Close()

			_, err := e.Synthesize(context.Background(), "hello", SynthesizeOptions{Voice: "v"})
			ce, ok := core.AsError(err)
			if !ok {
				t.Fatalf("err = %v, want core error", err)
			}
			if ce.Type != tt.wantType {
				t.Errorf("type = %q, want %q", ce.Type, tt.wantType)
			}
			if ce.IsConfiguration() != tt.wantConfig {
				t.Errorf("IsConfiguration() = %v", ce.IsConfiguration())
			}
			if tt.retryAfter != "" && (ce.RetryAfter == nil || *ce.RetryAfter != 3) {
				t.Errorf("RetryAfter = %v", ce.RetryAfter)
			}
		})
	}
}
