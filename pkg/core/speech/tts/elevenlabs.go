package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/medabroad/consult/pkg/core"
)

const (
	elevenLabsBaseURL = "https://api.elevenlabs.io/v1"
	defaultModel      = "eleven_turbo_v2"
	defaultFormat     = "mp3_44100_128"
)

// ElevenLabs is a Provider backed by the ElevenLabs HTTP API.
type ElevenLabs struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewElevenLabs creates an ElevenLabs provider.
func NewElevenLabs(apiKey string) *ElevenLabs {
	return &ElevenLabs{
		apiKey:  apiKey,
		baseURL: elevenLabsBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Name returns "elevenlabs".
func (e *ElevenLabs) Name() string { return "elevenlabs" }

type elevenLabsRequest struct {
	Text          string                 `json:"text"`
	ModelID       string                 `json:"model_id"`
	VoiceSettings map[string]interface{} `json:"voice_settings,omitempty"`
}

// Synthesize converts text to audio. The text is normalized for speech first
// (markdown, URLs and emoji stripped).
func (e *ElevenLabs) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error) {
	spoken := Spoken(text)
	if spoken == "" {
		return nil, core.NewInvalidRequestErrorWithParam("no speakable text after normalization", "text")
	}
	if opts.Voice == "" {
		return nil, core.NewInvalidRequestErrorWithParam("voice is required", "voice")
	}

	model := opts.Model
	if model == "" {
		model = defaultModel
	}
	format := opts.Format
	if format == "" {
		format = defaultFormat
	}

	body, err := json.Marshal(elevenLabsRequest{
		Text:    spoken,
		ModelID: model,
		VoiceSettings: map[string]interface{}{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s", e.baseURL, opts.Voice, format)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, core.NewProviderError("elevenlabs", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewProviderError("elevenlabs", fmt.Errorf("read audio: %w", err))
	}
	return &Synthesis{Audio: audio, MimeType: "audio/mpeg"}, nil
}

// classifyStatus maps ElevenLabs HTTP failures to the error taxonomy.
// 401 means a bad API key and 400 an invalid voice, both configuration
// errors a caller may permanently fail over on; 429 is transient.
func classifyStatus(resp *http.Response) error {
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return core.NewAuthenticationError("elevenlabs rejected the API key")
	case http.StatusBadRequest:
		return core.NewInvalidRequestErrorWithParam("elevenlabs rejected the voice or request: "+string(detail), "voice")
	case http.StatusTooManyRequests:
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		return core.NewRateLimitError("elevenlabs rate limit exceeded", retryAfter)
	default:
		return core.NewProviderError("elevenlabs", fmt.Errorf("status %d: %s", resp.StatusCode, detail))
	}
}
