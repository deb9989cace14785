package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/medabroad/consult/pkg/core"
)

// OpenAI is a Provider backed by the OpenAI speech API, used as the standby
// voice when the primary synthesis provider is misconfigured.
type OpenAI struct {
	client openai.Client
}

// NewOpenAI creates an OpenAI provider.
func NewOpenAI(apiKey string) *OpenAI {
	return &OpenAI{client: openai.NewClient(option.WithAPIKey(apiKey))}
}

// Name returns "openai".
func (o *OpenAI) Name() string { return "openai" }

// Synthesize converts text to audio. The text is normalized for speech first.
// Voice ids in opts belong to the primary provider and do not translate, so a
// fixed neutral voice is used.
func (o *OpenAI) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error) {
	spoken := Spoken(text)
	if spoken == "" {
		return nil, core.NewInvalidRequestErrorWithParam("no speakable text after normalization", "text")
	}

	params := openai.AudioSpeechNewParams{
		Model:          openai.SpeechModelTTS1,
		Voice:          openai.AudioSpeechNewParamsVoiceAlloy,
		Input:          spoken,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	}
	if opts.Speed > 0 {
		params.Speed = openai.Float(opts.Speed)
	}

	resp, err := o.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, classifySpeech(err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewProviderError("openai", fmt.Errorf("read audio: %w", err))
	}
	return &Synthesis{Audio: audio, MimeType: "audio/mpeg"}, nil
}

// classifySpeech maps OpenAI speech failures to the error taxonomy.
func classifySpeech(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return core.NewAuthenticationError("openai rejected the API key")
		case http.StatusBadRequest:
			return core.NewInvalidRequestError(apierr.Message)
		case http.StatusTooManyRequests:
			return core.NewRateLimitError("openai rate limit exceeded", 0)
		}
	}
	return core.NewProviderError("openai", err)
}
