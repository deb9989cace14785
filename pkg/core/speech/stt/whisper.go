package stt

import (
	"context"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/medabroad/consult/pkg/core"
)

// Whisper is a Provider backed by the OpenAI transcription API.
type Whisper struct {
	client openai.Client
}

// NewWhisper creates a Whisper provider.
func NewWhisper(apiKey string) *Whisper {
	return &Whisper{client: openai.NewClient(option.WithAPIKey(apiKey))}
}

// Name returns "whisper".
func (w *Whisper) Name() string { return "whisper" }

// Transcribe uploads the audio and returns the transcript.
func (w *Whisper) Transcribe(ctx context.Context, audio io.Reader, opts TranscribeOptions) (*Transcript, error) {
	model := opts.Model
	if model == "" {
		model = string(openai.AudioModelWhisper1)
	}
	filename := opts.Filename
	if filename == "" {
		filename = "audio.webm"
	}
	mimeType := opts.MimeType
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(audio, filename, mimeType),
		Model: model,
	}
	if opts.Language != "" {
		params.Language = openai.String(opts.Language)
	}

	resp, err := w.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, core.NewProviderError("whisper", err)
	}
	return &Transcript{Text: resp.Text, Language: opts.Language}, nil
}
