package voice

import (
	"context"
	"log/slog"

	"github.com/medabroad/consult/pkg/core/speech/tts"
)

// AudioSink plays synthesized audio, blocking until playback completes or ctx
// is canceled.
type AudioSink interface {
	Play(ctx context.Context, audio []byte, mimeType string) error
}

// SynthesisSpeaker speaks via a TTS provider and an audio sink. Pair it with
// tts.Fallback to get provider failover.
type SynthesisSpeaker struct {
	provider tts.Provider
	sink     AudioSink
	voice    string
	logger   *slog.Logger
}

// NewSynthesisSpeaker creates a Speaker.
func NewSynthesisSpeaker(provider tts.Provider, sink AudioSink, voice string, logger *slog.Logger) *SynthesisSpeaker {
	return &SynthesisSpeaker{provider: provider, sink: sink, voice: voice, logger: logger}
}

// Speak synthesizes text and plays it.
func (sp *SynthesisSpeaker) Speak(ctx context.Context, text string) error {
	synth, err := sp.provider.Synthesize(ctx, text, tts.SynthesizeOptions{Voice: sp.voice})
	if err != nil {
		return err
	}
	sp.logger.Debug("synthesized reply", "provider", sp.provider.Name(), "bytes", len(synth.Audio))
	return sp.sink.Play(ctx, synth.Audio, synth.MimeType)
}
