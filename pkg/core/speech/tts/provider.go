// Package tts provides text-to-speech synthesis.
package tts

import "context"

// Provider is the interface for text-to-speech services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize converts text to audio.
	Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error)
}

// SynthesizeOptions configures synthesis.
type SynthesizeOptions struct {
	Voice  string  // Voice identifier
	Model  string  // Provider-specific model
	Speed  float64 // Speed multiplier (0.6-1.5, default 1.0)
	Format string  // Output format (default "mp3_44100_128")
}

// Synthesis is the result of synthesis.
type Synthesis struct {
	Audio    []byte // Audio data
	MimeType string // e.g. "audio/mpeg"
}
