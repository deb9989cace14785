package tts

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/medabroad/consult/pkg/core"
)

// Fallback wraps a primary and a secondary provider. Configuration failures
// of the primary (bad key, invalid voice) switch all subsequent synthesis to
// the secondary. Transient failures (rate limits, network) are returned to
// the caller unchanged: a retry against a healthy primary beats switching
// voices mid-conversation.
type Fallback struct {
	primary   Provider
	secondary Provider
	logger    *slog.Logger
	demoted   atomic.Bool
}

// NewFallback creates a fallback provider pair.
func NewFallback(primary, secondary Provider, logger *slog.Logger) *Fallback {
	return &Fallback{primary: primary, secondary: secondary, logger: logger}
}

// Name returns the active provider's name.
func (f *Fallback) Name() string {
	if f.demoted.Load() {
		return f.secondary.Name()
	}
	return f.primary.Name()
}

// Synthesize tries the primary provider, falling back only on
// configuration-class failures.
func (f *Fallback) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error) {
	if f.demoted.Load() {
		return f.secondary.Synthesize(ctx, text, opts)
	}
	synth, err := f.primary.Synthesize(ctx, text, opts)
	if err == nil {
		return synth, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	ce, ok := core.AsError(err)
	if !ok || !ce.IsConfiguration() {
		return nil, err
	}
	f.demoted.Store(true)
	f.logger.Warn("tts primary misconfigured, demoting permanently",
		"primary", f.primary.Name(), "secondary", f.secondary.Name(), "error", err)
	return f.secondary.Synthesize(ctx, text, opts)
}
