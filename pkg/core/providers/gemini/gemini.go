// Package gemini adapts the Google GenAI SDK to the core provider interface.
package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"

	"google.golang.org/genai"

	"github.com/medabroad/consult/pkg/core"
	"github.com/medabroad/consult/pkg/core/types"
)

// Provider implements core.Provider over the Gemini API.
type Provider struct {
	client *genai.Client
	logger *slog.Logger
}

// New creates a Provider with the given API key.
func New(ctx context.Context, apiKey string, logger *slog.Logger) (*Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, core.NewProviderError("gemini", err)
	}
	return &Provider{client: client, logger: logger.With("provider", "gemini")}, nil
}

// Name returns "gemini".
func (p *Provider) Name() string { return "gemini" }

// Complete sends a non-streaming generation request.
func (p *Provider) Complete(ctx context.Context, req *types.CompletionRequest) (*types.Completion, error) {
	contents, config := translate(req)
	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return nil, classify(err)
	}
	return &types.Completion{Text: resp.Text(), Model: req.Model, Usage: usageFrom(resp)}, nil
}

type streamItem struct {
	resp *genai.GenerateContentResponse
	err  error
}

// OpenStream starts a streaming generation. The SDK's iterator only reports a
// failed request on the first pull, so one item is prefetched here to surface
// establish errors synchronously.
func (p *Provider) OpenStream(ctx context.Context, req *types.CompletionRequest) (core.EventStream, error) {
	contents, config := translate(req)
	sctx, cancel := context.WithCancel(ctx)
	events := make(chan streamItem, 16)
	go func() {
		defer close(events)
		for resp, err := range p.client.Models.GenerateContentStream(sctx, req.Model, contents, config) {
			select {
			case events <- streamItem{resp: resp, err: err}:
			case <-sctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	first, ok := <-events
	if ok && first.err != nil {
		cancel()
		return nil, classify(first.err)
	}
	es := &eventStream{events: events, cancel: cancel}
	if ok {
		es.pending = &first
	}
	return es, nil
}

type eventStream struct {
	events  <-chan streamItem
	cancel  context.CancelFunc
	pending *streamItem
	usage   *types.Usage
	done    bool
}

func (s *eventStream) Next() (types.StreamEvent, error) {
	if s.done {
		return types.StreamEvent{}, io.EOF
	}
	for {
		var item streamItem
		var ok bool
		if s.pending != nil {
			item, ok = *s.pending, true
			s.pending = nil
		} else {
			item, ok = <-s.events
		}
		if !ok {
			s.done = true
			return types.StreamEvent{Type: types.EventDone, Usage: s.usage}, nil
		}
		if item.err != nil {
			return types.StreamEvent{}, classify(item.err)
		}
		if u := usageFrom(item.resp); u != nil {
			s.usage = u
		}
		if text := item.resp.Text(); text != "" {
			return types.StreamEvent{Type: types.EventDelta, Delta: text}, nil
		}
	}
}

func (s *eventStream) Close() error {
	s.cancel()
	return nil
}

func translate(req *types.CompletionRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		var role genai.Role = genai.RoleUser
		if m.Role == types.RoleAssistant {
			role = genai.RoleModel
		}
		parts := []*genai.Part{genai.NewPartFromText(m.Content)}
		for _, img := range m.Images {
			raw, err := base64.StdEncoding.DecodeString(img.Data)
			if err != nil {
				continue
			}
			parts = append(parts, genai.NewPartFromBytes(raw, img.MimeType))
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}

	config := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	return contents, config
}

func usageFrom(resp *genai.GenerateContentResponse) *types.Usage {
	if resp == nil || resp.UsageMetadata == nil {
		return nil
	}
	return &types.Usage{
		InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
		OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
	}
}

func classify(err error) error {
	var aerr genai.APIError
	if errors.As(err, &aerr) {
		switch aerr.Code {
		case 400:
			return core.NewInvalidRequestError(aerr.Message)
		case 401, 403:
			return core.NewAuthenticationError(aerr.Message)
		case 404:
			return core.NewNotFoundError(aerr.Message)
		case 429:
			return core.NewRateLimitError(aerr.Message, 0)
		case 503:
			return core.NewOverloadedError(aerr.Message)
		}
		if aerr.Code >= 500 {
			return core.NewAPIError(aerr.Message)
		}
	}
	return core.NewProviderError("gemini", err)
}
