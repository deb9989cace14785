// Package openai adapts the official OpenAI SDK to the core provider
// interface.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/medabroad/consult/pkg/core"
	"github.com/medabroad/consult/pkg/core/types"
)

// Provider implements core.Provider over the OpenAI chat completions API.
type Provider struct {
	client openai.Client
	logger *slog.Logger
}

// New creates a Provider with the given API key.
func New(apiKey string, logger *slog.Logger) *Provider {
	return &Provider{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		logger: logger.With("provider", "openai"),
	}
}

// Name returns "openai".
func (p *Provider) Name() string { return "openai" }

// Complete sends a non-streaming chat completion request.
func (p *Provider) Complete(ctx context.Context, req *types.CompletionRequest) (*types.Completion, error) {
	resp, err := p.client.Chat.Completions.New(ctx, buildParams(req))
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, core.NewProviderError("openai", fmt.Errorf("response contained no choices"))
	}
	return &types.Completion{
		Text:  resp.Choices[0].Message.Content,
		Model: resp.Model,
		Usage: &types.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}, nil
}

// OpenStream starts a streaming chat completion. The SDK surfaces request
// failures on the stream's Err immediately, so establish errors are returned
// here before any delta is produced.
func (p *Provider) OpenStream(ctx context.Context, req *types.CompletionRequest) (core.EventStream, error) {
	s := p.client.Chat.Completions.NewStreaming(ctx, buildParams(req))
	if err := s.Err(); err != nil {
		_ = s.Close()
		return nil, classify(err)
	}
	return &eventStream{stream: s}, nil
}

type eventStream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
	usage  *types.Usage
	done   bool
}

func (s *eventStream) Next() (types.StreamEvent, error) {
	if s.done {
		return types.StreamEvent{}, io.EOF
	}
	for s.stream.Next() {
		chunk := s.stream.Current()
		if chunk.Usage.TotalTokens > 0 {
			s.usage = &types.Usage{
				InputTokens:  int(chunk.Usage.PromptTokens),
				OutputTokens: int(chunk.Usage.CompletionTokens),
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		return types.StreamEvent{Type: types.EventDelta, Delta: delta}, nil
	}
	if err := s.stream.Err(); err != nil && !errors.Is(err, io.EOF) {
		return types.StreamEvent{}, classify(err)
	}
	s.done = true
	return types.StreamEvent{Type: types.EventDone, Usage: s.usage}, nil
}

func (s *eventStream) Close() error { return s.stream.Close() }

func buildParams(req *types.CompletionRequest) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case types.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			if m.HasImages() {
				parts := []openai.ChatCompletionContentPartUnionParam{
					openai.TextContentPart(m.Content),
				}
				for _, img := range m.Images {
					parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
						URL:    img.DataURL(),
						Detail: "high",
					}))
				}
				msgs = append(msgs, openai.UserMessage(parts))
			} else {
				msgs = append(msgs, openai.UserMessage(m.Content))
			}
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    req.Model,
		Messages: msgs,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	return params
}

func classify(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case 400:
			return core.NewInvalidRequestError(apierr.Message)
		case 401, 403:
			return core.NewAuthenticationError(apierr.Message)
		case 404:
			return core.NewNotFoundError(apierr.Message)
		case 429:
			return core.NewRateLimitError(apierr.Message, 0)
		case 529:
			return core.NewOverloadedError(apierr.Message)
		}
		if apierr.StatusCode >= 500 {
			return core.NewAPIError(apierr.Message)
		}
	}
	return core.NewProviderError("openai", err)
}
