// Package orchestrator drives one chat turn: history loading, model
// selection with fallback, delta streaming, state derivation, and
// persistence on completion.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medabroad/consult/pkg/core"
	"github.com/medabroad/consult/pkg/core/types"
	"github.com/medabroad/consult/pkg/store"
)

// Sink receives the frames of one streamed turn. The gateway wraps an SSE
// writer in it; tests use in-memory fakes.
type Sink interface {
	SendFrame(types.StreamFrame) error
	SendError(types.ErrorFrame) error
	SendDone() error
}

// Options configures an Orchestrator.
type Options struct {
	TextModel           string
	TextFallbackModel   string
	VisionModel         string
	VisionFallbackModel string
	SummaryModel        string
	SystemPrompt        string
	Temperature         float64
	TextMaxTokens       int
	VisionMaxTokens     int
	HistoryLimit        int
	PersistTimeout      time.Duration
}

// Orchestrator owns the chat turn flow.
type Orchestrator struct {
	registry core.ProviderRegistry
	store    store.Store
	opts     Options
	logger   *slog.Logger
}

// New creates an Orchestrator.
func New(registry core.ProviderRegistry, st store.Store, opts Options, logger *slog.Logger) *Orchestrator {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 4
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 10 * time.Second
	}
	return &Orchestrator{registry: registry, store: st, opts: opts, logger: logger}
}

// Stream runs one chat turn, writing all output to sink. The request must
// already be validated (non-empty messages ending in a user turn).
//
// Persistence happens after the final frame and the terminator are sent; a
// store failure is logged but never retracts output the client already has.
func (o *Orchestrator) Stream(ctx context.Context, req *types.ChatRequest, sink Sink) error {
	owner := store.NormalizeOwner(req.UserEmail)
	userMsg, ok := req.LastUserMessage()
	if !ok {
		return core.NewInvalidRequestErrorWithParam("last message must have the user role", "messages")
	}

	log := o.logger.With("session_id", req.SessionID, "owner", owner)

	// Delta frames echo the inbound state untouched; flags are derived once
	// from the fully accumulated text after the stream ends, so a sentinel
	// split across deltas is still caught.
	inbound := types.ChatState{}
	if req.ChatState != nil {
		inbound = *req.ChatState
	}

	history := o.loadHistory(ctx, req.SessionID, owner, log)
	provMsgs := append(history, foldDocuments(userMsg))

	primary, fallback, maxTokens := o.chooseModels(userMsg)
	stream, model, err := o.open(ctx, provMsgs, primary, fallback, maxTokens, log)
	if err != nil {
		o.sendError(sink, req.SessionID, err, log)
		return err
	}
	defer stream.Close()

	log = log.With("model", model)

	var full strings.Builder
	for {
		ev, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Mid-stream failure: surface it and drop the partial turn.
			log.Error("stream failed mid-turn", "error", err, "accumulated", full.Len())
			o.sendError(sink, req.SessionID, err, log)
			return err
		}
		if ev.Type == types.EventDone {
			break
		}
		full.WriteString(ev.Delta)
		frameState := inbound
		if err := sink.SendFrame(types.StreamFrame{
			Content:   ev.Delta,
			SessionID: req.SessionID,
			ChatState: &frameState,
		}); err != nil {
			log.Debug("client went away mid-stream", "error", err)
			return err
		}
	}

	finalState := DeriveState(inbound, full.String(), userMsg.Content)
	if err := sink.SendFrame(types.StreamFrame{
		SessionID:   req.SessionID,
		ChatState:   &finalState,
		IsComplete:  true,
		FullMessage: full.String(),
	}); err != nil {
		return err
	}
	if err := sink.SendDone(); err != nil {
		return err
	}

	o.persist(ctx, req, owner, userMsg, full.String(), finalState, log)
	return nil
}

// Summarize condenses a stored conversation and appends the result to the
// session's summaries.
func (o *Orchestrator) Summarize(ctx context.Context, threadID, ownerEmail string) (*types.Summary, error) {
	owner := store.NormalizeOwner(ownerEmail)
	sess, err := o.store.GetSession(ctx, threadID, owner)
	if err != nil {
		return nil, err
	}
	if len(sess.Messages) == 0 {
		return nil, core.NewInvalidRequestError("conversation has no messages to summarize")
	}

	var b strings.Builder
	for _, m := range sess.Messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}

	provider, ok := o.registry.ForModel(o.opts.SummaryModel)
	if !ok {
		return nil, core.NewAPIError("no provider registered for model " + o.opts.SummaryModel)
	}
	completion, err := provider.Complete(ctx, &types.CompletionRequest{
		Model:        o.opts.SummaryModel,
		SystemPrompt: "Summarize the following conversation in a short paragraph. Keep names, dates and decisions.",
		Messages: []types.Message{{
			Role:    types.RoleUser,
			Content: b.String(),
		}},
		Temperature: 0.3,
		MaxTokens:   300,
	})
	if err != nil {
		return nil, err
	}

	summary := types.Summary{
		Text:         strings.TrimSpace(completion.Text),
		MessageCount: len(sess.Messages),
		Timestamp:    time.Now().UTC(),
	}
	if err := o.store.AppendSummary(ctx, threadID, owner, summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (o *Orchestrator) loadHistory(ctx context.Context, threadID, owner string, log *slog.Logger) []types.Message {
	if threadID == "" {
		return nil
	}
	sess, err := o.store.GetSession(ctx, threadID, owner)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn("history lookup failed, continuing without", "error", err)
		}
		return nil
	}

	filtered := make([]types.Message, 0, len(sess.Messages))
	for _, m := range sess.Messages {
		if m.Role == types.RoleUser || m.Role == types.RoleAssistant {
			filtered = append(filtered, m)
		}
	}
	if len(filtered) > o.opts.HistoryLimit {
		filtered = filtered[len(filtered)-o.opts.HistoryLimit:]
	}
	return filtered
}

func (o *Orchestrator) chooseModels(userMsg types.Message) (primary, fallback string, maxTokens int) {
	if userMsg.HasImages() {
		return o.opts.VisionModel, o.opts.VisionFallbackModel, o.opts.VisionMaxTokens
	}
	return o.opts.TextModel, o.opts.TextFallbackModel, o.opts.TextMaxTokens
}

// open starts the provider stream, retrying once with the fallback model
// when the primary fails to establish.
func (o *Orchestrator) open(ctx context.Context, msgs []types.Message, primary, fallback string, maxTokens int, log *slog.Logger) (core.EventStream, string, error) {
	stream, err := o.openModel(ctx, msgs, primary, maxTokens)
	if err == nil {
		return stream, primary, nil
	}
	if ctx.Err() != nil {
		return nil, "", err
	}
	log.Warn("primary model failed to establish, trying fallback",
		"primary", primary, "fallback", fallback, "error", err)

	stream, ferr := o.openModel(ctx, msgs, fallback, maxTokens)
	if ferr != nil {
		log.Error("fallback model failed to establish", "fallback", fallback, "error", ferr)
		return nil, "", ferr
	}
	return stream, fallback, nil
}

func (o *Orchestrator) openModel(ctx context.Context, msgs []types.Message, model string, maxTokens int) (core.EventStream, error) {
	provider, ok := o.registry.ForModel(model)
	if !ok {
		return nil, core.NewAPIError("no provider registered for model " + model)
	}
	return provider.OpenStream(ctx, &types.CompletionRequest{
		Model:        model,
		SystemPrompt: o.opts.SystemPrompt,
		Messages:     msgs,
		Temperature:  o.opts.Temperature,
		MaxTokens:    maxTokens,
	})
}

func (o *Orchestrator) persist(ctx context.Context, req *types.ChatRequest, owner string, userMsg types.Message, assistantText string, state types.ChatState, log *slog.Logger) {
	if req.SessionID == "" {
		return
	}

	// Client-supplied ids and timestamps are used verbatim so a resubmitted
	// turn dedupes against the first attempt instead of appending twice.
	assistantID := req.ClientAssistantMessageID
	if assistantID == "" {
		assistantID = "assistant-" + uuid.NewString()
	}
	assistantTS := time.Now().UTC()
	if req.ClientAssistantTimestamp != nil {
		assistantTS = *req.ClientAssistantTimestamp
	}
	assistant := types.Message{
		ID:        assistantID,
		Role:      types.RoleAssistant,
		Content:   assistantText,
		Timestamp: assistantTS,
	}

	// The response is already on the wire; persistence gets its own deadline
	// so a canceled request context cannot abort it.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.PersistTimeout)
	defer cancel()

	err := o.store.AppendMessages(pctx, store.AppendParams{
		ThreadID:   req.SessionID,
		OwnerEmail: owner,
		Title:      titleFrom(req.Messages),
		Kind:       "chat",
		State:      &state,
		Messages:   []types.Message{userMsg, assistant},
	})
	if err != nil {
		log.Error("failed to persist turn", "error", err)
	}
}

func (o *Orchestrator) sendError(sink Sink, sessionID string, err error, log *slog.Logger) {
	msg := "the assistant is unavailable right now"
	if ce, ok := core.AsError(err); ok {
		msg = ce.Message
	}
	if serr := sink.SendError(types.ErrorFrame{Error: msg, SessionID: sessionID}); serr != nil {
		log.Debug("failed to send error frame", "error", serr)
		return
	}
	_ = sink.SendDone()
}

// foldDocuments prepends attached document text to the message content so
// text-only models see it.
func foldDocuments(msg types.Message) types.Message {
	if len(msg.Documents) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString("The user attached the following documents:\n")
	for _, d := range msg.Documents {
		fmt.Fprintf(&b, "• %s (%s)\n", d.Name, d.MimeType)
	}
	for _, d := range msg.Documents {
		fmt.Fprintf(&b, "\n[Document: %s]\n%s\n", d.Name, d.Text)
	}
	b.WriteString("\n")
	b.WriteString(msg.Content)

	out := msg
	out.Content = b.String()
	return out
}

// titleFrom derives a session title from the first user message.
func titleFrom(messages []types.Message) string {
	for _, m := range messages {
		if m.Role != types.RoleUser {
			continue
		}
		title := strings.TrimSpace(m.Content)
		if runes := []rune(title); len(runes) > 100 {
			title = string(runes[:100])
		}
		if title != "" {
			return title
		}
	}
	return "New conversation"
}
