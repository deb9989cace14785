package types

import "time"

// ChatRequest is the body of POST /api/chat. The user message carries its
// client-minted id and timestamp inline; the assistant message the server is
// about to produce does not exist yet, so its id and timestamp travel in
// dedicated fields. Reusing them on resubmission keeps the append idempotent.
type ChatRequest struct {
	Messages                 []Message  `json:"messages"`
	SessionID                string     `json:"sessionId"`
	UserEmail                string     `json:"userEmail,omitempty"`
	ChatState                *ChatState `json:"chatState,omitempty"`
	ClientAssistantMessageID string     `json:"clientAssistantMessageId,omitempty"`
	ClientAssistantTimestamp *time.Time `json:"clientAssistantTimestamp,omitempty"`
}

// LastUserMessage returns the trailing message if it has the user role.
func (r *ChatRequest) LastUserMessage() (Message, bool) {
	if len(r.Messages) == 0 {
		return Message{}, false
	}
	last := r.Messages[len(r.Messages)-1]
	if last.Role != RoleUser {
		return Message{}, false
	}
	return last, true
}

// CompletionRequest is a provider-neutral generation request.
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	Messages     []Message
	Temperature  float64
	MaxTokens    int
}

// Completion is a non-streaming generation result.
type Completion struct {
	Text  string
	Model string
	Usage *Usage
}

// EventType classifies stream events.
type EventType string

const (
	EventDelta EventType = "delta"
	EventDone  EventType = "done"
)

// StreamEvent is one unit of streamed provider output.
type StreamEvent struct {
	Type  EventType
	Delta string
	Usage *Usage
}

// Usage reports token consumption when the provider supplies it.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
