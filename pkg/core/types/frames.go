package types

// StreamFrame is one SSE data frame of the chat stream. Delta frames carry a
// content fragment; the final frame has IsComplete set, an empty Content, and
// the accumulated FullMessage.
type StreamFrame struct {
	Content     string     `json:"content"`
	SessionID   string     `json:"sessionId"`
	ChatState   *ChatState `json:"chatState,omitempty"`
	IsComplete  bool       `json:"isComplete,omitempty"`
	FullMessage string     `json:"fullMessage,omitempty"`
}

// ErrorFrame is the SSE frame emitted when streaming fails.
type ErrorFrame struct {
	Error     string `json:"error"`
	SessionID string `json:"sessionId"`
}

// DoneSentinel is the literal payload of the terminator frame.
const DoneSentinel = "[DONE]"
