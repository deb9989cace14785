package voice

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medabroad/consult/pkg/core"
	"github.com/medabroad/consult/pkg/core/types"
)

// ChatClient consumes the gateway's streaming chat endpoint.
type ChatClient struct {
	baseURL string
	client  *http.Client
}

// NewChatClient creates a client for the gateway at baseURL.
func NewChatClient(baseURL string) *ChatClient {
	return &ChatClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

// StreamTurn posts a chat request and returns the frame stream.
func (c *ChatClient) StreamTurn(ctx context.Context, req *types.ChatRequest) (*FrameStream, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post chat: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var envelope struct {
			Error *core.Error `json:"error"`
		}
		if derr := json.NewDecoder(resp.Body).Decode(&envelope); derr == nil && envelope.Error != nil {
			return nil, envelope.Error
		}
		return nil, fmt.Errorf("chat endpoint returned status %d", resp.StatusCode)
	}
	return &FrameStream{body: resp.Body, r: bufio.NewReader(resp.Body)}, nil
}

// FrameStream iterates SSE data frames. Next returns io.EOF after the [DONE]
// terminator.
type FrameStream struct {
	body io.ReadCloser
	r    *bufio.Reader
}

func (fs *FrameStream) Next() (types.StreamFrame, error) {
	for {
		line, err := fs.r.ReadString('\n')
		if err != nil {
			return types.StreamFrame{}, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		if data == types.DoneSentinel {
			return types.StreamFrame{}, io.EOF
		}

		var frame struct {
			types.StreamFrame
			Error string `json:"error"`
		}
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			return types.StreamFrame{}, fmt.Errorf("decode frame: %w", err)
		}
		if frame.Error != "" {
			return types.StreamFrame{}, errors.New(frame.Error)
		}
		return frame.StreamFrame, nil
	}
}

func (fs *FrameStream) Close() error { return fs.body.Close() }

// Conversation is a ChatBackend bound to one gateway session. It tracks the
// session id and the server-derived chat state across turns.
type Conversation struct {
	client *ChatClient
	email  string

	mu        sync.Mutex
	sessionID string
	state     types.ChatState
}

// NewConversation starts a fresh session.
func NewConversation(client *ChatClient, email string) *Conversation {
	return &Conversation{client: client, email: email, sessionID: uuid.NewString()}
}

// SessionID returns the conversation's session id.
func (c *Conversation) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Reply sends the utterance and returns the complete assistant reply. Deltas
// are accumulated locally; the server's fullMessage wins when present.
func (c *Conversation) Reply(ctx context.Context, utterance string) (string, error) {
	c.mu.Lock()
	req := &types.ChatRequest{
		Messages: []types.Message{{
			ID:        uuid.NewString(),
			Role:      types.RoleUser,
			Content:   utterance,
			Timestamp: time.Now().UTC(),
		}},
		SessionID: c.sessionID,
		UserEmail: c.email,
	}
	state := c.state
	req.ChatState = &state
	c.mu.Unlock()

	stream, err := c.client.StreamTurn(ctx, req)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var accumulated strings.Builder
	var full string
	for {
		frame, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if frame.IsComplete {
			full = frame.FullMessage
			if frame.ChatState != nil {
				c.mu.Lock()
				c.state.Merge(*frame.ChatState)
				c.mu.Unlock()
			}
			continue
		}
		accumulated.WriteString(frame.Content)
	}
	if full == "" {
		full = accumulated.String()
	}
	return full, nil
}
