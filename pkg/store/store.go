// Package store persists conversation sessions. Appends are idempotent:
// messages whose ids are already present in a session are dropped, so a
// retried request cannot duplicate history.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/medabroad/consult/pkg/core/types"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// GuestOwner is the owner key used when no email is supplied.
const GuestOwner = "guest"

// Store is the session persistence interface.
type Store interface {
	// AppendMessages upserts the session and appends the given messages,
	// dropping any whose id is already stored. The operation is atomic:
	// concurrent appends never interleave partial writes.
	AppendMessages(ctx context.Context, p AppendParams) error

	// GetSession returns one session with its full message history.
	GetSession(ctx context.Context, threadID, ownerEmail string) (*Session, error)

	// ListSessions returns session summaries for an owner, newest first.
	ListSessions(ctx context.Context, ownerEmail string, opts ListOptions) ([]SessionSummary, error)

	// HideSession soft-deletes a session.
	HideSession(ctx context.Context, threadID, ownerEmail string) error

	// AppendSummary pushes a conversation summary onto the session.
	AppendSummary(ctx context.Context, threadID, ownerEmail string, s types.Summary) error

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close(ctx context.Context) error
}

// AppendParams describes one append operation.
type AppendParams struct {
	ThreadID   string
	OwnerEmail string
	Title      string // last write wins
	Kind       string // last write wins
	State      *types.ChatState
	Messages   []types.Message
}

// Session is a stored conversation.
type Session struct {
	ThreadID   string           `json:"threadId" bson:"threadId"`
	OwnerEmail string           `json:"ownerEmail" bson:"ownerEmail"`
	Title      string           `json:"title" bson:"title"`
	Kind       string           `json:"kind" bson:"kind"`
	Hidden     bool             `json:"hidden" bson:"hidden"`
	Messages   []types.Message  `json:"messages" bson:"messages"`
	Summaries  []types.Summary  `json:"summaries,omitempty" bson:"summaries,omitempty"`
	State      *types.ChatState `json:"state,omitempty" bson:"state,omitempty"`
	CreatedAt  time.Time        `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt" bson:"updatedAt"`
}

// SessionSummary is a session without its message bodies.
type SessionSummary struct {
	ThreadID     string    `json:"threadId" bson:"threadId"`
	Title        string    `json:"title" bson:"title"`
	Kind         string    `json:"kind" bson:"kind"`
	Hidden       bool      `json:"hidden" bson:"hidden"`
	MessageCount int       `json:"messageCount" bson:"messageCount"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
}

// ListOptions controls session listing.
type ListOptions struct {
	IncludeHidden bool
	Limit         int
	Offset        int
}

// NormalizeOwner lower-cases an owner email, defaulting to GuestOwner.
func NormalizeOwner(email string) string {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return GuestOwner
	}
	return email
}
