package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/medabroad/consult/pkg/core/types"
)

// Memory is an in-process Store used for development and tests.
type Memory struct {
	mu       sync.Mutex
	sessions map[memKey]*Session
	now      func() time.Time
}

type memKey struct {
	threadID string
	owner    string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[memKey]*Session),
		now:      time.Now,
	}
}

func (m *Memory) AppendMessages(_ context.Context, p AppendParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memKey{threadID: p.ThreadID, owner: p.OwnerEmail}
	sess, ok := m.sessions[key]
	if !ok {
		sess = &Session{
			ThreadID:   p.ThreadID,
			OwnerEmail: p.OwnerEmail,
			CreatedAt:  m.now(),
		}
		m.sessions[key] = sess
	}
	// Last write wins, same as the SQL and Mongo upserts.
	sess.Title = p.Title
	sess.Kind = p.Kind

	seen := make(map[string]bool, len(sess.Messages))
	for _, msg := range sess.Messages {
		seen[msg.ID] = true
	}
	for _, msg := range p.Messages {
		if seen[msg.ID] {
			continue
		}
		seen[msg.ID] = true
		sess.Messages = append(sess.Messages, msg)
	}
	if p.State != nil {
		st := *p.State
		sess.State = &st
	}
	sess.UpdatedAt = m.now()
	return nil
}

func (m *Memory) GetSession(_ context.Context, threadID, ownerEmail string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[memKey{threadID: threadID, owner: ownerEmail}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sess
	cp.Messages = append([]types.Message(nil), sess.Messages...)
	cp.Summaries = append([]types.Summary(nil), sess.Summaries...)
	return &cp, nil
}

func (m *Memory) ListSessions(_ context.Context, ownerEmail string, opts ListOptions) ([]SessionSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []SessionSummary
	for key, sess := range m.sessions {
		if key.owner != ownerEmail {
			continue
		}
		if sess.Hidden && !opts.IncludeHidden {
			continue
		}
		out = append(out, SessionSummary{
			ThreadID:     sess.ThreadID,
			Title:        sess.Title,
			Kind:         sess.Kind,
			Hidden:       sess.Hidden,
			MessageCount: len(sess.Messages),
			CreatedAt:    sess.CreatedAt,
			UpdatedAt:    sess.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *Memory) HideSession(_ context.Context, threadID, ownerEmail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[memKey{threadID: threadID, owner: ownerEmail}]
	if !ok {
		return ErrNotFound
	}
	sess.Hidden = true
	sess.UpdatedAt = m.now()
	return nil
}

func (m *Memory) AppendSummary(_ context.Context, threadID, ownerEmail string, s types.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[memKey{threadID: threadID, owner: ownerEmail}]
	if !ok {
		return ErrNotFound
	}
	sess.Summaries = append(sess.Summaries, s)
	sess.UpdatedAt = m.now()
	return nil
}

func (m *Memory) Ping(context.Context) error  { return nil }
func (m *Memory) Close(context.Context) error { return nil }
