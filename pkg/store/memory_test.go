package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/medabroad/consult/pkg/core/types"
)

func msg(id, role, content string) types.Message {
	return types.Message{ID: id, Role: role, Content: content, Timestamp: time.Now()}
}

func TestMemoryAppendIsIdempotent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first := AppendParams{
		ThreadID:   "t1",
		OwnerEmail: "a@b.c",
		Title:      "first question",
		Kind:       "chat",
		Messages: []types.Message{
			msg("u1", types.RoleUser, "hello"),
			msg("a1", types.RoleAssistant, "hi"),
		},
	}
	if err := m.AppendMessages(ctx, first); err != nil {
		t.Fatal(err)
	}

	// Retried write: same user id, new assistant id.
	second := first
	second.Messages = []types.Message{
		msg("u1", types.RoleUser, "hello"),
		msg("a2", types.RoleAssistant, "hi again"),
	}
	if err := m.AppendMessages(ctx, second); err != nil {
		t.Fatal(err)
	}

	sess, err := m.GetSession(ctx, "t1", "a@b.c")
	if err != nil {
		t.Fatal(err)
	}
	wantIDs := []string{"u1", "a1", "a2"}
	if len(sess.Messages) != len(wantIDs) {
		t.Fatalf("got %d messages, want %d", len(sess.Messages), len(wantIDs))
	}
	for i, id := range wantIDs {
		if sess.Messages[i].ID != id {
			t.Errorf("messages[%d].ID = %q, want %q", i, sess.Messages[i].ID, id)
		}
	}
}

func TestMemoryAppendTitleAndKindLastWriteWins(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.AppendMessages(ctx, AppendParams{
		ThreadID: "t1", OwnerEmail: "a@b.c", Title: "first question", Kind: "text",
		Messages: []types.Message{msg("u1", types.RoleUser, "hello")},
	}); err != nil {
		t.Fatal(err)
	}
	if err := m.AppendMessages(ctx, AppendParams{
		ThreadID: "t1", OwnerEmail: "a@b.c", Title: "renamed by the client", Kind: "voice",
		Messages: []types.Message{msg("u2", types.RoleUser, "again")},
	}); err != nil {
		t.Fatal(err)
	}

	sess, err := m.GetSession(ctx, "t1", "a@b.c")
	if err != nil {
		t.Fatal(err)
	}
	if sess.Title != "renamed by the client" {
		t.Errorf("title = %q, last write must win", sess.Title)
	}
	if sess.Kind != "voice" {
		t.Errorf("kind = %q, last write must win", sess.Kind)
	}
}

func TestMemoryAppendSetsState(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	p := AppendParams{ThreadID: "t1", OwnerEmail: "a@b.c",
		Messages: []types.Message{msg("u1", types.RoleUser, "x")}}
	if err := m.AppendMessages(ctx, p); err != nil {
		t.Fatal(err)
	}

	p.State = &types.ChatState{HasAskedForContact: true}
	p.Messages = []types.Message{msg("u2", types.RoleUser, "y")}
	if err := m.AppendMessages(ctx, p); err != nil {
		t.Fatal(err)
	}

	sess, _ := m.GetSession(ctx, "t1", "a@b.c")
	if sess.State == nil || !sess.State.HasAskedForContact {
		t.Errorf("state = %+v", sess.State)
	}
}

func TestMemoryListSessions(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	m.now = func() time.Time { n++; return base.Add(time.Duration(n) * time.Minute) }

	for _, id := range []string{"t1", "t2", "t3"} {
		if err := m.AppendMessages(ctx, AppendParams{
			ThreadID: id, OwnerEmail: "a@b.c", Title: id,
			Messages: []types.Message{msg(id+"-m", types.RoleUser, "x")},
		}); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.HideSession(ctx, "t2", "a@b.c"); err != nil {
		t.Fatal(err)
	}

	visible, err := m.ListSessions(ctx, "a@b.c", ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(visible) != 2 {
		t.Fatalf("visible = %d, want 2", len(visible))
	}
	if visible[0].ThreadID != "t3" {
		t.Errorf("newest first: got %q", visible[0].ThreadID)
	}

	all, _ := m.ListSessions(ctx, "a@b.c", ListOptions{IncludeHidden: true})
	if len(all) != 3 {
		t.Errorf("all = %d, want 3", len(all))
	}
	// t2 was touched by HideSession, so it sorts newest.
	if all[0].ThreadID != "t2" || !all[0].Hidden {
		t.Errorf("all[0] = %+v", all[0])
	}

	paged, _ := m.ListSessions(ctx, "a@b.c", ListOptions{IncludeHidden: true, Limit: 1, Offset: 1})
	if len(paged) != 1 || paged[0].ThreadID != "t3" {
		t.Errorf("paged = %+v", paged)
	}

	other, _ := m.ListSessions(ctx, "someone@else.com", ListOptions{})
	if len(other) != 0 {
		t.Errorf("foreign owner sees %d sessions", len(other))
	}
}

func TestMemoryNotFound(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.GetSession(ctx, "nope", "a@b.c"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSession err = %v", err)
	}
	if err := m.HideSession(ctx, "nope", "a@b.c"); !errors.Is(err, ErrNotFound) {
		t.Errorf("HideSession err = %v", err)
	}
	if err := m.AppendSummary(ctx, "nope", "a@b.c", types.Summary{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("AppendSummary err = %v", err)
	}
}

func TestMemoryAppendSummary(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if err := m.AppendMessages(ctx, AppendParams{ThreadID: "t1", OwnerEmail: "a@b.c",
		Messages: []types.Message{msg("u1", types.RoleUser, "x")}}); err != nil {
		t.Fatal(err)
	}
	s := types.Summary{Text: "short", MessageCount: 1, Timestamp: time.Now()}
	if err := m.AppendSummary(ctx, "t1", "a@b.c", s); err != nil {
		t.Fatal(err)
	}
	sess, _ := m.GetSession(ctx, "t1", "a@b.c")
	if len(sess.Summaries) != 1 || sess.Summaries[0].Text != "short" {
		t.Errorf("summaries = %+v", sess.Summaries)
	}
}

func TestNormalizeOwner(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", GuestOwner},
		{"  ", GuestOwner},
		{"User@Example.COM", "user@example.com"},
		{" a@b.c ", "a@b.c"},
	}
	for _, tt := range tests {
		if got := NormalizeOwner(tt.in); got != tt.want {
			t.Errorf("NormalizeOwner(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
