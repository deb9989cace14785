package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/medabroad/consult/pkg/core"
	"github.com/medabroad/consult/pkg/core/types"
)

func writeFrame(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	fmt.Fprintf(w, "data: %s\n\n", b)
	w.(http.Flusher).Flush()
}

func TestConversationReply(t *testing.T) {
	var mu sync.Mutex
	var requests []types.ChatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req types.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		mu.Lock()
		requests = append(requests, req)
		mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		writeFrame(t, w, types.StreamFrame{Content: "Hello", SessionID: req.SessionID})
		writeFrame(t, w, types.StreamFrame{Content: ", patient", SessionID: req.SessionID})
		writeFrame(t, w, types.StreamFrame{
			SessionID:   req.SessionID,
			IsComplete:  true,
			FullMessage: "Hello, patient",
			ChatState:   &types.ChatState{HasAskedForContact: true},
		})
		fmt.Fprintf(w, "data: %s\n\n", types.DoneSentinel)
	}))
	defer srv.Close()

	conv := NewConversation(NewChatClient(srv.URL), "a@b.c")
	reply, err := conv.Reply(context.Background(), "hi")
	if err != nil {
		t.Fatal(err)
	}
	if reply != "Hello, patient" {
		t.Errorf("reply = %q", reply)
	}

	// The merged state must ride along on the next turn.
	if _, err := conv.Reply(context.Background(), "tell me more"); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(requests) != 2 {
		t.Fatalf("requests = %d, want 2", len(requests))
	}
	if requests[0].SessionID != requests[1].SessionID {
		t.Error("session id changed between turns")
	}
	if requests[1].ChatState == nil || !requests[1].ChatState.HasAskedForContact {
		t.Errorf("second request state = %+v", requests[1].ChatState)
	}
	if got := requests[1].Messages[0].Content; got != "tell me more" {
		t.Errorf("second utterance = %q", got)
	}
}

func TestConversationReplyAccumulatesDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A terminal frame without fullMessage: the client falls back to the
		// deltas it accumulated.
		writeFrame(t, w, types.StreamFrame{Content: "partial "})
		writeFrame(t, w, types.StreamFrame{Content: "answer"})
		writeFrame(t, w, types.StreamFrame{IsComplete: true})
		fmt.Fprintf(w, "data: %s\n\n", types.DoneSentinel)
	}))
	defer srv.Close()

	conv := NewConversation(NewChatClient(srv.URL), "a@b.c")
	reply, err := conv.Reply(context.Background(), "hi")
	if err != nil {
		t.Fatal(err)
	}
	if reply != "partial answer" {
		t.Errorf("reply = %q", reply)
	}
}

func TestConversationReplyErrorFrame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFrame(t, w, types.StreamFrame{Content: "starting"})
		writeFrame(t, w, types.ErrorFrame{Error: "model unavailable"})
		fmt.Fprintf(w, "data: %s\n\n", types.DoneSentinel)
	}))
	defer srv.Close()

	conv := NewConversation(NewChatClient(srv.URL), "a@b.c")
	_, err := conv.Reply(context.Background(), "hi")
	if err == nil || err.Error() != "model unavailable" {
		t.Errorf("err = %v, want model unavailable", err)
	}
}

func TestFrameStreamSkipsNonDataLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, ": ping\n\n")
		fmt.Fprint(w, "event: message\n")
		writeFrame(t, w, types.StreamFrame{Content: "hello"})
		fmt.Fprintf(w, "data: %s\n\n", types.DoneSentinel)
	}))
	defer srv.Close()

	client := NewChatClient(srv.URL)
	stream, err := client.StreamTurn(context.Background(), &types.ChatRequest{})
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	frame, err := stream.Next()
	if err != nil {
		t.Fatal(err)
	}
	if frame.Content != "hello" {
		t.Errorf("content = %q", frame.Content)
	}
	if _, err := stream.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("err after terminator = %v, want EOF", err)
	}
}

func TestStreamTurnErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": core.NewRateLimitError("slow down", 2),
		})
	}))
	defer srv.Close()

	client := NewChatClient(srv.URL)
	_, err := client.StreamTurn(context.Background(), &types.ChatRequest{})
	var cerr *core.Error
	if !errors.As(err, &cerr) || cerr.Type != core.ErrRateLimit {
		t.Fatalf("err = %v, want rate limit error", err)
	}
	if !strings.Contains(cerr.Message, "slow down") {
		t.Errorf("message = %q", cerr.Message)
	}
}
