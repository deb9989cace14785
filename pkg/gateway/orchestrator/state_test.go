package orchestrator

import (
	"testing"

	"github.com/medabroad/consult/pkg/core/types"
)

func TestDeriveState(t *testing.T) {
	tests := []struct {
		name          string
		prev          types.ChatState
		assistantText string
		userText      string
		want          types.ChatState
	}{
		{
			name: "no signals",
			want: types.ChatState{},
		},
		{
			name:          "contact prompt detected",
			assistantText: "Thanks! **Before we continue**, could you share your email?",
			want:          types.ChatState{HasAskedForContact: true},
		},
		{
			name:          "quiz prompt detected",
			assistantText: "You can take our surgery-quiz to narrow things down.",
			want:          types.ChatState{HasAskedForQuiz: true},
		},
		{
			name:     "contact collected from user",
			userText: "sure, it's jane.doe@example.com thanks",
			want: types.ChatState{
				HasCollectedContact: true,
				ContactInfo:         "jane.doe@example.com",
			},
		},
		{
			name:          "sentinel split across nothing still matches whole text",
			assistantText: "intro **Before we continue** and also surgery-quiz",
			want:          types.ChatState{HasAskedForContact: true, HasAskedForQuiz: true},
		},
		{
			name: "flags are monotonic",
			prev: types.ChatState{HasAskedForContact: true, ContactInfo: "a@b.c"},
			want: types.ChatState{HasAskedForContact: true, ContactInfo: "a@b.c"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveState(tt.prev, tt.assistantText, tt.userText)
			if got != tt.want {
				t.Errorf("DeriveState() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDeriveStateAccumulatedText(t *testing.T) {
	// Derivation runs on the fully accumulated reply, so a sentinel that
	// arrived split across deltas is still caught.
	deltas := []string{"Great. **Before", " we continue** please", " share contact info"}
	var acc string
	for _, d := range deltas {
		acc += d
	}
	got := DeriveState(types.ChatState{}, acc, "")
	if !got.HasAskedForContact {
		t.Error("sentinel split across deltas not detected in accumulated text")
	}
}

func TestExtractContact(t *testing.T) {
	if got := extractContact("reach me at (john@clinic.lt)."); got != "john@clinic.lt" {
		t.Errorf("extractContact() = %q", got)
	}
}
