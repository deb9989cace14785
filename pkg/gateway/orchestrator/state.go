package orchestrator

import (
	"strings"

	"github.com/medabroad/consult/pkg/core/types"
)

// Sentinels the assistant prompt embeds in its replies. Matching on them is
// how conversation flags are derived from free-form model output.
const (
	contactSentinel = "**Before we continue**"
	quizSentinel    = "surgery-quiz"
)

// DeriveState returns prev advanced by whatever the accumulated assistant
// text and the latest user message reveal. Flags only ever turn on.
func DeriveState(prev types.ChatState, assistantText, userText string) types.ChatState {
	next := prev
	if strings.Contains(assistantText, contactSentinel) {
		next.HasAskedForContact = true
	}
	if strings.Contains(assistantText, quizSentinel) {
		next.HasAskedForQuiz = true
	}
	if strings.Contains(userText, "@") {
		next.HasCollectedContact = true
		if next.ContactInfo == "" {
			next.ContactInfo = extractContact(userText)
		}
	}
	return next
}

// extractContact pulls the whitespace-delimited token containing "@".
func extractContact(text string) string {
	for _, field := range strings.Fields(text) {
		if strings.Contains(field, "@") {
			return strings.Trim(field, ".,;:!?()<>")
		}
	}
	return strings.TrimSpace(text)
}
