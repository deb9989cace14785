// Package types defines the provider-neutral conversation types shared by the
// gateway, the stores, and the voice client.
package types

import (
	"strings"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ImageContent is a base64-encoded image attached to a user message.
type ImageContent struct {
	Type     string `json:"type" bson:"type"`
	Data     string `json:"data" bson:"data"`
	MimeType string `json:"mimeType" bson:"mimeType"`
	Name     string `json:"name,omitempty" bson:"name,omitempty"`
}

// DataURL returns the image as a data URL suitable for vision model input.
func (ic ImageContent) DataURL() string {
	if strings.HasPrefix(ic.Data, "data:") {
		return ic.Data
	}
	return "data:" + ic.MimeType + ";base64," + ic.Data
}

// DocumentContent is an extracted text document attached to a user message.
type DocumentContent struct {
	Type     string `json:"type" bson:"type"`
	Name     string `json:"name" bson:"name"`
	MimeType string `json:"mimeType" bson:"mimeType"`
	Text     string `json:"text" bson:"text"`
}

// Message is one conversation turn. The id and timestamp are supplied by the
// client and stored verbatim, so a retried submission carries the same id and
// dedupes on append.
type Message struct {
	ID        string            `json:"id" bson:"id"`
	Role      string            `json:"role" bson:"role"`
	Content   string            `json:"content" bson:"content"`
	Timestamp time.Time         `json:"timestamp" bson:"timestamp"`
	Images    []ImageContent    `json:"images,omitempty" bson:"images,omitempty"`
	Documents []DocumentContent `json:"documents,omitempty" bson:"documents,omitempty"`
}

// HasImages reports whether the message carries image attachments.
func (m Message) HasImages() bool { return len(m.Images) > 0 }

// ChatState carries the conversation flags derived while streaming. Flags are
// monotonic: once set during a conversation they stay set.
type ChatState struct {
	HasAskedForContact  bool   `json:"hasAskedForContact" bson:"hasAskedForContact"`
	HasCollectedContact bool   `json:"hasCollectedContact" bson:"hasCollectedContact"`
	HasAskedForQuiz     bool   `json:"hasAskedForQuiz" bson:"hasAskedForQuiz"`
	HasCompletedQuiz    bool   `json:"hasCompletedQuiz" bson:"hasCompletedQuiz"`
	HasAskedForPhotos   bool   `json:"hasAskedForPhotos" bson:"hasAskedForPhotos"`
	ContactInfo         string `json:"contactInfo,omitempty" bson:"contactInfo,omitempty"`
}

// Merge ORs the flags of other into s, preserving monotonicity.
func (s *ChatState) Merge(other ChatState) {
	s.HasAskedForContact = s.HasAskedForContact || other.HasAskedForContact
	s.HasCollectedContact = s.HasCollectedContact || other.HasCollectedContact
	s.HasAskedForQuiz = s.HasAskedForQuiz || other.HasAskedForQuiz
	s.HasCompletedQuiz = s.HasCompletedQuiz || other.HasCompletedQuiz
	s.HasAskedForPhotos = s.HasAskedForPhotos || other.HasAskedForPhotos
	if s.ContactInfo == "" {
		s.ContactInfo = other.ContactInfo
	}
}

// Summary is a condensed record of earlier conversation turns.
type Summary struct {
	Text         string    `json:"text" bson:"text"`
	MessageCount int       `json:"messageCount" bson:"messageCount"`
	Timestamp    time.Time `json:"timestamp" bson:"timestamp"`
}
