// Package voice runs hands-free conversation sessions: listen, think, speak,
// with barge-in interruption.
package voice

// State is the session's conversational phase.
type State string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
	StateThinking  State = "thinking"
	StateSpeaking  State = "speaking"
)
