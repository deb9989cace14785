package voice

import "context"

// RecognitionResult is one recognizer emission. Interim results have IsFinal
// false and a confidence estimate.
type RecognitionResult struct {
	Text       string
	IsFinal    bool
	Confidence float64
}

// RecognitionError reports a recognizer failure. Terminal errors (such as a
// denied microphone permission) end the session; others are retried.
type RecognitionError struct {
	Code    string
	Message string
}

func (e *RecognitionError) Error() string { return e.Code + ": " + e.Message }

// Terminal reports whether recognition can never succeed in this session.
func (e *RecognitionError) Terminal() bool { return e.Code == "not-allowed" }

// Recognizer captures user speech. Start and Stop may be called repeatedly;
// Results and Errors stay valid across restarts.
type Recognizer interface {
	Start(ctx context.Context) error
	Stop()
	Results() <-chan RecognitionResult
	Errors() <-chan *RecognitionError
}

// Speaker voices an assistant reply, blocking until playback finishes or ctx
// is canceled.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// ChatBackend produces the assistant reply for a user utterance.
type ChatBackend interface {
	Reply(ctx context.Context, utterance string) (string, error)
}
