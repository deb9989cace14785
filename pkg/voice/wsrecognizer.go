package voice

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSRecognizer is a Recognizer backed by a websocket transcription service.
// Captured audio is pushed with PushAudio; transcript messages come back as
// recognition results.
type WSRecognizer struct {
	url    string
	apiKey string
	dialer *websocket.Dialer
	logger *slog.Logger

	results chan RecognitionResult
	errs    chan *RecognitionError

	mu      sync.Mutex
	conn    *websocket.Conn
	stopped bool
}

// NewWSRecognizer creates a recognizer for the given websocket URL.
func NewWSRecognizer(url, apiKey string, logger *slog.Logger) *WSRecognizer {
	return &WSRecognizer{
		url:    url,
		apiKey: apiKey,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger: logger,
		// Buffered so a slow consumer cannot wedge the read loop.
		results: make(chan RecognitionResult, 16),
		errs:    make(chan *RecognitionError, 4),
	}
}

// Start dials the service and begins reading transcripts.
func (r *WSRecognizer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil {
		return nil
	}

	header := http.Header{}
	if r.apiKey != "" {
		header.Set("Authorization", "Bearer "+r.apiKey)
	}
	conn, resp, err := r.dialer.DialContext(ctx, r.url, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return &RecognitionError{Code: "not-allowed", Message: "transcription service rejected credentials"}
		}
		return &RecognitionError{Code: "network", Message: err.Error()}
	}
	r.conn = conn
	r.stopped = false
	go r.readLoop(conn)
	return nil
}

// Stop closes the connection. Results already buffered remain readable.
func (r *WSRecognizer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return
	}
	r.stopped = true
	_ = r.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = r.conn.Close()
	r.conn = nil
}

// PushAudio forwards a chunk of captured audio to the service.
func (r *WSRecognizer) PushAudio(data []byte) error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return &RecognitionError{Code: "closed", Message: "recognizer is not running"}
	}
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

func (r *WSRecognizer) Results() <-chan RecognitionResult { return r.results }
func (r *WSRecognizer) Errors() <-chan *RecognitionError  { return r.errs }

type wsTranscriptMessage struct {
	Type       string  `json:"type"`
	Text       string  `json:"text"`
	IsFinal    bool    `json:"is_final"`
	Confidence float64 `json:"confidence"`
	Code       string  `json:"code"`
	Message    string  `json:"message"`
}

func (r *WSRecognizer) readLoop(conn *websocket.Conn) {
	for {
		var msg wsTranscriptMessage
		if err := conn.ReadJSON(&msg); err != nil {
			r.mu.Lock()
			stopped := r.stopped || r.conn != conn
			if r.conn == conn {
				r.conn = nil
			}
			r.mu.Unlock()
			if stopped || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			r.emitErr(&RecognitionError{Code: "network", Message: err.Error()})
			return
		}

		switch msg.Type {
		case "transcript":
			r.emit(RecognitionResult{Text: msg.Text, IsFinal: msg.IsFinal, Confidence: msg.Confidence})
		case "error":
			code := msg.Code
			if code == "" {
				code = "network"
			}
			r.emitErr(&RecognitionError{Code: code, Message: msg.Message})
		default:
			r.logger.Debug("ignoring message", "type", msg.Type)
		}
	}
}

func (r *WSRecognizer) emit(res RecognitionResult) {
	select {
	case r.results <- res:
	default:
		r.logger.Debug("dropping transcript, consumer is behind")
	}
}

func (r *WSRecognizer) emitErr(err *RecognitionError) {
	select {
	case r.errs <- err:
	default:
	}
}
