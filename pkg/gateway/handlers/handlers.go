// Package handlers implements the gateway HTTP endpoints.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/medabroad/consult/pkg/core"
	"github.com/medabroad/consult/pkg/core/speech/stt"
	"github.com/medabroad/consult/pkg/core/speech/tts"
	"github.com/medabroad/consult/pkg/gateway/apierror"
	"github.com/medabroad/consult/pkg/gateway/config"
	"github.com/medabroad/consult/pkg/gateway/mw"
	"github.com/medabroad/consult/pkg/gateway/orchestrator"
	"github.com/medabroad/consult/pkg/store"
)

// Handlers holds the endpoint dependencies.
type Handlers struct {
	orch   *orchestrator.Orchestrator
	store  store.Store
	tts    tts.Provider
	stt    stt.Provider
	cfg    config.Config
	logger *slog.Logger
}

// New creates the handler set.
func New(orch *orchestrator.Orchestrator, st store.Store, ttsProvider tts.Provider, sttProvider stt.Provider, cfg config.Config, logger *slog.Logger) *Handlers {
	return &Handlers{
		orch:   orch,
		store:  st,
		tts:    ttsProvider,
		stt:    sttProvider,
		cfg:    cfg,
		logger: logger,
	}
}

// Register wires the endpoints onto the mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.Chat)
	mux.HandleFunc("GET /api/conversations", h.ListConversations)
	mux.HandleFunc("GET /api/chat-history", h.ChatHistory)
	mux.HandleFunc("POST /api/conversations/hide", h.HideConversation)
	mux.HandleFunc("POST /api/summarize", h.Summarize)
	mux.HandleFunc("POST /api/transcribe", h.Transcribe)
	mux.HandleFunc("POST /api/speech", h.Speech)
	mux.HandleFunc("GET /healthz", h.Health)
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	ce, status := apierror.FromError(err, reqID)
	mw.WriteJSONError(w, status, ce)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, maxBytes int64, v any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return core.NewInvalidRequestError("invalid JSON body: " + err.Error())
	}
	return nil
}

// validEmail applies the same lightweight check the history endpoints use:
// presence of "@" and a sane length.
func validEmail(email string) bool {
	return strings.Contains(email, "@") && len(email) <= 320
}
