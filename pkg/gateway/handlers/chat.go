package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/medabroad/consult/pkg/core"
	"github.com/medabroad/consult/pkg/core/types"
	"github.com/medabroad/consult/pkg/gateway/sse"
)

// Chat streams an assistant reply over SSE.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if err := decodeJSON(r, h.cfg.MaxBodyBytes, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(req.Messages) == 0 {
		h.writeError(w, r, core.NewInvalidRequestErrorWithParam("messages must not be empty", "messages"))
		return
	}
	last, ok := req.LastUserMessage()
	if !ok {
		h.writeError(w, r, core.NewInvalidRequestErrorWithParam("last message must have the user role", "messages"))
		return
	}
	if strings.TrimSpace(last.Content) == "" {
		h.writeError(w, r, core.NewInvalidRequestErrorWithParam("message content must not be empty", "messages"))
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	writer, err := sse.New(w)
	if err != nil {
		h.writeError(w, r, core.NewAPIError("streaming unsupported"))
		return
	}

	// Errors past this point are delivered as SSE frames by the
	// orchestrator; nothing more to write here.
	_ = h.orch.Stream(r.Context(), &req, sseSink{writer})
}

// sseSink adapts the SSE writer to the orchestrator sink.
type sseSink struct {
	w *sse.Writer
}

func (s sseSink) SendFrame(f types.StreamFrame) error { return s.w.Send(f) }
func (s sseSink) SendError(f types.ErrorFrame) error  { return s.w.Send(f) }
func (s sseSink) SendDone() error                     { return s.w.Done() }
