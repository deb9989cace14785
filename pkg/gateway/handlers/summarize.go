package handlers

import (
	"net/http"

	"github.com/medabroad/consult/pkg/core"
)

type summarizeRequest struct {
	SessionID string `json:"sessionId"`
	Email     string `json:"email"`
}

// Summarize condenses a conversation and stores the summary on the session.
func (h *Handlers) Summarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := decodeJSON(r, 1<<20, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.SessionID == "" {
		h.writeError(w, r, core.NewInvalidRequestErrorWithParam("sessionId is required", "sessionId"))
		return
	}
	if req.Email != "" && !validEmail(req.Email) {
		h.writeError(w, r, core.NewInvalidRequestErrorWithParam("invalid email", "email"))
		return
	}

	summary, err := h.orch.Summarize(r.Context(), req.SessionID, req.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": summary})
}
