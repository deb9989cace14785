package handlers

import (
	"net/http"
	"strconv"

	"github.com/medabroad/consult/pkg/core"
	"github.com/medabroad/consult/pkg/store"
)

// ListConversations returns session summaries for an owner, newest first.
func (h *Handlers) ListConversations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	email := q.Get("email")
	if email != "" && !validEmail(email) {
		h.writeError(w, r, core.NewInvalidRequestErrorWithParam("invalid email", "email"))
		return
	}

	opts := store.ListOptions{
		IncludeHidden: q.Get("includeHidden") == "true",
		Limit:         50,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			h.writeError(w, r, core.NewInvalidRequestErrorWithParam("limit must be 1-200", "limit"))
			return
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, r, core.NewInvalidRequestErrorWithParam("offset must be non-negative", "offset"))
			return
		}
		opts.Offset = n
	}

	sessions, err := h.store.ListSessions(r.Context(), store.NormalizeOwner(email), opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []store.SessionSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": sessions})
}

// ChatHistory returns the full message history of one session.
func (h *Handlers) ChatHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID := q.Get("sessionId")
	if sessionID == "" {
		h.writeError(w, r, core.NewInvalidRequestErrorWithParam("sessionId is required", "sessionId"))
		return
	}
	email := q.Get("email")
	if email != "" && !validEmail(email) {
		h.writeError(w, r, core.NewInvalidRequestErrorWithParam("invalid email", "email"))
		return
	}

	sess, err := h.store.GetSession(r.Context(), sessionID, store.NormalizeOwner(email))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": sess.ThreadID,
		"title":     sess.Title,
		"messages":  sess.Messages,
		"state":     sess.State,
	})
}

type hideRequest struct {
	SessionID string `json:"sessionId"`
	Email     string `json:"email"`
}

// HideConversation soft-deletes a session.
func (h *Handlers) HideConversation(w http.ResponseWriter, r *http.Request) {
	var req hideRequest
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

	if err := h.store.HideSession(r.Context(), req.SessionID, store.NormalizeOwner(req.Email)); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hidden": true})
}
