package handlers

import (
	"context"
	"net/http"
	"time"
)

// Health reports liveness and store connectivity.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		h.logger.Warn("store ping failed", "error", err)
	}
	writeJSON(w, code, map[string]string{"status": status})
}
