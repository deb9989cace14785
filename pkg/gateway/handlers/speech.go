package handlers

import (
	"net/http"
	"strconv"

	"github.com/medabroad/consult/pkg/core"
	"github.com/medabroad/consult/pkg/core/speech/tts"
)

type speechRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// Speech synthesizes text and returns the audio bytes.
func (h *Handlers) Speech(w http.ResponseWriter, r *http.Request) {
	var req speechRequest
	if err := decodeJSON(r, 1<<20, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Text == "" {
		h.writeError(w, r, core.NewInvalidRequestErrorWithParam("text is required", "text"))
		return
	}
	voice := req.Voice
	if voice == "" {
		voice = h.cfg.ElevenLabsVoice
	}

	synth, err := h.tts.Synthesize(r.Context(), req.Text, tts.SynthesizeOptions{Voice: voice})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", synth.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(synth.Audio)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(synth.Audio)
}
