package handlers

import (
	"net/http"

	"github.com/medabroad/consult/pkg/core"
	"github.com/medabroad/consult/pkg/core/speech/stt"
)

const maxAudioBytes = 25 << 20

// Transcribe accepts a multipart audio upload and returns the transcript.
func (h *Handlers) Transcribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes)
	if err := r.ParseMultipartForm(maxAudioBytes); err != nil {
		h.writeError(w, r, core.NewInvalidRequestError("invalid multipart body"))
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		file, header, err = r.FormFile("file")
	}
	if err != nil {
		h.writeError(w, r, core.NewInvalidRequestErrorWithParam("audio file is required", "audio"))
		return
	}
	defer file.Close()

	transcript, err := h.stt.Transcribe(r.Context(), file, stt.TranscribeOptions{
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Language: r.FormValue("language"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"text": transcript.Text})
}
