package handlers

import (
	"net/http"
	"path/filepath"

	"uniconverter/internal/formats"
	"uniconverter/internal/logging"
)

// UploadResponse describes a stored upload.
type UploadResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Upload stores the multipart field "file" as a new artifact and returns
// its id together with the category of its extension.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	file, header, err := r.FormFile("file")
	if err != nil {
		if statusFor(err) == http.StatusRequestEntityTooLarge {
			writeError(w, err)
			return
		}
		badRequest(w, "missing file field: %v", err)
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	ext := formats.ExtOf(name)
	if ext == "" {
		badRequest(w, "file %q has no extension", name)
		return
	}

	a, err := h.store.SaveFrom(r.Context(), file, ext, name)
	if err != nil {
		writeError(w, err)
		return
	}

	logging.Debug("uploaded %s as %s (%s)", name, a.ID, a.Category)
	writeJSONStatus(w, http.StatusCreated, UploadResponse{
		ID:   a.ID,
		Name: a.Name,
		Type: string(h.catalog.CategoryOf(ext)),
	})
}
