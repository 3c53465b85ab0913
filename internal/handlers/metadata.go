package handlers

import (
	"net/http"

	"uniconverter/internal/failure"

	"github.com/gorilla/mux"
)

// GetMetadata returns the metadata tags embedded in an artifact.
func (h *Handlers) GetMetadata(w http.ResponseWriter, r *http.Request) {
	if h.meta == nil || !h.meta.Available() {
		writeError(w, failure.New(failure.KindBackendUnavailable, "metadata backend is not available"))
		return
	}

	a, err := h.store.Open(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	tags, err := h.meta.Read(r.Context(), a.Path)
	if err != nil {
		writeError(w, failure.Ensure(err, failure.KindBackendExecutionFailed, "read metadata of %s", a.ID))
		return
	}
	writeJSONStatus(w, http.StatusOK, tags)
}
