package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// GetArtifact downloads an artifact by id.
func (h *Handlers) GetArtifact(w http.ResponseWriter, r *http.Request) {
	a, err := h.store.Open(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	if wantsJSON(r) {
		writeJSONStatus(w, http.StatusOK, a)
		return
	}
	h.serveArtifact(w, r, a)
}

// DeleteArtifact removes an artifact before its TTL expires.
func (h *Handlers) DeleteArtifact(w http.ResponseWriter, r *http.Request) {
	a, err := h.store.Open(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.store.Delete(r.Context(), a); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
