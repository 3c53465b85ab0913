package handlers

import (
	"encoding/json"
	"net/http"

	"uniconverter/internal/artifacts"
)

// MergeRequest is the body of POST /api/merge. With Base set the other ids
// are embedded into it as is; otherwise the base is chosen automatically.
type MergeRequest struct {
	IDs  []string `json:"ids"`
	Base string   `json:"base,omitempty"`
}

// Merge builds a polyglot file and returns it as an attachment, or as JSON
// with ?download=false.
func (h *Handlers) Merge(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body: %v", err)
		return
	}

	inputs := make([]artifacts.Artifact, 0, len(req.IDs))
	for _, id := range req.IDs {
		a, err := h.store.Open(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		inputs = append(inputs, a)
	}

	var (
		out artifacts.Artifact
		err error
	)
	if req.Base != "" {
		base, openErr := h.store.Open(r.Context(), req.Base)
		if openErr != nil {
			writeError(w, openErr)
			return
		}
		out, err = h.merger.Embed(r.Context(), base, inputs)
	} else {
		out, err = h.merger.Merge(r.Context(), inputs)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	if wantsJSON(r) {
		writeJSONStatus(w, http.StatusOK, out)
		return
	}
	h.serveArtifact(w, r, out)
}
