package handlers

import (
	"encoding/json"
	"net/http"

	"uniconverter/internal/convert"
	"uniconverter/internal/document"
)

// ConvertRequest is the body of POST /api/convert.
type ConvertRequest struct {
	ID     string `json:"id"`
	Target string `json:"target"`

	Quality int `json:"quality,omitempty"`
	// Pages selects document pages, e.g. "1,3-5".
	Pages         string `json:"pages,omitempty"`
	AudioCodec    string `json:"audio_codec,omitempty"`
	VideoCodec    string `json:"video_codec,omitempty"`
	AudioBitrate  string `json:"audio_bitrate,omitempty"`
	StripMetadata bool   `json:"strip_metadata,omitempty"`
}

// Convert converts an uploaded artifact and returns the result as an
// attachment, or as JSON with ?download=false.
func (h *Handlers) Convert(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body: %v", err)
		return
	}
	if req.ID == "" || req.Target == "" {
		badRequest(w, "id and target are required")
		return
	}

	pages, err := document.ParsePages(req.Pages)
	if err != nil {
		writeError(w, err)
		return
	}

	src, err := h.store.Open(r.Context(), req.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	out, err := h.dispatcher.Convert(r.Context(), convert.Request{
		Source: src,
		Target: req.Target,
		Params: convert.Params{
			Quality:       req.Quality,
			Pages:         pages,
			AudioCodec:    req.AudioCodec,
			VideoCodec:    req.VideoCodec,
			AudioBitrate:  req.AudioBitrate,
			StripMetadata: req.StripMetadata,
		},
	})
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
