package handlers

import (
	"net/http"

	"uniconverter/internal/failure"
	"uniconverter/internal/formats"

	"github.com/gorilla/mux"
)

// FormatResponse describes one extension and where it can be converted.
type FormatResponse struct {
	Ext       string   `json:"ext"`
	Category  string   `json:"category"`
	MimeType  string   `json:"mimeType"`
	Decodable bool     `json:"decodable"`
	Encodable bool     `json:"encodable"`
	Targets   []string `json:"targets"`
}

// GetFormat classifies an extension.
func (h *Handlers) GetFormat(w http.ResponseWriter, r *http.Request) {
	ext := formats.Normalize(mux.Vars(r)["ext"])
	d, ok := h.catalog.Lookup(ext)
	if !ok {
		writeError(w, failure.New(failure.KindUnsupportedConversion, "unknown format %q", ext))
		return
	}
	writeJSONStatus(w, http.StatusOK, h.describe(d))
}

// ListFormats lists every known extension grouped by category.
func (h *Handlers) ListFormats(w http.ResponseWriter, _ *http.Request) {
	categories := []formats.Category{
		formats.CategoryImage,
		formats.CategoryAudio,
		formats.CategoryVideo,
		formats.CategoryDocument,
		formats.CategoryArchive,
	}
	out := make(map[string][]string, len(categories))
	for _, c := range categories {
		out[string(c)] = h.catalog.Extensions(c)
	}
	writeJSONStatus(w, http.StatusOK, out)
}

func (h *Handlers) describe(d formats.Descriptor) FormatResponse {
	resp := FormatResponse{
		Ext:       d.Ext,
		Category:  string(d.Category),
		MimeType:  d.MimeType,
		Decodable: d.Decodable,
		Encodable: d.Encodable,
		Targets:   []string{},
	}
	for _, p := range h.catalog.ConvertiblePairs() {
		if p.Src == d.Ext {
			resp.Targets = append(resp.Targets, p.Dst)
		}
	}
	return resp
}
