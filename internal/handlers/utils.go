package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"uniconverter/internal/artifacts"
	"uniconverter/internal/failure"
	"uniconverter/internal/filesystem"
	"uniconverter/internal/logging"
	"uniconverter/internal/streaming"
)

// writeJSON encodes v as JSON and writes it to the response writer.
// Encoding errors are logged since the status line is already sent.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONStatus writes v with the given status code.
func writeJSONStatus(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, v)
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// statusFor maps an error to an HTTP status code.
func statusFor(err error) int {
	if errors.Is(err, artifacts.ErrNotFound) {
		return http.StatusNotFound
	}
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge
	}

	switch failure.KindOf(err) {
	case failure.KindInvalidRequest:
		return http.StatusBadRequest
	case failure.KindUnsupportedConversion, failure.KindEmptyDocument, failure.KindMergeBaseNotFound:
		return http.StatusUnprocessableEntity
	case failure.KindBackendUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err with the status its kind maps to.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.Error("request failed: %v", err)
	} else {
		logging.Debug("request rejected (%d): %v", status, err)
	}
	writeJSONStatus(w, status, ErrorResponse{Error: err.Error(), Kind: string(failure.KindOf(err))})
}

// badRequest reports a malformed request.
func badRequest(w http.ResponseWriter, format string, args ...interface{}) {
	writeError(w, failure.New(failure.KindInvalidRequest, format, args...))
}

// serveArtifact streams a as an attachment named after its display name.
func (h *Handlers) serveArtifact(w http.ResponseWriter, r *http.Request, a artifacts.Artifact) {
	f, err := filesystem.OpenWithRetry(r.Context(), a.Path, filesystem.DefaultRetryConfig())
	if err != nil {
		writeError(w, fmt.Errorf("%w: %s", artifacts.ErrNotFound, a.ID))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", h.catalog.MimeType(a.Ext))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Name}))
	w.Header().Set("X-Artifact-ID", a.ID)
	w.Header().Set("X-Artifact-Category", string(a.Category))

	if info.Size() < h.streamAbove || !plainDownload(r) {
		http.ServeContent(w, r, a.Name, info.ModTime(), f)
		return
	}

	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.WriteHeader(http.StatusOK)
	if n, err := streaming.Copy(r.Context(), w, f, streaming.DefaultConfig()); err != nil {
		logging.Warn("download of %s stopped after %d of %d bytes: %v", a.ID, n, info.Size(), err)
	}
}

// plainDownload reports whether r asks for the whole body unconditionally,
// so range and validator handling can be skipped. Convert and merge results
// are answered to a POST.
func plainDownload(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		return false
	}
	for _, header := range []string{"Range", "If-Match", "If-None-Match", "If-Modified-Since", "If-Unmodified-Since"} {
		if r.Header.Get(header) != "" {
			return false
		}
	}
	return true
}

// wantsJSON reports whether the client asked for the artifact description
// instead of its bytes.
func wantsJSON(r *http.Request) bool {
	download, err := strconv.ParseBool(r.URL.Query().Get("download"))
	return err == nil && !download
}
