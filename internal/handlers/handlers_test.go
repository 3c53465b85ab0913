package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"uniconverter/internal/archive"
	"uniconverter/internal/artifacts"
	"uniconverter/internal/containers"
	"uniconverter/internal/convert"
	"uniconverter/internal/database"
	"uniconverter/internal/document"
	"uniconverter/internal/failure"
	"uniconverter/internal/formats"
	"uniconverter/internal/polyglot"
	"uniconverter/internal/raster"

	"github.com/gorilla/mux"
)

type testServer struct {
	router   *mux.Router
	store    *artifacts.Store
	handlers *Handlers
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	catalog := formats.Default()
	dir := t.TempDir()
	db, err := database.New(context.Background(), filepath.Join(dir, "ledger.db"))
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store, err := artifacts.NewStore(filepath.Join(dir, "artifacts"), catalog, db)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	registry := convert.NewRegistry()
	registry.Register(raster.New(catalog, raster.Options{}))
	registry.Register(document.New(document.DefaultDPI))
	registry.Register(archive.New())

	dispatcher := convert.NewDispatcher(catalog, registry, store, convert.Options{Workers: 2})
	h := New(Config{
		Dispatcher: dispatcher,
		Merger:     polyglot.NewMerger(dispatcher, store, containers.New(nil)),
		Stats:      db,
	})

	r := mux.NewRouter()
	h.Register(r)
	return &testServer{router: r, store: store, handlers: h}
}

func (s *testServer) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) upload(t *testing.T, name string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write(data)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) uploadID(t *testing.T, name string, data []byte) string {
	t.Helper()
	rec := s.upload(t, name, data)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload %s: status %d: %s", name, rec.Code, rec.Body)
	}
	var resp UploadResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	return resp.ID
}

func pngData(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp.Kind
}

func TestUpload(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		file     string
		wantCode int
		wantType string
	}{
		{"image", "photo.PNG", http.StatusCreated, "image"},
		{"tarball", "backup.tar.gz", http.StatusCreated, "archive"},
		{"unknown extension", "notes.xyz", http.StatusCreated, "unknown"},
		{"no extension", "README", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.upload(t, tt.file, []byte("data"))
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body)
			}
			if tt.wantCode != http.StatusCreated {
				return
			}
			var resp UploadResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Type != tt.wantType || resp.Name != tt.file || resp.ID == "" {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestUploadMissingField(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/upload", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestConvertReturnsAttachment(t *testing.T) {
	s := newTestServer(t)
	id := s.uploadID(t, "photo.png", pngData(t))

	rec := s.do(t, http.MethodPost, "/api/convert", ConvertRequest{ID: id, Target: "jpg", Quality: 80})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/jpeg" {
		t.Errorf("Content-Type = %q, want image/jpeg", got)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename=photo.jpg` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if _, format, err := image.Decode(rec.Body); err != nil || format != "jpeg" {
		t.Errorf("body decodes as %q, %v", format, err)
	}
}

func TestConvertJSONResponse(t *testing.T) {
	s := newTestServer(t)
	id := s.uploadID(t, "photo.png", pngData(t))

	rec := s.do(t, http.MethodPost, "/api/convert?download=false", ConvertRequest{ID: id, Target: "gif"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var out artifacts.Artifact
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Ext != "gif" || out.Category != formats.CategoryImage {
		t.Errorf("artifact = %+v", out)
	}

	if rec := s.do(t, http.MethodGet, "/api/artifacts/"+out.ID, nil); rec.Code != http.StatusOK {
		t.Errorf("download status = %d", rec.Code)
	}
}

func TestConvertErrors(t *testing.T) {
	s := newTestServer(t)
	pngID := s.uploadID(t, "a.png", pngData(t))
	mp3ID := s.uploadID(t, "a.mp3", []byte("ID3"))

	tests := []struct {
		name     string
		body     interface{}
		wantCode int
		wantKind failure.Kind
	}{
		{"unsupported pair", ConvertRequest{ID: pngID, Target: "mp3"}, http.StatusUnprocessableEntity, failure.KindUnsupportedConversion},
		{"missing backend", ConvertRequest{ID: mp3ID, Target: "wav"}, http.StatusServiceUnavailable, failure.KindBackendUnavailable},
		{"bad pages", ConvertRequest{ID: pngID, Target: "jpg", Pages: "0-2"}, http.StatusBadRequest, failure.KindInvalidRequest},
		{"malformed id", ConvertRequest{ID: "../etc/passwd", Target: "jpg"}, http.StatusBadRequest, failure.KindInvalidRequest},
		{"missing target", ConvertRequest{ID: pngID}, http.StatusBadRequest, failure.KindInvalidRequest},
		{"unknown id", ConvertRequest{ID: "6f1c1f59-6b9e-4b8e-9a57-1d7c0e8f0a11.png", Target: "jpg"}, http.StatusNotFound, ""},
		{"not json", "{", http.StatusBadRequest, failure.KindInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/convert", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body)
			}
			if got := errorKind(t, rec); got != string(tt.wantKind) {
				t.Errorf("kind = %q, want %q", got, tt.wantKind)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	s := newTestServer(t)
	baseID := s.uploadID(t, "cover.png", pngData(t))
	noteID := s.uploadID(t, "note.txt", []byte("hidden"))

	t.Run("single input", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/merge", MergeRequest{IDs: []string{noteID}})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("explicit base", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/merge", MergeRequest{IDs: []string{noteID}, Base: baseID})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body)
		}
		body := rec.Body.Bytes()
		if _, err := png.Decode(bytes.NewReader(body)); err != nil {
			t.Errorf("merged PNG does not decode: %v", err)
		}
		if !bytes.Contains(body, []byte("hidden")) {
			t.Error("payload missing from merged file")
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/merge", MergeRequest{IDs: []string{noteID, "nope"}})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestDeleteArtifact(t *testing.T) {
	s := newTestServer(t)
	id := s.uploadID(t, "a.txt", []byte("x"))

	if rec := s.do(t, http.MethodDelete, "/api/artifacts/"+id, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/artifacts/"+id, nil); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestGetFormat(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/formats/PNG", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp FormatResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Category != "image" || resp.MimeType != "image/png" {
		t.Errorf("response = %+v", resp)
	}
	joined := strings.Join(resp.Targets, ",")
	if !strings.Contains(joined, "jpg") || !strings.Contains(joined, "svg") || strings.Contains(joined, "mp3") {
		t.Errorf("targets = %v", resp.Targets)
	}

	if rec := s.do(t, http.MethodGet, "/api/formats/xyz", nil); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown format status = %d, want 422", rec.Code)
	}
}

func TestListFormats(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/formats", nil)

	var resp map[string][]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if got := resp["document"]; len(got) != 2 {
		t.Errorf("document formats = %v", got)
	}
}

func TestMetadataUnavailable(t *testing.T) {
	s := newTestServer(t)
	id := s.uploadID(t, "a.png", pngData(t))

	rec := s.do(t, http.MethodGet, "/api/metadata/"+id, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != statusHealthy || !resp.Backends["raster"] || resp.Ledger != "ok" {
		t.Errorf("response = %+v", resp)
	}
}

func TestStats(t *testing.T) {
	s := newTestServer(t)
	s.uploadID(t, "a.png", pngData(t))
	s.uploadID(t, "b.txt", []byte("hello"))

	rec := s.do(t, http.MethodGet, "/api/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		ByCategory map[string]int `json:"byCategory"`
		TotalBytes int64          `json:"totalBytes"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.ByCategory["image"] != 1 || resp.ByCategory["document"] != 1 || resp.TotalBytes == 0 {
		t.Errorf("stats = %+v", resp)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{failure.New(failure.KindInvalidRequest, "x"), http.StatusBadRequest},
		{failure.New(failure.KindUnsupportedConversion, "x"), http.StatusUnprocessableEntity},
		{failure.New(failure.KindEmptyDocument, "x"), http.StatusUnprocessableEntity},
		{failure.New(failure.KindMergeBaseNotFound, "x"), http.StatusUnprocessableEntity},
		{failure.New(failure.KindBackendUnavailable, "x"), http.StatusServiceUnavailable},
		{failure.New(failure.KindBackendExecutionFailed, "x"), http.StatusInternalServerError},
		{failure.New(failure.KindContainerIntegrityFailed, "x"), http.StatusInternalServerError},
		{fmt.Errorf("%w: id", artifacts.ErrNotFound), http.StatusNotFound},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWantsJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?download=false", nil)
	if !wantsJSON(req.WithContext(context.Background())) {
		t.Error("download=false should select JSON")
	}
	if wantsJSON(httptest.NewRequest(http.MethodGet, "/", nil)) {
		t.Error("downloads are the default")
	}
}

func TestDownloadStreaming(t *testing.T) {
	s := newTestServer(t)
	s.handlers.streamAbove = 0
	payload := bytes.Repeat([]byte("page "), 100_000)
	id := s.uploadID(t, "notes.txt", payload)

	tests := []struct {
		name       string
		rangeHdr   string
		wantStatus int
		wantLen    int
	}{
		{"full body is streamed", "", http.StatusOK, len(payload)},
		{"ranges use ServeContent", "bytes=0-9", http.StatusPartialContent, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/artifacts/"+id, nil)
			if tt.rangeHdr != "" {
				req.Header.Set("Range", tt.rangeHdr)
			}
			rec := httptest.NewRecorder()
			s.router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if rec.Body.Len() != tt.wantLen {
				t.Errorf("body length = %d, want %d", rec.Body.Len(), tt.wantLen)
			}
			if got := rec.Header().Get("Content-Disposition"); got != "attachment; filename=notes.txt" {
				t.Errorf("Content-Disposition = %q", got)
			}
		})
	}
}

func TestPlainDownload(t *testing.T) {
	tests := []struct {
		method string
		header string
		want   bool
	}{
		{http.MethodGet, "", true},
		{http.MethodPost, "", true},
		{http.MethodHead, "", false},
		{http.MethodGet, "Range", false},
		{http.MethodGet, "If-None-Match", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, "/", nil)
		if tt.header != "" {
			req.Header.Set(tt.header, "x")
		}
		if got := plainDownload(req); got != tt.want {
			t.Errorf("plainDownload(%s %s) = %v, want %v", tt.method, tt.header, got, tt.want)
		}
	}
}

func TestMetricsHandler(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.handlers.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "promhttp_metric_handler_requests_total") {
		t.Error("scrape should include the handler's own request counter")
	}
}
