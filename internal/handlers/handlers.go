package handlers

import (
	"time"

	"uniconverter/internal/artifacts"
	"uniconverter/internal/convert"
	"uniconverter/internal/formats"
	"uniconverter/internal/metadata"
	"uniconverter/internal/metrics"
	"uniconverter/internal/polyglot"

	"github.com/gorilla/mux"
)

const (
	// DefaultMaxUploadBytes bounds an upload when Config leaves it unset.
	DefaultMaxUploadBytes = 512 << 20

	// streamThreshold is the size from which downloads are sent with
	// per-chunk write deadlines instead of http.ServeContent.
	streamThreshold = 8 << 20
)

// Config wires the handlers to the engine.
type Config struct {
	Dispatcher *convert.Dispatcher
	Merger     *polyglot.Merger
	// Metadata may be nil; metadata reads then report the backend missing.
	Metadata metadata.Tool
	// Stats may be nil; /api/stats then reports 503.
	Stats          metrics.StatsProvider
	MaxUploadBytes int64
}

// Handlers serves the HTTP API.
type Handlers struct {
	dispatcher *convert.Dispatcher
	merger     *polyglot.Merger
	store      *artifacts.Store
	catalog    *formats.Catalog
	meta       metadata.Tool
	stats      metrics.StatsProvider
	maxUpload  int64
	// streamAbove is the artifact size from which downloads use streaming.Copy.
	streamAbove int64
	started     time.Time
}

// New creates the handlers.
func New(config Config) *Handlers {
	maxUpload := config.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &Handlers{
		dispatcher:  config.Dispatcher,
		merger:      config.Merger,
		store:       config.Dispatcher.Store(),
		catalog:     config.Dispatcher.Catalog(),
		meta:        config.Metadata,
		stats:       config.Stats,
		maxUpload:   maxUpload,
		streamAbove: streamThreshold,
		started:     time.Now(),
	}
}

// Register adds every route to r.
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/upload", h.Upload).Methods("POST").Name("upload")
	api.HandleFunc("/convert", h.Convert).Methods("POST").Name("convert")
	api.HandleFunc("/merge", h.Merge).Methods("POST").Name("merge")
	api.HandleFunc("/artifacts/{id}", h.GetArtifact).Methods("GET").Name("artifact")
	api.HandleFunc("/artifacts/{id}", h.DeleteArtifact).Methods("DELETE")
	api.HandleFunc("/formats", h.ListFormats).Methods("GET")
	api.HandleFunc("/formats/{ext}", h.GetFormat).Methods("GET")
	api.HandleFunc("/metadata/{id}", h.GetMetadata).Methods("GET")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")
}
