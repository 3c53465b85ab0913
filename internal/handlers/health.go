package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"uniconverter/internal/failure"
	"uniconverter/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// requiredBackends must be available for the service to report healthy.
var requiredBackends = []string{"raster", "document", "archive"}

// pinger is implemented by stats providers backed by a database.
type pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse contains the health check response
type HealthResponse struct {
	Status   string          `json:"status"`
	Version  string          `json:"version"`
	Uptime   string          `json:"uptime"`
	Backends map[string]bool `json:"backends"`
	// Ledger is "ok", "unreachable", or omitted when no ledger is configured.
	Ledger string `json:"ledger,omitempty"`

	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck reports backend availability and ledger reachability.
// Optional backends being missing does not fail the check; a missing pure-Go
// backend or an unreachable ledger does.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	backends := h.dispatcher.Registry().Status()

	response := HealthResponse{
		Status:       statusHealthy,
		Version:      startup.Version,
		Uptime:       time.Since(h.started).Round(time.Second).String(),
		Backends:     backends,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	status := http.StatusOK
	for _, name := range requiredBackends {
		if !backends[name] {
			response.Status = statusDegraded
			status = http.StatusServiceUnavailable
		}
	}
	if p, ok := h.stats.(pinger); ok {
		response.Ledger = "ok"
		if err := p.Ping(r.Context()); err != nil {
			response.Ledger = "unreachable"
			response.Status = statusDegraded
			status = http.StatusServiceUnavailable
		}
	}
	writeJSONStatus(w, status, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// GetVersion returns the application version and build information
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	writeJSONStatus(w, http.StatusOK, startup.GetBuildInfo())
}

// GetStats reports what the artifact ledger holds.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeError(w, failure.New(failure.KindBackendUnavailable, "artifact ledger is not configured"))
		return
	}
	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, map[string]interface{}{
		"byCategory": stats.ByCategory,
		"totalBytes": stats.TotalBytes,
	})
}
