// Package main provides the entry point for the uniconverter server.
//
// uniconverter converts uploaded files between image, audio, video, document
// and archive formats, and merges several files into one polyglot file that
// stays valid as its base format while carrying the others as payloads.
//
// # Application Lifecycle
//
//  1. Configuration Loading: Reads environment variables and the optional
//     YAML conversion profile, validates the data directory
//  2. Memory: Derives GOMEMLIMIT from MEMORY_LIMIT and starts the memory gate
//     that holds page and merge workers back under pressure
//  3. Ledger: Opens the SQLite artifact ledger
//  4. Backends: Initializes libvips and registers every conversion backend;
//     ffmpeg and exiftool are optional and reported at startup
//  5. HTTP Server Setup: Routes, metrics, logging and compression middleware
//  6. Graceful Shutdown: Handles SIGINT/SIGTERM and stops components in order
//
// # Background Services
//
//   - Sweeper: Removes artifacts older than ARTIFACT_TTL every SWEEP_INTERVAL
//   - Metrics Collector: Refreshes ledger gauges every minute
//   - Memory Gate: Samples heap usage against the memory limit
//
// # HTTP Server
//
//  1. Main Server (default port 8080):
//     - POST /api/upload, /api/convert, /api/merge
//     - GET/DELETE /api/artifacts/{id}
//     - GET /api/formats, /api/formats/{ext}, /api/metadata/{id}, /api/stats
//     - GET /health, /healthz, /version
//
//  2. Metrics Server (default port 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//     - Health check endpoint (/health)
//
// # Graceful Shutdown
//
//  1. Stop accepting new HTTP requests (30s timeout for in-flight requests)
//  2. Stop the sweeper, metrics collector and memory gate
//  3. Terminate running ffmpeg processes
//  4. Shutdown metrics server (if running)
//  5. Shutdown libvips
//  6. Close the ledger
//
// # Build Requirements
//
// CGO is required for SQLite, libvips and MuPDF:
//
//	go build -o uniconverter ./cmd/uniconverter
//
// ffmpeg/ffprobe and exiftool are looked up on PATH at runtime.
//
// See [uniconverter/internal/startup] for the environment variables.
package main
