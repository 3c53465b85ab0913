// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is loaded from environment variables via [LoadConfig]:
//
//   - DATA_DIR: Root of the artifact store and ledger (default: /data)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable the metrics server (default: true)
//   - ARTIFACT_TTL: Age after which artifacts are swept (default: 1h)
//   - SWEEP_INTERVAL: How often the sweep runs (default: 10m)
//   - PROBE_TIMEOUT: Bound on ffprobe runs (default: 10s)
//   - CONVERT_WORKERS: Fan-out concurrency override (default: derived from CPUs)
//   - MAX_UPLOAD_MB: Largest accepted upload (default: 512)
//   - MEMORY_LIMIT: Container memory limit in bytes, used to derive GOMEMLIMIT
//   - MEMORY_RATIO: Share of MEMORY_LIMIT given to the Go heap (default: 0.75)
//   - PROFILE_FILE: Optional YAML conversion profile
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// The conversion profile tunes the adapters:
//
//	icon_sizes: [16, 32, 48, 256]
//	jpeg_quality: 85
//	pdf_dpi: 150
//	vector:
//	  colors: 8
//	  min_area: 16
//	audio_codec: aac
//	video_codec: libx264
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
package startup
