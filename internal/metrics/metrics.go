package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uniconverter_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uniconverter_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "uniconverter_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// 1KiB to 256MiB in 4x steps: uploads and converted downloads.
	transferBuckets = prometheus.ExponentialBuckets(1024, 4, 10)

	HTTPRequestSizeBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uniconverter_http_request_size_bytes",
			Help:    "Declared HTTP request body size",
			Buckets: transferBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPResponseSizeBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uniconverter_http_response_size_bytes",
			Help:    "HTTP response body bytes written",
			Buckets: transferBuckets,
		},
		[]string{"method", "path"},
	)
)

// Conversion metrics
var (
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uniconverter_conversions_total",
			Help: "Total number of conversion requests by route and status",
		},
		[]string{"route", "status"},
	)

	ConversionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uniconverter_conversion_duration_seconds",
			Help:    "Conversion duration in seconds by route",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"route"},
	)

	FanOutUnits = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "uniconverter_fanout_units",
			Help:    "Number of units produced by a fan-out conversion",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		},
	)

	BackendAvailable = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "uniconverter_backend_available",
			Help: "Whether a conversion backend registered as available (1) or not (0)",
		},
		[]string{"backend"},
	)
)

// Merge and codec metrics
var (
	MergesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uniconverter_merges_total",
			Help: "Total number of merge requests by base category and status",
		},
		[]string{"base", "status"},
	)

	CodecEmbedsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uniconverter_codec_embeds_total",
			Help: "Total number of container embed operations by codec and status",
		},
		[]string{"codec", "status"},
	)

	CodecPayloadBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uniconverter_codec_payload_bytes",
			Help:    "Bytes embedded per container embed operation",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
		[]string{"codec"},
	)

	ContainerProbeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uniconverter_container_probe_duration_seconds",
			Help:    "Structural verification probe duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"prober"},
	)
)

// Artifact metrics
var (
	ArtifactsStored = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "uniconverter_artifacts_stored",
			Help: "Number of artifacts currently recorded in the ledger by category",
		},
		[]string{"category"},
	)

	ArtifactBytesStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "uniconverter_artifact_bytes_stored",
			Help: "Total size of artifacts currently recorded in the ledger",
		},
	)

	// ArtifactOldestAgeSeconds grows past ARTIFACT_TTL plus SWEEP_INTERVAL
	// only when the sweeper is not keeping up.
	ArtifactOldestAgeSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "uniconverter_artifact_oldest_age_seconds",
			Help: "Age of the oldest artifact recorded in the ledger",
		},
	)

	ArtifactsSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uniconverter_artifacts_swept_total",
			Help: "Total number of expired artifacts removed by the sweep",
		},
	)

	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uniconverter_db_queries_total",
			Help: "Total number of artifact ledger queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uniconverter_db_query_duration_seconds",
			Help:    "Artifact ledger query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uniconverter_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration by volume and operation",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uniconverter_filesystem_operation_errors_total",
			Help: "Filesystem operation errors by volume and operation",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uniconverter_filesystem_retry_attempts_total",
			Help: "Retries triggered by NFS stale file handles",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uniconverter_filesystem_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uniconverter_filesystem_retry_failures_total",
			Help: "Operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uniconverter_filesystem_stale_errors_total",
			Help: "NFS stale file handle errors observed",
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "uniconverter_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "uniconverter_memory_paused",
			Help: "Whether page and merge workers are held back by memory pressure (1) or not (0)",
		},
	)

	MemoryWaitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uniconverter_memory_waits_total",
			Help: "Number of times a worker waited for memory pressure to clear",
		},
	)
)
