package metrics

import "uniconverter/internal/failure"

// Routes are the conversion route labels used by ConversionsTotal.
var Routes = []string{"passthrough", "raster", "vector", "audio", "video",
	"audio_to_video", "document", "document_pages", "archive"}

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
func InitializeMetrics() {
	statuses := []string{"success",
		string(failure.KindUnsupportedConversion),
		string(failure.KindBackendUnavailable),
		string(failure.KindBackendExecutionFailed),
		string(failure.KindEmptyDocument),
	}
	for _, route := range Routes {
		ConversionDuration.WithLabelValues(route)
		for _, status := range statuses {
			ConversionsTotal.WithLabelValues(route, status)
		}
	}

	for _, codec := range []string{"png", "mp4", "pdf", "raw"} {
		CodecEmbedsTotal.WithLabelValues(codec, "success")
		CodecEmbedsTotal.WithLabelValues(codec, string(failure.KindContainerIntegrityFailed))
		CodecPayloadBytes.WithLabelValues(codec)
	}

	for _, base := range []string{"video", "audio", "document", "none"} {
		MergesTotal.WithLabelValues(base, "success")
		MergesTotal.WithLabelValues(base, "failure")
	}

	volumes := []string{"artifacts", "data", "unknown"}
	for _, vol := range volumes {
		for _, op := range []string{"stat", "open", "read", "write", "rename"} {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
		}
		for _, op := range []string{"stat", "open", "read"} {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
		}
	}

	for _, op := range []string{"record", "lookup", "forget", "expired", "stats"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}

// StatusLabel maps a conversion or codec error to a metric status label.
func StatusLabel(err error) string {
	if err == nil {
		return "success"
	}
	if kind := failure.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
