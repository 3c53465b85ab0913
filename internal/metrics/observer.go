package metrics

import (
	"errors"
	"io/fs"

	"uniconverter/internal/filesystem"
)

// knownOperations bounds the operation label. Anything else is "other".
var knownOperations = map[string]bool{
	"stat": true, "open": true, "read": true, "readdir": true,
	"write": true, "rename": true, "remove": true,
}

// artifactObserver records filesystem metrics for the artifact store.
type artifactObserver struct{}

// NewFilesystemObserver returns the observer the filesystem package reports
// to. A missing file is a routine lookup miss (an unknown or swept artifact
// id), so it is timed but not counted as an error.
func NewFilesystemObserver() filesystem.Observer {
	return artifactObserver{}
}

func operationLabel(op string) string {
	if knownOperations[op] {
		return op
	}
	return "other"
}

func (artifactObserver) ObserveOperation(volume, operation string, durationSeconds float64, err error) {
	operation = operationLabel(operation)
	FilesystemOperationDuration.WithLabelValues(volume, operation).Observe(durationSeconds)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		FilesystemOperationErrors.WithLabelValues(volume, operation).Inc()
	}
}

func (artifactObserver) ObserveRetryAttempt(retryOp, volume string) {
	FilesystemRetryAttempts.WithLabelValues(operationLabel(retryOp), volume).Inc()
}

func (artifactObserver) ObserveRetrySuccess(retryOp, volume string) {
	FilesystemRetrySuccess.WithLabelValues(operationLabel(retryOp), volume).Inc()
}

func (artifactObserver) ObserveRetryFailure(retryOp, volume string) {
	FilesystemRetryFailures.WithLabelValues(operationLabel(retryOp), volume).Inc()
}

func (artifactObserver) ObserveStaleError(retryOp, volume string) {
	FilesystemStaleErrors.WithLabelValues(operationLabel(retryOp), volume).Inc()
}
