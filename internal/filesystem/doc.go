/*
Package filesystem provides the artifact directory's file primitives: reads
that retry NFS stale file handles, and writes that only ever publish a
complete file.

# Retry

StatWithRetry, OpenWithRetry, ReadFileWithRetry and RemoveWithRetry retry
ESTALE (errno 116) with exponential backoff until the context ends. Every
other error fails immediately:

	info, err := filesystem.StatWithRetry(ctx, path, filesystem.DefaultRetryConfig())

Defaults: 3 retries, 50ms initial backoff, 500ms cap. Operations are
labeled by volume ("artifacts", "data") through the resolver installed with
SetDefaultVolumeResolver.

# Atomic publish

WriteFileAtomic and Publish write to a temporary sibling and rename it onto
the destination, so readers never observe a half-written artifact and a
failed producer leaves nothing behind:

	err := filesystem.WriteFileAtomic(dst, data, 0o644)

	err := filesystem.Publish(dst, func(tmp string) error {
	    return runFFmpeg(src, tmp)
	})

The temporary name keeps the destination's extension because external tools
such as ffmpeg pick the output muxer from it.

# Metrics

Operations are reported to the Observer installed with SetObserver; the
metrics package provides the Prometheus implementation. A nil observer
skips recording.
*/
package filesystem
