// Package memory keeps the converter inside its container memory budget.
//
// [SetLimit] derives GOMEMLIMIT from the container limit (MEMORY_LIMIT and
// MEMORY_RATIO), leaving headroom for ffmpeg, libvips and MuPDF, which
// allocate outside the Go heap. An explicit GOMEMLIMIT takes precedence.
//
// A [Gate] samples heap usage and closes when it crosses the pause mark.
// Page fan-out and merge normalization call [Gate.Wait] before starting each
// unit of work, so a large document does not start dozens of decodes while
// the heap is already near its limit. The gate reopens once usage drops
// below the resume mark; the gap between the two marks avoids flapping.
package memory
