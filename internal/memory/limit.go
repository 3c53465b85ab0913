package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"uniconverter/internal/logging"
)

// DefaultRatio is the share of the container limit given to the Go heap.
// The remainder covers ffmpeg, libvips and MuPDF, which allocate outside it.
const DefaultRatio = 0.75

// Limit describes the heap limit in effect after SetLimit.
type Limit struct {
	// Source is "GOMEMLIMIT", "MEMORY_LIMIT" or "none".
	Source    string
	Container int64
	Heap      int64
	Ratio     float64
}

// SetLimit configures the Go heap limit. An explicit GOMEMLIMIT always wins;
// otherwise a positive container limit is scaled by ratio. Call it before
// backends start allocating.
func SetLimit(container int64, ratio float64) Limit {
	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		heap := debug.SetMemoryLimit(-1)
		if heap <= 0 || heap == math.MaxInt64 {
			return Limit{Source: "none"}
		}
		logging.Info("GOMEMLIMIT set via environment: %s", env)
		return Limit{Source: "GOMEMLIMIT", Heap: heap}
	}

	if container <= 0 {
		logging.Debug("MEMORY_LIMIT not set, heap limit left to the runtime")
		return Limit{Source: "none"}
	}
	if ratio <= 0 || ratio > 1 {
		logging.Warn("Memory ratio %.2f out of range (0-1], using %.2f", ratio, DefaultRatio)
		ratio = DefaultRatio
	}

	heap := int64(float64(container) * ratio)
	debug.SetMemoryLimit(heap)
	logging.Info("Configured GOMEMLIMIT: %s (%.0f%% of %s container limit)",
		formatBytes(heap), ratio*100, formatBytes(container))

	return Limit{Source: "MEMORY_LIMIT", Container: container, Heap: heap, Ratio: ratio}
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
