package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EnvOverride is the environment variable that pins the worker count.
const EnvOverride = "CONVERT_WORKERS"

const (
	// MaxPageWorkers caps page re-encoding in a fan-out conversion.
	MaxPageWorkers = 8
	// MaxMergeWorkers caps merge normalization, which may start one ffmpeg
	// process per input.
	MaxMergeWorkers = 4
)

// Count returns GOMAXPROCS scaled by multiplier, at least 1 and at most
// limit (0 means no limit). CONVERT_WORKERS replaces the scaled value.
func Count(multiplier float64, limit int) int {
	n := override()
	if n == 0 {
		n = int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	}
	return clamp(n, limit)
}

// ForPages sizes the pool for a fan-out of pages units: one worker per
// CPU, never more than there are pages.
func ForPages(pages int) int {
	n := Count(1.0, MaxPageWorkers)
	if pages > 0 && n > pages {
		n = pages
	}
	return n
}

// ForMerge sizes the normalization pool for a merge of inputs artifacts.
// Normalization waits on ffmpeg as often as it burns CPU, so it runs 1.5
// workers per CPU.
func ForMerge(inputs int) int {
	n := Count(1.5, MaxMergeWorkers)
	if inputs > 0 && n > inputs {
		n = inputs
	}
	return n
}

func override() int {
	v := os.Getenv(EnvOverride)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0
	}
	return n
}

func clamp(n, limit int) int {
	if n < 1 {
		n = 1
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}
