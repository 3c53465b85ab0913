/*
Package workers sizes the bounded worker pools used by fan-out conversions
and merge normalization.

In containers GOMAXPROCS follows the cgroup CPU limit while runtime.NumCPU
still reports the host, so every count here is derived from GOMAXPROCS:

	// Page re-encoding: one worker per CPU, at most 8 and at most one per page
	n := workers.ForPages(len(pages))

	// Merge normalization mixes ffmpeg waits with image work
	n := workers.ForMerge(len(inputs))

# Environment Variable Override

CONVERT_WORKERS pins the count for every pool, still capped by the pool's
maximum and its unit count:

	env:
	- name: CONVERT_WORKERS
	  value: "2"
*/
package workers
