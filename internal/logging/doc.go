// Package logging provides the leveled logger used throughout the converter.
//
// Levels, lowest first:
//   - DEBUG: per-request routing, backend arguments, codec offsets
//   - INFO: startup, sweeps, completed merges
//   - WARN: degraded backends, cleanup failures
//   - ERROR: failed conversions and backend diagnostics
//   - FATAL: startup errors that terminate the process
//
// The level comes from LOG_LEVEL (debug, info, warn, error), or DEBUG=true.
package logging
