// Package metrics provides Prometheus instrumentation for the converter.
//
// All metrics are prefixed with "uniconverter_".
//
// # Metric Categories
//
// ## HTTP Metrics
//   - HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight
//
// ## Conversion Metrics
//   - ConversionsTotal: conversions by route and status (success or failure kind)
//   - ConversionDuration: conversion latency by route
//   - FanOutUnits: units produced per fan-out conversion
//   - BackendAvailable: 1 when a backend registered as available
//
// ## Merge and Codec Metrics
//   - MergesTotal: merges by base category and status
//   - CodecEmbedsTotal: embed calls by codec and status
//   - CodecPayloadBytes: bytes embedded per call by codec
//   - ContainerProbeDuration: structural probe latency by prober
//
// ## Artifact Metrics
//   - ArtifactsStored, ArtifactBytesStored: gauges refreshed by the Collector
//   - ArtifactsSweptTotal: artifacts removed by the TTL sweep
//   - DBQueryTotal, DBQueryDuration: artifact ledger queries
//
// ## Filesystem Metrics
//   - FilesystemOperationDuration, FilesystemOperationErrors
//   - FilesystemRetryAttempts, FilesystemRetrySuccess, FilesystemRetryFailures,
//     FilesystemStaleErrors
//
// Call InitializeMetrics once at startup so every label combination is
// exported from the first scrape.
package metrics
