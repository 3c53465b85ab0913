// Package handlers provides the HTTP API of the converter.
//
// It includes handlers for:
//   - Uploading files into the artifact store
//   - Converting an artifact into another format
//   - Merging several artifacts into one polyglot file
//   - Downloading and deleting artifacts
//   - Classifying extensions and listing conversion targets
//   - Reading embedded metadata
//   - Health, version and ledger statistics
//
// Failures are reported as JSON {"error": ..., "kind": ...} with the status
// chosen by the failure kind.
package handlers
