// Package convert routes conversion requests to backends.
//
// The Dispatcher is the only entry point. For a request it:
//
//  1. returns the source unchanged when the target extension equals the
//     source extension
//  2. rejects unknown formats and pairs the catalog cannot convert
//  3. picks a route from a static table keyed by (source category, target
//     category), with svg targets overridden to the vector backend
//  4. checks the route's backends in the capability Registry, failing with
//     BackendUnavailable when one is missing
//  5. runs the backend against a temporary path and publishes the artifact
//     only on success
//
// Document to image conversions fan out: every page is rasterized to an
// intermediate PNG, each PNG is converted through the dispatcher again, and
// more than one page is bundled into a zip. Intermediates are always deleted.
//
// Every error returned by Convert is a *failure.Error.
package convert
