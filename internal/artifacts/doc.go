// Package artifacts implements the artifact store every conversion reads from
// and writes to.
//
// An artifact is a file in the store directory named "<uuid>.<ext>". The
// random name is the only coordination between concurrent requests: two
// producers can never pick the same path, so the store takes no locks.
//
// Producers never write the final path directly. Produce hands them a
// temporary sibling and publishes it with a rename only when they succeed,
// so readers see either a complete artifact or none.
//
// Each artifact has exactly one owner responsible for deleting it. The store
// does not track owners; it records every artifact in an optional Ledger so
// an out-of-band Sweep can remove whatever outlives the TTL.
package artifacts
