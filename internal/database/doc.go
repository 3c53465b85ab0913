// Package database provides the SQLite ledger of stored artifacts.
//
// Every artifact the store publishes is recorded with its display name,
// extension, category, size and content digest. The ledger serves three
// consumers:
//   - the artifact store, to resolve display names when an id is opened
//   - the sweeper, to find artifacts older than the retention TTL
//   - the metrics collector, through Stats
//
// The database uses WAL mode for concurrent reads and initializes its schema
// on open.
package database
