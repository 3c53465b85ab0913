package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"uniconverter/internal/logging"
	"uniconverter/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// migrations are applied in order; PRAGMA user_version records how many
// have run. Append only.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS artifacts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		ext TEXT NOT NULL,
		category TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		digest TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_artifacts_created_at ON artifacts(created_at);`,

	`CREATE INDEX IF NOT EXISTS idx_artifacts_category ON artifacts(category);`,
}

// Database is the SQLite artifact ledger.
type Database struct {
	db     *sql.DB
	dbPath string
}

// New opens (and creates if needed) the ledger at dbPath and brings its
// schema up to date. The parent directory must already exist.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Ledger path: %s", dbPath)

	if err := checkDirectory(dbPath); err != nil {
		return nil, err
	}

	// WAL lets the sweeper read while handlers record; busy_timeout covers
	// the short write overlaps that remain.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{db: db, dbPath: dbPath}
	if err := d.Ping(ctx); err != nil {
		d.closeAfter("ping")
		return nil, fmt.Errorf("failed to connect to ledger: %w", err)
	}

	applied, err := d.migrate(ctx)
	if err != nil {
		d.closeAfter("migration")
		return nil, fmt.Errorf("failed to migrate ledger schema: %w", err)
	}
	if applied > 0 {
		logging.Info("Ledger schema: applied %d migration(s), now at version %d", applied, len(migrations))
	}
	return d, nil
}

// Ping checks that the ledger answers within the default timeout.
func (d *Database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return d.db.PingContext(ctx)
}

// migrate runs the migrations newer than the stored schema version, each in
// its own transaction, and returns how many ran.
func (d *Database) migrate(ctx context.Context) (int, error) {
	var version int
	if err := d.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, err
	}
	if version > len(migrations) {
		return 0, fmt.Errorf("ledger schema version %d is newer than this binary (%d)", version, len(migrations))
	}

	for i := version; i < len(migrations); i++ {
		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return i - version, err
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			_ = tx.Rollback()
			return i - version, fmt.Errorf("migration %d: %w", i+1, err)
		}
		// PRAGMA does not take bind parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			_ = tx.Rollback()
			return i - version, err
		}
		if err := tx.Commit(); err != nil {
			return i - version, err
		}
	}
	return len(migrations) - version, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) closeAfter(stage string) {
	if err := d.db.Close(); err != nil {
		logging.Error("failed to close ledger after %s failure: %v", stage, err)
	}
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// checkDirectory fails early with a readable error when the ledger's
// directory is missing or not writable, and warns about read-only ledger
// files left behind by another user.
func checkDirectory(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("ledger directory: %w", err)
	}

	probe, err := os.CreateTemp(dir, ".ledger-perm-*")
	if err != nil {
		return fmt.Errorf("ledger directory not writable: %w", err)
	}
	probe.Close()
	_ = os.Remove(probe.Name())

	for _, path := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if info, err := os.Stat(path); err == nil && info.Mode().Perm()&0o200 == 0 {
			logging.Warn("%s is read-only (mode %v); ledger writes will fail", path, info.Mode())
		}
	}
	return nil
}
