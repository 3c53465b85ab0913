package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"uniconverter/internal/artifacts"
	"uniconverter/internal/formats"
	"uniconverter/internal/metrics"
)

// Record inserts or replaces the ledger entry for an artifact.
func (d *Database) Record(ctx context.Context, e artifacts.Entry) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("record", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
	INSERT INTO artifacts (id, name, ext, category, size, digest, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		size = excluded.size,
		digest = excluded.digest
	`, e.ID, e.Name, e.Ext, string(e.Category), e.Size, e.Digest, e.CreatedAt.Unix())
	return err
}

// Lookup returns the ledger entry for id, or artifacts.ErrNotFound.
func (d *Database) Lookup(ctx context.Context, id string) (artifacts.Entry, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("lookup", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		e         artifacts.Entry
		category  string
		digest    sql.NullString
		createdAt int64
	)
	err = d.db.QueryRowContext(ctx, `
	SELECT id, name, ext, category, size, digest, created_at
	FROM artifacts WHERE id = ?
	`, id).Scan(&e.ID, &e.Name, &e.Ext, &category, &e.Size, &digest, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return artifacts.Entry{}, fmt.Errorf("%w: %s", artifacts.ErrNotFound, id)
	}
	if err != nil {
		return artifacts.Entry{}, err
	}

	e.Category = formats.Category(category)
	e.Digest = digest.String
	e.CreatedAt = time.Unix(createdAt, 0)
	return e, nil
}

// Forget removes the ledger entry for id. Missing entries are ignored.
func (d *Database) Forget(ctx context.Context, id string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("forget", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "DELETE FROM artifacts WHERE id = ?", id)
	return err
}

// Expired returns the ids of artifacts created before the cutoff.
func (d *Database) Expired(ctx context.Context, before time.Time) ([]string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("expired", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx,
		"SELECT id FROM artifacts WHERE created_at < ? ORDER BY created_at",
		before.Unix(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	err = rows.Err()
	return ids, err
}

// Stats summarizes the ledger for the metrics collector.
func (d *Database) Stats(ctx context.Context) (metrics.Stats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("stats", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	stats := metrics.Stats{ByCategory: make(map[string]int)}

	rows, err := d.db.QueryContext(ctx,
		"SELECT category, COUNT(*), COALESCE(SUM(size), 0) FROM artifacts GROUP BY category",
	)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			category string
			count    int
			size     int64
		)
		if err = rows.Scan(&category, &count, &size); err != nil {
			return stats, err
		}
		stats.ByCategory[category] = count
		stats.TotalBytes += size
	}
	if err = rows.Err(); err != nil {
		return stats, err
	}

	var oldest sql.NullInt64
	if err = d.db.QueryRowContext(ctx, "SELECT MIN(created_at) FROM artifacts").Scan(&oldest); err != nil {
		return stats, err
	}
	if oldest.Valid {
		stats.Oldest = time.Unix(oldest.Int64, 0)
	}
	return stats, nil
}

var (
	_ artifacts.Ledger      = (*Database)(nil)
	_ metrics.StatsProvider = (*Database)(nil)
)
