package database

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

// Migration is one forward-only schema change loaded from a file named
// YYYYMMDD_HHMMSS_description.up.sql.
type Migration struct {
	Version string
	Name    string
	UpSQL   string
}

// Migrate applies every migration in fsys that is not yet recorded in
// schema_migrations, oldest first. Each runs in its own transaction, so a
// failure leaves earlier migrations committed and a rerun continues from the
// failed one. Returns the number applied.
func (db *DB) Migrate(ctx context.Context, fsys fs.FS) (int, error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)`); err != nil {
		return 0, fmt.Errorf("creating migrations table: %w", err)
	}

	migrations, err := LoadMigrations(fsys)
	if err != nil {
		return 0, fmt.Errorf("loading migrations: %w", err)
	}

	applied, err := db.AppliedVersions(ctx)
	if err != nil {
		return 0, err
	}
	done := make(map[string]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	count := 0
	for _, m := range migrations {
		if done[m.Version] {
			continue
		}
		if err := db.applyMigration(ctx, m); err != nil {
			return count, fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
		count++
	}
	return count, nil
}

// AppliedVersions lists recorded migration versions in order.
func (db *DB) AppliedVersions(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("querying migrations: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating migrations: %w", err)
	}
	return versions, nil
}

func (db *DB) applyMigration(ctx context.Context, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
		return fmt.Errorf("executing SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		m.Version,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	return tx.Commit()
}

// LoadMigrations reads the *.up.sql files at the root of fsys, sorted by version.
// Files with other names are ignored.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	if fsys == nil {
		return nil, nil
	}
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, name, ok := parseMigrationFilename(entry.Name())
		if !ok {
			continue
		}
		data, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{Version: version, Name: name, UpSQL: string(data)})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// parseMigrationFilename splits "20261018_120000_config_snapshots.up.sql"
// into version "20261018_120000" and name "config_snapshots".
func parseMigrationFilename(file string) (version, name string, ok bool) {
	base, found := strings.CutSuffix(file, ".up.sql")
	if !found {
		return "", "", false
	}
	parts := strings.SplitN(base, "_", 3)
	if len(parts) < 2 || len(parts[0]) != 8 || len(parts[1]) != 6 {
		return "", "", false
	}
	version = parts[0] + "_" + parts[1]
	if len(parts) == 3 {
		name = parts[2]
	}
	return version, name, true
}
