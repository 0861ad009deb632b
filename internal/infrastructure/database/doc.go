// Package database opens the SQLite file that holds PixelPanel history
// (confirmed device configs and log lines) and applies embedded schema
// migrations.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are forward-only and additive: new columns are nullable or
// carry defaults.
package database
