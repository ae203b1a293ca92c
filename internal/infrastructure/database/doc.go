// Package database opens the daemon's SQLite store and runs its
// migrations.
//
// The database holds telemetry history and the audit trail. Open applies
// the pragmas through the DSN (busy timeout, foreign keys, and WAL with
// NORMAL synchronous when configured), pins the pool to a single
// connection since one daemon process owns the file, and tightens the
// file to mode 0600.
//
//	db, err := database.Open(database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are .up.sql/.down.sql pairs embedded from the migrations
// directory (see MigrationsFS), named YYYYMMDD_HHMMSS_description and
// applied in version order, one transaction each. Tables are STRICT;
// keep new columns nullable or defaulted so MigrateDown stays safe.
package database
