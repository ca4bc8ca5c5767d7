// Package database opens the SQLite database that holds the audit trail.
//
// The connection runs in WAL mode with a busy timeout and a single
// writer. Schema changes are numbered migration files applied in order,
// each in its own transaction, and recorded in schema_migrations.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named NNNN_description.up.sql and
// NNNN_description.down.sql.
package database
