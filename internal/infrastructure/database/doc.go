// Package database provides SQLite connectivity for the broker's event
// journal.
//
// Migrations are plain .sql files supplied as an fs.FS, normally the
// embedded filesystem from the top-level migrations package:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive. Every .up.sql should ship with a .down.sql.
package database
