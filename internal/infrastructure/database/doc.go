// Package database provides SQLite connectivity for the warehouse store.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Embedded, versioned schema migrations
//   - Connection lifecycle and health checks
//
// The SQLite file is the durable half of the digital twin: the command
// queue, inventory slot occupancy, device state snapshots and alerts all
// live here and survive process restarts.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// All queries use parameterised statements and the database file is created
// with 0600 permissions.
package database
