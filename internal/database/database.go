// Package database provides the hot in-memory SQLite database, snapshot
// persistence, and transaction utilities.
package database

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Config holds database configuration settings.
type Config struct {
	// Name distinguishes hot databases within a process (shared-cache scope).
	Name string
	// SnapshotPath is the on-disk snapshot restored at boot and written by the
	// save coordinator. Empty means a fresh in-memory database.
	SnapshotPath string
}

// Connect opens the hot in-memory database and restores the snapshot if one
// exists. All connections share the same in-memory cache; foreign keys are on.
func Connect(cfg Config) (*sql.DB, error) {
	name := cfg.Name
	if name == "" {
		name = "sshdeckhot"
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A shared-cache memory database disappears when its last connection
	// closes; keep at least one alive for the process lifetime.
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.SnapshotPath != "" {
		if err := Restore(db, cfg.SnapshotPath); err != nil {
			return nil, fmt.Errorf("failed to restore snapshot: %w", err)
		}
	}

	return db, nil
}
