package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
)

// Snapshot writes a consistent copy of the hot database to path. The copy is
// produced with VACUUM INTO against a temporary file and moved into place
// atomically, so a crash mid-flush never corrupts the previous snapshot.
func Snapshot(ctx context.Context, db *sql.DB, path string) error {
	tmp := path + ".tmp"
	_ = os.Remove(tmp)

	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", tmp); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to vacuum into snapshot: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	return nil
}

// Restore copies the schema and rows of an on-disk snapshot into the hot
// database. Missing snapshot files are not an error: the database simply
// starts empty and migrations build the schema.
func Restore(db *sql.DB, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	if _, err := db.Exec("ATTACH DATABASE ? AS snapshot", path); err != nil {
		return fmt.Errorf("failed to attach snapshot: %w", err)
	}
	defer func() {
		_, _ = db.Exec("DETACH DATABASE snapshot")
	}()

	// Recreate every object first so foreign keys resolve during the copy.
	objects, err := snapshotObjects(db)
	if err != nil {
		return err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("failed to disable foreign keys: %w", err)
	}
	defer func() {
		_, _ = db.Exec("PRAGMA foreign_keys = ON")
	}()

	for _, obj := range objects {
		if _, err := db.Exec(obj.createSQL); err != nil {
			return fmt.Errorf("failed to recreate %s: %w", obj.name, err)
		}
	}

	for _, obj := range objects {
		if obj.kind != "table" {
			continue
		}
		copyStmt := fmt.Sprintf(
			"INSERT INTO main.%q SELECT * FROM snapshot.%q", obj.name, obj.name,
		)
		if _, err := db.Exec(copyStmt); err != nil {
			return fmt.Errorf("failed to copy table %s: %w", obj.name, err)
		}
	}

	return nil
}

// snapshotObject describes a schema object found in an attached snapshot.
type snapshotObject struct {
	kind      string
	name      string
	createSQL string
}

// snapshotObjects lists tables and indexes of the attached snapshot, skipping
// SQLite internals (sqlite_sequence and friends carry no create statement).
func snapshotObjects(db *sql.DB) ([]snapshotObject, error) {
	rows, err := db.Query(
		`SELECT type, name, sql FROM snapshot.sqlite_master
		 WHERE sql IS NOT NULL AND name NOT LIKE 'sqlite_%'
		 ORDER BY CASE type WHEN 'table' THEN 0 ELSE 1 END, rowid`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot schema: %w", err)
	}
	defer rows.Close()

	var objects []snapshotObject
	for rows.Next() {
		var obj snapshotObject
		if err := rows.Scan(&obj.kind, &obj.name, &obj.createSQL); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot schema: %w", err)
		}
		objects = append(objects, obj)
	}

	return objects, rows.Err()
}
