// Package catalogdb is a small persistent manifest of built indexes,
// independent of the in-memory dump/load format (internal/index).
// It lets a server process enumerate and reopen dumps across restarts
// without re-walking source trees.
package catalogdb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"
)

// Build is one row of the builds table: a completed Dump of an Index.
type Build struct {
	ID         uuid.UUID
	Name       string
	DumpPath   string
	ConfigJSON string
	BuiltAt    time.Time
}

// TreeRecord is one row of the trees table, recording which trees
// went into a Build without needing to re-open its dump file.
type TreeRecord struct {
	BuildID  uuid.UUID
	Name     string
	Version  string
	MetaJSON string
}

// DB wraps the sqlite-backed catalog manifest.
type DB struct {
	sqldb *sql.DB
}

// Open opens (creating if necessary) the catalog database at dsn,
// e.g. "file:/var/lib/codesearch/catalog.db".
func Open(dsn string) (*DB, error) {
	sqldb, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalogdb: open %s: %w", dsn, err)
	}
	db := &DB{sqldb: sqldb}
	if err := db.init(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *DB) init() error {
	_, err := db.sqldb.Exec(`CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY UNIQUE,
		name TEXT NOT NULL,
		dump_path TEXT NOT NULL,
		config TEXT,
		built_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("catalogdb: creating builds table: %w", err)
	}

	_, err = db.sqldb.Exec(`CREATE TABLE IF NOT EXISTS trees (
		build_id TEXT NOT NULL,
		name TEXT NOT NULL,
		version TEXT NOT NULL,
		metadata TEXT,
		FOREIGN KEY(build_id) REFERENCES builds(id)
	)`)
	if err != nil {
		return fmt.Errorf("catalogdb: creating trees table: %w", err)
	}
	return nil
}

// RecordBuild inserts a Build row (and its associated TreeRecords) in
// one transaction.
func (db *DB) RecordBuild(name, dumpPath, configJSON string, trees []TreeRecord) (*Build, error) {
	tx, err := db.sqldb.Begin()
	if err != nil {
		return nil, fmt.Errorf("catalogdb: begin transaction: %w", err)
	}
	defer tx.Rollback()

	b := &Build{
		ID:         uuid.New(),
		Name:       name,
		DumpPath:   dumpPath,
		ConfigJSON: configJSON,
		BuiltAt:    time.Now(),
	}

	if _, err := tx.Exec("INSERT INTO builds (id, name, dump_path, config) VALUES (?, ?, ?, ?)",
		b.ID, b.Name, b.DumpPath, b.ConfigJSON); err != nil {
		return nil, fmt.Errorf("catalogdb: inserting build: %w", err)
	}

	for _, t := range trees {
		if _, err := tx.Exec("INSERT INTO trees (build_id, name, version, metadata) VALUES (?, ?, ?, ?)",
			b.ID, t.Name, t.Version, t.MetaJSON); err != nil {
			return nil, fmt.Errorf("catalogdb: inserting tree %s@%s: %w", t.Name, t.Version, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("catalogdb: commit: %w", err)
	}
	return b, nil
}

// ListBuilds returns every recorded build, most recent first.
func (db *DB) ListBuilds() ([]Build, error) {
	rows, err := db.sqldb.Query("SELECT id, name, dump_path, config, built_at FROM builds ORDER BY built_at DESC, rowid DESC")
	if err != nil {
		return nil, fmt.Errorf("catalogdb: querying builds: %w", err)
	}
	defer rows.Close()

	var out []Build
	for rows.Next() {
		var b Build
		var idStr string
		if err := rows.Scan(&idStr, &b.Name, &b.DumpPath, &b.ConfigJSON, &b.BuiltAt); err != nil {
			return nil, fmt.Errorf("catalogdb: scanning build row: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("catalogdb: parsing build id %q: %w", idStr, err)
		}
		b.ID = id
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalogdb: iterating builds: %w", err)
	}
	return out, nil
}

// LatestBuild returns the most recently recorded build for name, or
// sql.ErrNoRows if none exists.
func (db *DB) LatestBuild(name string) (*Build, error) {
	var b Build
	var idStr string
	err := db.sqldb.QueryRow(
		"SELECT id, name, dump_path, config, built_at FROM builds WHERE name = ? ORDER BY built_at DESC, rowid DESC LIMIT 1",
		name,
	).Scan(&idStr, &b.Name, &b.DumpPath, &b.ConfigJSON, &b.BuiltAt)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("catalogdb: parsing build id %q: %w", idStr, err)
	}
	b.ID = id
	return &b, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error { return db.sqldb.Close() }
