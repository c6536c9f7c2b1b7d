// Package storage persists notebooks, notes and file metadata in SQLite.
package storage

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// New opens a SQLite database connection at the given path.
// It enables foreign keys and sets connection pool settings.
func New(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys (disabled by default in SQLite)
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate runs database migrations to create the required tables.
// It is idempotent and can be run multiple times safely.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS notebooks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			chat_model TEXT,
			temperature REAL,
			max_tokens INTEGER,
			created_at REAL NOT NULL,
			updated_at REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS notebook_sources (
			notebook_id TEXT NOT NULL,
			file_id TEXT NOT NULL,
			attached_at REAL NOT NULL,
			PRIMARY KEY (notebook_id, file_id),
			FOREIGN KEY (notebook_id) REFERENCES notebooks(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS notebook_facts (
			id TEXT PRIMARY KEY,
			notebook_id TEXT NOT NULL,
			text TEXT NOT NULL,
			ts REAL NOT NULL,
			FOREIGN KEY (notebook_id) REFERENCES notebooks(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			notebook_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			citations TEXT,
			ts REAL NOT NULL,
			FOREIGN KEY (notebook_id) REFERENCES notebooks(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS study_artifacts (
			notebook_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			payload TEXT NOT NULL,
			ts REAL NOT NULL,
			PRIMARY KEY (notebook_id, kind),
			FOREIGN KEY (notebook_id) REFERENCES notebooks(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS notes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			file_id TEXT NOT NULL,
			note TEXT NOT NULL,
			ts REAL NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_notes_file_id ON notes(file_id);`,
		`CREATE TABLE IF NOT EXISTS file_meta (
			file_id TEXT PRIMARY KEY,
			label TEXT NOT NULL DEFAULT ''
		);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
