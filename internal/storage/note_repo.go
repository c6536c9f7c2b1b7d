package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// NoteRepo provides methods for per-file note operations.
type NoteRepo struct {
	db *sql.DB
}

// NewNoteRepo creates a new NoteRepo.
func NewNoteRepo(db *sql.DB) *NoteRepo {
	return &NoteRepo{db: db}
}

// Add appends a note to the file's note list.
func (r *NoteRepo) Add(ctx context.Context, fileID, note string) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO notes (file_id, note, ts) VALUES (?, ?, ?)",
		fileID, note, nowTS(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	return nil
}

// List returns the file's notes in insertion order. A file with no notes
// yields an empty slice.
func (r *NoteRepo) List(ctx context.Context, fileID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT note FROM notes WHERE file_id = ? ORDER BY id",
		fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	notes := []string{}
	for rows.Next() {
		var note string
		if err := rows.Scan(&note); err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

// DeleteForFile removes all notes attached to the file.
func (r *NoteRepo) DeleteForFile(ctx context.Context, fileID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM notes WHERE file_id = ?", fileID)
	if err != nil {
		return fmt.Errorf("failed to delete notes: %w", err)
	}
	return nil
}
