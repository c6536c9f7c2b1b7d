package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// FileMetaRepo provides methods for uploaded-file metadata.
type FileMetaRepo struct {
	db *sql.DB
}

// NewFileMetaRepo creates a new FileMetaRepo.
func NewFileMetaRepo(db *sql.DB) *FileMetaRepo {
	return &FileMetaRepo{db: db}
}

// SetLabel upserts the file's label. Labels are trimmed; setting an empty
// label clears it.
func (r *FileMetaRepo) SetLabel(ctx context.Context, fileID, label string) (string, error) {
	label = strings.TrimSpace(label)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO file_meta (file_id, label) VALUES (?, ?)
		 ON CONFLICT (file_id) DO UPDATE SET label = excluded.label`,
		fileID, label,
	)
	if err != nil {
		return "", fmt.Errorf("failed to set label: %w", err)
	}
	return label, nil
}

// Label returns the file's label, or the empty string when none is set.
func (r *FileMetaRepo) Label(ctx context.Context, fileID string) (string, error) {
	var label string
	err := r.db.QueryRowContext(ctx,
		"SELECT label FROM file_meta WHERE file_id = ?", fileID,
	).Scan(&label)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query label: %w", err)
	}
	return label, nil
}

// List returns all file metadata keyed by file id.
func (r *FileMetaRepo) List(ctx context.Context) (map[string]FileMeta, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT file_id, label FROM file_meta")
	if err != nil {
		return nil, fmt.Errorf("failed to query file metadata: %w", err)
	}
	defer rows.Close()

	meta := map[string]FileMeta{}
	for rows.Next() {
		var m FileMeta
		if err := rows.Scan(&m.FileID, &m.Label); err != nil {
			return nil, err
		}
		meta[m.FileID] = m
	}
	return meta, rows.Err()
}

// Delete removes the file's metadata. Deleting missing metadata is not an
// error.
func (r *FileMetaRepo) Delete(ctx context.Context, fileID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM file_meta WHERE file_id = ?", fileID)
	if err != nil {
		return fmt.Errorf("failed to delete file metadata: %w", err)
	}
	return nil
}
