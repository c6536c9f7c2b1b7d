package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// NotebookRepo provides methods for notebook operations.
type NotebookRepo struct {
	db *sql.DB
}

// NewNotebookRepo creates a new NotebookRepo.
func NewNotebookRepo(db *sql.DB) *NotebookRepo {
	return &NotebookRepo{db: db}
}

func nowTS() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

// Create inserts a new notebook. An empty title becomes "Untitled".
func (r *NotebookRepo) Create(ctx context.Context, title, description string) (Notebook, error) {
	if title == "" {
		title = "Untitled"
	}
	nb := Notebook{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		CreatedAt:   nowTS(),
		Sources:     []string{},
		Facts:       []Fact{},
	}
	nb.UpdatedAt = nb.CreatedAt

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO notebooks (id, title, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		nb.ID, nb.Title, nb.Description, nb.CreatedAt, nb.UpdatedAt,
	)
	if err != nil {
		return Notebook{}, fmt.Errorf("failed to insert notebook: %w", err)
	}
	return nb, nil
}

// Get returns the notebook with its sources, facts and settings.
// Returns ErrNotFound when no notebook has the given id.
func (r *NotebookRepo) Get(ctx context.Context, id string) (*Notebook, error) {
	var nb Notebook
	err := r.db.QueryRowContext(ctx,
		"SELECT id, title, description, chat_model, temperature, max_tokens, created_at, updated_at FROM notebooks WHERE id = ?",
		id,
	).Scan(&nb.ID, &nb.Title, &nb.Description, &nb.Settings.ChatModel, &nb.Settings.Temperature, &nb.Settings.MaxTokens, &nb.CreatedAt, &nb.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query notebook: %w", err)
	}

	nb.Sources, err = r.Sources(ctx, id)
	if err != nil {
		return nil, err
	}
	nb.Facts, err = r.Facts(ctx, id)
	if err != nil {
		return nil, err
	}
	return &nb, nil
}

// List returns summaries of all notebooks, most recently updated first.
func (r *NotebookRepo) List(ctx context.Context) ([]NotebookSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT n.id, n.title, n.updated_at, COUNT(s.file_id)
		 FROM notebooks n
		 LEFT JOIN notebook_sources s ON s.notebook_id = n.id
		 GROUP BY n.id
		 ORDER BY n.updated_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notebooks: %w", err)
	}
	defer rows.Close()

	summaries := []NotebookSummary{}
	for rows.Next() {
		var s NotebookSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.UpdatedAt, &s.SourcesCount); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Update patches the title and/or description. Nil fields are left unchanged.
func (r *NotebookRepo) Update(ctx context.Context, id string, title, description *string) error {
	if err := r.requireNotebook(ctx, id); err != nil {
		return err
	}
	if title != nil {
		if _, err := r.db.ExecContext(ctx, "UPDATE notebooks SET title = ? WHERE id = ?", *title, id); err != nil {
			return fmt.Errorf("failed to update notebook: %w", err)
		}
	}
	if description != nil {
		if _, err := r.db.ExecContext(ctx, "UPDATE notebooks SET description = ? WHERE id = ?", *description, id); err != nil {
			return fmt.Errorf("failed to update notebook: %w", err)
		}
	}
	return r.touch(ctx, id)
}

// Delete removes the notebook and everything attached to it. Deleting a
// missing notebook is not an error.
func (r *NotebookRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM notebooks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete notebook: %w", err)
	}
	return nil
}

// AttachSource links a file to the notebook. Attaching the same file twice
// is a no-op. Returns the updated source list.
func (r *NotebookRepo) AttachSource(ctx context.Context, id, fileID string) ([]string, error) {
	if err := r.requireNotebook(ctx, id); err != nil {
		return nil, err
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO notebook_sources (notebook_id, file_id, attached_at) VALUES (?, ?, ?)",
		id, fileID, nowTS(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to attach source: %w", err)
	}
	if err := r.touch(ctx, id); err != nil {
		return nil, err
	}
	return r.Sources(ctx, id)
}

// DetachSource unlinks a file from the notebook and returns the updated
// source list.
func (r *NotebookRepo) DetachSource(ctx context.Context, id, fileID string) ([]string, error) {
	if err := r.requireNotebook(ctx, id); err != nil {
		return nil, err
	}
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM notebook_sources WHERE notebook_id = ? AND file_id = ?",
		id, fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to detach source: %w", err)
	}
	if err := r.touch(ctx, id); err != nil {
		return nil, err
	}
	return r.Sources(ctx, id)
}

// Sources returns the notebook's file ids in attachment order.
func (r *NotebookRepo) Sources(ctx context.Context, id string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT file_id FROM notebook_sources WHERE notebook_id = ? ORDER BY attached_at, file_id",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	sources := []string{}
	for rows.Next() {
		var fid string
		if err := rows.Scan(&fid); err != nil {
			return nil, err
		}
		sources = append(sources, fid)
	}
	return sources, rows.Err()
}

// AddFact records an author-provided fact on the notebook.
func (r *NotebookRepo) AddFact(ctx context.Context, id, text string) (Fact, error) {
	if err := r.requireNotebook(ctx, id); err != nil {
		return Fact{}, err
	}
	fact := Fact{ID: uuid.New().String(), Text: text, TS: nowTS()}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO notebook_facts (id, notebook_id, text, ts) VALUES (?, ?, ?, ?)",
		fact.ID, id, fact.Text, fact.TS,
	)
	if err != nil {
		return Fact{}, fmt.Errorf("failed to add fact: %w", err)
	}
	return fact, r.touch(ctx, id)
}

// RemoveFact deletes a fact from the notebook.
func (r *NotebookRepo) RemoveFact(ctx context.Context, id, factID string) error {
	if err := r.requireNotebook(ctx, id); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM notebook_facts WHERE notebook_id = ? AND id = ?",
		id, factID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove fact: %w", err)
	}
	return r.touch(ctx, id)
}

// Facts returns the notebook's facts in insertion order.
func (r *NotebookRepo) Facts(ctx context.Context, id string) ([]Fact, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, text, ts FROM notebook_facts WHERE notebook_id = ? ORDER BY ts, id",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query facts: %w", err)
	}
	defer rows.Close()

	facts := []Fact{}
	for rows.Next() {
		var f Fact
		if err := rows.Scan(&f.ID, &f.Text, &f.TS); err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// AppendHistory records one chat turn.
func (r *NotebookRepo) AppendHistory(ctx context.Context, id string, msg ChatMessage) error {
	var citations any
	if len(msg.Citations) > 0 {
		citations = string(msg.Citations)
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO chat_messages (notebook_id, role, content, citations, ts) VALUES (?, ?, ?, ?, ?)",
		id, msg.Role, msg.Content, citations, msg.TS,
	)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// History returns the notebook's chat turns in order.
func (r *NotebookRepo) History(ctx context.Context, id string) ([]ChatMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT role, content, citations, ts FROM chat_messages WHERE notebook_id = ? ORDER BY id",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	history := []ChatMessage{}
	for rows.Next() {
		var msg ChatMessage
		var citations sql.NullString
		if err := rows.Scan(&msg.Role, &msg.Content, &citations, &msg.TS); err != nil {
			return nil, err
		}
		if citations.Valid {
			msg.Citations = json.RawMessage(citations.String)
		}
		history = append(history, msg)
	}
	return history, rows.Err()
}

// ClearHistory removes all chat turns from the notebook.
func (r *NotebookRepo) ClearHistory(ctx context.Context, id string) error {
	if err := r.requireNotebook(ctx, id); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, "DELETE FROM chat_messages WHERE notebook_id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return r.touch(ctx, id)
}

// UpdateSettings patches the notebook's chat overrides. Nil fields are left
// unchanged. Returns the resulting settings.
func (r *NotebookRepo) UpdateSettings(ctx context.Context, id string, patch Settings) (Settings, error) {
	if err := r.requireNotebook(ctx, id); err != nil {
		return Settings{}, err
	}
	if patch.ChatModel != nil {
		if _, err := r.db.ExecContext(ctx, "UPDATE notebooks SET chat_model = ? WHERE id = ?", *patch.ChatModel, id); err != nil {
			return Settings{}, fmt.Errorf("failed to update settings: %w", err)
		}
	}
	if patch.Temperature != nil {
		if _, err := r.db.ExecContext(ctx, "UPDATE notebooks SET temperature = ? WHERE id = ?", *patch.Temperature, id); err != nil {
			return Settings{}, fmt.Errorf("failed to update settings: %w", err)
		}
	}
	if patch.MaxTokens != nil {
		if _, err := r.db.ExecContext(ctx, "UPDATE notebooks SET max_tokens = ? WHERE id = ?", *patch.MaxTokens, id); err != nil {
			return Settings{}, fmt.Errorf("failed to update settings: %w", err)
		}
	}
	if err := r.touch(ctx, id); err != nil {
		return Settings{}, err
	}

	var settings Settings
	err := r.db.QueryRowContext(ctx,
		"SELECT chat_model, temperature, max_tokens FROM notebooks WHERE id = ?", id,
	).Scan(&settings.ChatModel, &settings.Temperature, &settings.MaxTokens)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to query settings: %w", err)
	}
	return settings, nil
}

// SaveStudy upserts a study-tool artifact under its kind.
func (r *NotebookRepo) SaveStudy(ctx context.Context, id, kind string, payload json.RawMessage) error {
	if err := r.requireNotebook(ctx, id); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO study_artifacts (notebook_id, kind, payload, ts) VALUES (?, ?, ?, ?)
		 ON CONFLICT (notebook_id, kind) DO UPDATE SET payload = excluded.payload, ts = excluded.ts`,
		id, kind, string(payload), nowTS(),
	)
	if err != nil {
		return fmt.Errorf("failed to save study artifact: %w", err)
	}
	return r.touch(ctx, id)
}

// Study returns all saved study artifacts keyed by kind.
func (r *NotebookRepo) Study(ctx context.Context, id string) (map[string]StudyArtifact, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT kind, payload, ts FROM study_artifacts WHERE notebook_id = ?",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query study artifacts: %w", err)
	}
	defer rows.Close()

	study := map[string]StudyArtifact{}
	for rows.Next() {
		var kind, payload string
		var ts float64
		if err := rows.Scan(&kind, &payload, &ts); err != nil {
			return nil, err
		}
		study[kind] = StudyArtifact{Payload: json.RawMessage(payload), TS: ts}
	}
	return study, rows.Err()
}

func (r *NotebookRepo) requireNotebook(ctx context.Context, id string) error {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM notebooks WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to query notebook: %w", err)
	}
	return nil
}

func (r *NotebookRepo) touch(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE notebooks SET updated_at = ? WHERE id = ?", nowTS(), id)
	if err != nil {
		return fmt.Errorf("failed to touch notebook: %w", err)
	}
	return nil
}
