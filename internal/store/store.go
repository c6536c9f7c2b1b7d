// Package store persists per-document artifacts on the filesystem: the
// serialized vector index, the ordered chunk metadata, the processing stage
// marker, and an optional error marker. Document identifiers are assigned
// once at ingestion and never reused, so concurrent operations always target
// disjoint keys.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"studylm/internal/document"
	"studylm/internal/vectorindex"
)

// ErrIndexNotFound is returned when no index artifact exists for a document.
// Callers treat it as "not ready yet", distinct from extraction or upstream
// failures.
var ErrIndexNotFound = errors.New("index not found")

// Stage is the persisted processing stage of a document ingestion.
type Stage string

const (
	StageParsing   Stage = "parsing"
	StageEmbedding Stage = "embedding"
	StageDone      Stage = "done"
	StageError     Stage = "error"
	// StageUnknown means no stage marker has been recorded yet.
	StageUnknown Stage = ""
)

// Store maps document identifiers to their on-disk artifacts.
type Store struct {
	dir string
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create vector store directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) indexPath(id string) string  { return filepath.Join(s.dir, id+".index") }
func (s *Store) chunksPath(id string) string { return filepath.Join(s.dir, id+"_chunks.json") }
func (s *Store) stagePath(id string) string  { return filepath.Join(s.dir, id+".stage.txt") }
func (s *Store) errorPath(id string) string  { return filepath.Join(s.dir, id+".error.txt") }

// SaveIndex writes the serialized index artifact for id.
func (s *Store) SaveIndex(id string, idx *vectorindex.Flat) error {
	f, err := os.Create(s.indexPath(id))
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	if err := idx.WriteTo(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to flush index file: %w", err)
	}
	return nil
}

// LoadIndex reads the index artifact for id. Returns ErrIndexNotFound when no
// artifact exists.
func (s *Store) LoadIndex(id string) (*vectorindex.Flat, error) {
	f, err := os.Open(s.indexPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, id)
		}
		return nil, fmt.Errorf("failed to open index file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return vectorindex.Read(f)
}

// SaveChunks writes the ordered chunk metadata for id. Chunk i in the file
// corresponds to row i of the index.
func (s *Store) SaveChunks(id string, chunks []document.Chunk) error {
	data, err := json.MarshalIndent(chunks, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal chunks: %w", err)
	}
	if err := os.WriteFile(s.chunksPath(id), data, 0o644); err != nil {
		return fmt.Errorf("failed to write chunks file: %w", err)
	}
	return nil
}

// LoadChunks reads the ordered chunk metadata for id.
func (s *Store) LoadChunks(id string) ([]document.Chunk, error) {
	data, err := os.ReadFile(s.chunksPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: chunks for %s", ErrIndexNotFound, id)
		}
		return nil, fmt.Errorf("failed to read chunks file: %w", err)
	}
	var chunks []document.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chunks: %w", err)
	}
	return chunks, nil
}

// HasChunks reports whether a chunk artifact exists for id.
func (s *Store) HasChunks(id string) bool {
	_, err := os.Stat(s.chunksPath(id))
	return err == nil
}

// WriteStage overwrites the stage marker for id.
func (s *Store) WriteStage(id string, stage Stage) error {
	if err := os.WriteFile(s.stagePath(id), []byte(stage), 0o644); err != nil {
		return fmt.Errorf("failed to write stage marker: %w", err)
	}
	return nil
}

// ReadStage returns the stage marker for id. A missing marker is not an
// error; it reads as StageUnknown so status lookups succeed before any
// artifact is written.
func (s *Store) ReadStage(id string) (Stage, error) {
	data, err := os.ReadFile(s.stagePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return StageUnknown, nil
		}
		return StageUnknown, fmt.Errorf("failed to read stage marker: %w", err)
	}
	return Stage(strings.TrimSpace(string(data))), nil
}

// WriteError records the error message for a failed ingestion.
func (s *Store) WriteError(id string, msg string) error {
	if err := os.WriteFile(s.errorPath(id), []byte(msg), 0o644); err != nil {
		return fmt.Errorf("failed to write error marker: %w", err)
	}
	return nil
}

// ReadError returns the recorded error message for id, or "" when none exists.
func (s *Store) ReadError(id string) (string, error) {
	data, err := os.ReadFile(s.errorPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read error marker: %w", err)
	}
	return string(data), nil
}

// Ready reports whether both the index and chunk artifacts exist for id.
func (s *Store) Ready(id string) bool {
	if _, err := os.Stat(s.indexPath(id)); err != nil {
		return false
	}
	return s.HasChunks(id)
}

// Delete removes all artifacts for id. Missing artifacts are not an error.
func (s *Store) Delete(id string) error {
	var firstErr error
	for _, path := range []string{
		s.indexPath(id),
		s.chunksPath(id),
		s.stagePath(id),
		s.errorPath(id),
	} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to remove %s: %w", path, err)
			}
		}
	}
	return firstErr
}
