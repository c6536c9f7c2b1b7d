package storage

import "encoding/json"

// Notebook is a collection of sources with author-provided facts and
// per-notebook chat settings. Timestamps are Unix seconds.
type Notebook struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	CreatedAt   float64  `json:"created_at"`
	UpdatedAt   float64  `json:"updated_at"`
	Sources     []string `json:"sources"`
	Facts       []Fact   `json:"facts"`
	Settings    Settings `json:"settings"`
}

// NotebookSummary is the listing shape for notebooks.
type NotebookSummary struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	SourcesCount int     `json:"sources_count"`
	UpdatedAt    float64 `json:"updated_at"`
}

// Fact is an author-provided statement the assistant should consider.
type Fact struct {
	ID   string  `json:"id"`
	Text string  `json:"text"`
	TS   float64 `json:"ts"`
}

// Settings holds per-notebook chat overrides. Nil fields fall back to the
// server defaults.
type Settings struct {
	ChatModel   *string  `json:"chat_model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// ChatMessage is one turn of a notebook conversation. Citations is raw JSON
// because only assistant turns carry them.
type ChatMessage struct {
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	TS        float64         `json:"ts"`
	Citations json.RawMessage `json:"citations,omitempty"`
}

// StudyArtifact is a saved study-tool output keyed by kind
// (overview, outline, glossary, key_points, flashcards, quiz).
type StudyArtifact struct {
	Payload json.RawMessage `json:"payload"`
	TS      float64         `json:"ts"`
}

// FileMeta carries user-editable metadata for an uploaded file.
type FileMeta struct {
	FileID string `json:"file_id"`
	Label  string `json:"label"`
}

// Note is a user note attached to an uploaded file.
type Note struct {
	FileID string  `json:"file_id"`
	Note   string  `json:"note"`
	TS     float64 `json:"ts"`
}
