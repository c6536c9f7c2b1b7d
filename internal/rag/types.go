package rag

import "errors"

var (
	// ErrNoSources is returned when a notebook operation has no sources to
	// search, either because none are attached or the include filter
	// excluded them all.
	ErrNoSources = errors.New("notebook has no sources")
	// ErrInvalidKind is returned for an unknown summary kind.
	ErrInvalidKind = errors.New("invalid summary kind")
	// ErrModelNotAllowed is returned when a requested chat model is not in
	// the configured allow-list.
	ErrModelNotAllowed = errors.New("chat model not allowed")
)

// ChatOptions carries per-request overrides for chat-backed operations.
// Zero values fall back to notebook settings, then server defaults.
type ChatOptions struct {
	Model          string
	Temperature    *float64
	MaxTokens      int
	IncludeSources []string
}

// Citation points an answer back at its source pages.
type Citation struct {
	FileID    string `json:"file_id"`
	PageStart *int   `json:"page_start"`
	PageEnd   *int   `json:"page_end"`
	Preview   string `json:"preview"`
	URL       string `json:"url,omitempty"`
}

// Answer is a generated response with its supporting citations.
type Answer struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
}

// Flashcard is a question/answer study card.
type Flashcard struct {
	Q string `json:"q"`
	A string `json:"a"`
}

// QuizItem is one multiple-choice question. Answer is the index of the
// correct option.
type QuizItem struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   int      `json:"answer"`
}

// SummaryKinds are the accepted kinds for Summarize.
var SummaryKinds = map[string]string{
	"overview":   "Provide a comprehensive summary of the notebook sources.",
	"outline":    "Create a structured outline covering main sections and subtopics.",
	"glossary":   "Create a glossary of key terms with concise definitions.",
	"key_points": "List the most important key points and takeaways.",
}
