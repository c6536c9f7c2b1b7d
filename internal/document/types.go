// Package document defines the value types shared by the ingestion and
// retrieval pipeline: pages produced by extraction and token-bounded chunks
// produced by chunking.
package document

import (
	"fmt"
	"strings"
)

// Page is one page of extracted source text. Pages are ephemeral: they exist
// only between extraction and chunking.
type Page struct {
	Number int    // 1-based page number
	Text   string // raw extracted text, may be empty for scanned pages
}

// NewPage returns a Page, rejecting non-positive page numbers.
func NewPage(number int, text string) (Page, error) {
	if number < 1 {
		return Page{}, fmt.Errorf("page number must be positive, got %d", number)
	}
	return Page{Number: number, Text: text}, nil
}

// Chunk is a token-bounded span of document text tagged with the page range
// it came from. The JSON field names match the on-disk chunk artifacts.
type Chunk struct {
	Text      string `json:"text"`
	PageStart *int   `json:"page_start"`
	PageEnd   *int   `json:"page_end"`
}

// NewChunk builds a chunk covering [pageStart, pageEnd] and validates it.
func NewChunk(text string, pageStart, pageEnd *int) (Chunk, error) {
	c := Chunk{Text: text, PageStart: pageStart, PageEnd: pageEnd}
	if err := c.Validate(); err != nil {
		return Chunk{}, err
	}
	return c, nil
}

// Validate checks the chunk invariants: non-empty trimmed text and an ordered
// page range when both endpoints are present.
func (c Chunk) Validate() error {
	if strings.TrimSpace(c.Text) == "" {
		return fmt.Errorf("chunk text is empty")
	}
	if c.PageStart != nil && *c.PageStart < 1 {
		return fmt.Errorf("page_start must be positive, got %d", *c.PageStart)
	}
	if c.PageEnd != nil && *c.PageEnd < 1 {
		return fmt.Errorf("page_end must be positive, got %d", *c.PageEnd)
	}
	if c.PageStart != nil && c.PageEnd != nil && *c.PageStart > *c.PageEnd {
		return fmt.Errorf("page_start %d greater than page_end %d", *c.PageStart, *c.PageEnd)
	}
	return nil
}

// PageRef formats the chunk's page range for citations, e.g. "3" or "3-5".
// Returns "" when no page information is available.
func (c Chunk) PageRef() string {
	switch {
	case c.PageStart == nil:
		return ""
	case c.PageEnd == nil || *c.PageStart == *c.PageEnd:
		return fmt.Sprintf("%d", *c.PageStart)
	default:
		return fmt.Sprintf("%d-%d", *c.PageStart, *c.PageEnd)
	}
}
