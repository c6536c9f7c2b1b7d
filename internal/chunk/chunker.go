// Package chunk splits extracted pages into token-bounded, paragraph-aware
// chunks, each tagged with the page range it covers.
package chunk

import (
	"strings"

	"studylm/internal/document"
	"studylm/internal/tokenizer"
)

// Chunker splits page text into chunks of at most MaxTokens tokens.
// Chunk boundaries are deterministic for identical input and configuration.
type Chunker struct {
	tok       tokenizer.Tokenizer
	maxTokens int
}

// New creates a Chunker with the given tokenizer and token budget.
func New(tok tokenizer.Tokenizer, maxTokens int) *Chunker {
	return &Chunker{tok: tok, maxTokens: maxTokens}
}

// Chunk processes pages in order and returns the chunk sequence.
//
// Within a page, text splits on blank-line boundaries into paragraphs; a page
// with no blank lines is one paragraph. Paragraphs accumulate into a buffer
// until adding one would exceed the token budget, at which point the buffer is
// flushed. A paragraph that alone exceeds the budget is hard-split into
// token windows of exactly the budget (last window shorter), each emitted as
// its own single-page chunk.
func (c *Chunker) Chunk(pages []document.Page) []document.Chunk {
	var chunks []document.Chunk

	var current strings.Builder
	var pageStart, pageEnd *int

	flush := func() {
		if current.Len() == 0 {
			return
		}
		text := strings.TrimSpace(current.String())
		if text != "" {
			chunks = append(chunks, document.Chunk{
				Text:      text,
				PageStart: pageStart,
				PageEnd:   pageEnd,
			})
		}
		current.Reset()
		pageStart, pageEnd = nil, nil
	}

	for _, page := range pages {
		pageNo := page.Number

		for _, para := range splitParagraphs(page.Text) {
			paraTokens := c.tok.Count(para)

			if paraTokens > c.maxTokens {
				// Oversized paragraph: flush whatever is buffered, then emit
				// hard-split token windows as single-page chunks.
				flush()
				for _, part := range c.tok.Split(para, c.maxTokens) {
					part = strings.TrimSpace(part)
					if part == "" {
						continue
					}
					start, end := pageNo, pageNo
					chunks = append(chunks, document.Chunk{
						Text:      part,
						PageStart: &start,
						PageEnd:   &end,
					})
				}
				continue
			}

			currentTokens := 0
			if current.Len() > 0 {
				currentTokens = c.tok.Count(current.String())
			}

			if currentTokens+paraTokens > c.maxTokens {
				flush()
				current.WriteString(para)
				start, end := pageNo, pageNo
				pageStart, pageEnd = &start, &end
				continue
			}

			if current.Len() == 0 {
				current.WriteString(para)
				start, end := pageNo, pageNo
				pageStart, pageEnd = &start, &end
			} else {
				current.WriteString("\n\n")
				current.WriteString(para)
				// Page ranges only grow forward.
				if pageEnd == nil || *pageEnd < pageNo {
					end := pageNo
					pageEnd = &end
				}
			}
		}
	}

	flush()
	return chunks
}

// splitParagraphs splits page text on blank-line boundaries, dropping
// whitespace-only paragraphs. A page without blank lines (or with only
// whitespace paragraphs but non-empty text) is treated as one paragraph.
func splitParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	var out []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 && strings.TrimSpace(text) != "" {
		out = []string{text}
	}
	return out
}
