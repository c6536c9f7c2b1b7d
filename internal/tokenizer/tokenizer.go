// Package tokenizer wraps a byte-pair-encoding tokenizer used to count and
// split text by token budget.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// encodingName is the BPE encoding used for chunk budgeting. It matches the
// tokenizer of the default embedding and chat models.
const encodingName = "cl100k_base"

// Tokenizer counts tokens and splits text into token windows.
type Tokenizer interface {
	// Count returns the number of tokens in text.
	Count(text string) int
	// Split splits text into consecutive windows of at most maxTokens tokens.
	// The last window may be shorter. Splitting an empty string returns nil.
	Split(text string, maxTokens int) []string
}

// Tiktoken is a Tokenizer backed by the cl100k_base BPE encoding.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the cl100k_base encoding.
func NewTiktoken() (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s encoding: %w", encodingName, err)
	}
	return &Tiktoken{enc: enc}, nil
}

// Count returns the number of tokens in text.
func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Split splits text into consecutive windows of at most maxTokens tokens,
// decoding each window back to text.
func (t *Tiktoken) Split(text string, maxTokens int) []string {
	if text == "" || maxTokens <= 0 {
		return nil
	}
	tokens := t.enc.Encode(text, nil, nil)
	var out []string
	for start := 0; start < len(tokens); start += maxTokens {
		end := start + maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		out = append(out, t.enc.Decode(tokens[start:end]))
	}
	return out
}
