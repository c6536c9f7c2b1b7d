// Package llmjson extracts JSON from free-text model output. Models asked
// for JSON frequently wrap it in markdown fences or prose; extraction tries
// a fixed fallback order and a failure is always reported, never treated as
// an empty success.
package llmjson

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// MalformedError reports that no JSON value could be extracted. Raw carries
// the original model output for logging and debugging.
type MalformedError struct {
	Raw string
}

func (e *MalformedError) Error() string {
	return "model did not return valid JSON"
}

var fencedBlock = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)\\s*```")

// Extract returns the first JSON value found in raw, trying in order:
// direct parse, fenced code block parse, then a bracket scan from the first
// '{' or '[' to the last matching close. On failure it returns a
// *MalformedError carrying the raw text.
func Extract(raw string) (json.RawMessage, error) {
	s := strings.TrimSpace(raw)

	if msg, ok := tryParse(s); ok {
		return msg, nil
	}

	if m := fencedBlock.FindStringSubmatch(s); m != nil {
		if msg, ok := tryParse(m[1]); ok {
			return msg, nil
		}
	}

	if candidate := bracketScan(s); candidate != "" {
		if msg, ok := tryParse(candidate); ok {
			return msg, nil
		}
	}

	return nil, &MalformedError{Raw: raw}
}

// ExtractArray extracts a JSON array and decodes it into dst. A top-level
// value that is not an array counts as malformed.
func ExtractArray(raw string, dst any) error {
	msg, err := Extract(raw)
	if err != nil {
		return err
	}
	trimmed := strings.TrimSpace(string(msg))
	if !strings.HasPrefix(trimmed, "[") {
		return &MalformedError{Raw: raw}
	}
	if err := json.Unmarshal(msg, dst); err != nil {
		return fmt.Errorf("failed to decode JSON array: %w", err)
	}
	return nil
}

func tryParse(s string) (json.RawMessage, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return json.RawMessage(s), true
}

// bracketScan returns the span from the first opening brace or bracket to
// the last closing one, the widest candidate for a JSON value embedded in
// prose.
func bracketScan(s string) string {
	objStart := strings.IndexByte(s, '{')
	arrStart := strings.IndexByte(s, '[')

	start := objStart
	if start == -1 || (arrStart != -1 && arrStart < start) {
		start = arrStart
	}
	if start == -1 {
		return ""
	}

	var end int
	if s[start] == '{' {
		end = strings.LastIndexByte(s, '}')
	} else {
		end = strings.LastIndexByte(s, ']')
	}
	if end <= start {
		return ""
	}
	return s[start : end+1]
}
