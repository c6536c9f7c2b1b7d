package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"studylm/internal/contextutil"
	"studylm/internal/llmjson"
	"studylm/internal/retrieve"
	"studylm/internal/storage"
)

const (
	summarizeTopK = 10
	studyTopK     = 12

	maxFlashcards = 40
	maxQuizItems  = 30
)

// Summarize generates a markdown study summary of the requested kind and
// saves it as the notebook's study artifact for that kind.
func (e *Engine) Summarize(ctx context.Context, notebookID, kind string, opts ChatOptions) (string, error) {
	kind = strings.ToLower(kind)
	if kind == "" {
		kind = "overview"
	}
	hint, ok := SummaryKinds[kind]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidKind, kind)
	}

	nb, results, err := e.gather(ctx, notebookID, hint, summarizeTopK, opts)
	if err != nil {
		return "", err
	}

	sys := systemPrompt
	if facts := factsBlock(nb.Facts); facts != "" {
		sys += "\n\nAdditional notebook facts to consider (author-provided):\n" + facts
	}
	userMsg := fmt.Sprintf("Task: %s\n\nUse only the provided context from the notebook sources.\n\n%s\n\nRespond in valid Markdown.",
		hint, joinContext(results))

	params, err := e.resolveParams(nb, opts, 800)
	if err != nil {
		return "", err
	}
	md, err := e.completer.Complete(ctx, sys, userMsg, params)
	if err != nil {
		return "", err
	}

	e.saveStudy(ctx, notebookID, kind, map[string]any{"markdown": md})
	return md, nil
}

// Flashcards generates count question/answer cards from the notebook's
// sources and saves them as a study artifact.
func (e *Engine) Flashcards(ctx context.Context, notebookID string, count int, opts ChatOptions) ([]Flashcard, error) {
	count = clamp(count, 10, maxFlashcards)

	nb, results, err := e.gather(ctx, notebookID, "Generate study flashcards from these sources.", studyTopK, opts)
	if err != nil {
		return nil, err
	}

	sys := "You create high-quality flashcards. Respond ONLY with a JSON array of objects with keys 'q' and 'a'."
	if facts := factsBlock(nb.Facts); facts != "" {
		sys += "\nConsider these notebook facts as additional guidance:\n" + facts
	}
	userMsg := fmt.Sprintf("Create %d flashcards from the following context. Keep questions concise and answers accurate.\n\nContext:\n\n%s\n\nReturn ONLY JSON.",
		count, joinContext(results))

	params, err := e.resolveParams(nb, opts, 900)
	if err != nil {
		return nil, err
	}
	raw, err := e.completer.Complete(ctx, sys, userMsg, params)
	if err != nil {
		return nil, err
	}

	var cards []Flashcard
	if err := llmjson.ExtractArray(raw, &cards); err != nil {
		return nil, err
	}

	e.saveStudy(ctx, notebookID, "flashcards", map[string]any{"items": cards})
	return cards, nil
}

// Quiz generates count multiple-choice questions from the notebook's
// sources and saves them as a study artifact.
func (e *Engine) Quiz(ctx context.Context, notebookID string, count int, opts ChatOptions) ([]QuizItem, error) {
	count = clamp(count, 8, maxQuizItems)

	nb, results, err := e.gather(ctx, notebookID, "Generate a multiple-choice quiz from these sources.", studyTopK, opts)
	if err != nil {
		return nil, err
	}

	sys := "You create fair multiple-choice quizzes. Return ONLY JSON with an array of items," +
		" each item having: 'question' (str), 'options' (array of 4-5 strings), 'answer' (index of correct option)."
	if facts := factsBlock(nb.Facts); facts != "" {
		sys += "\nConsider these notebook facts as additional guidance:\n" + facts
	}
	userMsg := fmt.Sprintf("Create %d MCQ items from the following context. Keep options unambiguous.\n\nContext:\n\n%s\n\nReturn ONLY JSON.",
		count, joinContext(results))

	params, err := e.resolveParams(nb, opts, 1200)
	if err != nil {
		return nil, err
	}
	raw, err := e.completer.Complete(ctx, sys, userMsg, params)
	if err != nil {
		return nil, err
	}

	var items []QuizItem
	if err := llmjson.ExtractArray(raw, &items); err != nil {
		return nil, err
	}

	e.saveStudy(ctx, notebookID, "quiz", map[string]any{"items": items})
	return items, nil
}

// gather loads the notebook and retrieves top chunks across its sources
// using the hint as the query.
func (e *Engine) gather(ctx context.Context, notebookID, hint string, topK int, opts ChatOptions) (*storage.Notebook, []retrieve.Result, error) {
	nb, err := e.notebooks.Get(ctx, notebookID)
	if err != nil {
		return nil, nil, err
	}
	sources := filterSources(nb.Sources, opts.IncludeSources)
	if len(sources) == 0 {
		return nil, nil, ErrNoSources
	}
	results, err := e.search(ctx, sources, hint, topK)
	if err != nil {
		return nil, nil, err
	}
	return nb, results, nil
}

func (e *Engine) saveStudy(ctx context.Context, notebookID, kind string, payload map[string]any) {
	logger := contextutil.LoggerFromContext(ctx)
	payload["ts"] = float64(time.Now().UnixNano()) / float64(time.Second)

	raw, err := json.Marshal(payload)
	if err != nil {
		logger.ErrorContext(ctx, "failed to marshal study artifact", "notebook_id", notebookID, "kind", kind, "error", err)
		return
	}
	if err := e.notebooks.SaveStudy(ctx, notebookID, kind, raw); err != nil {
		logger.ErrorContext(ctx, "failed to save study artifact", "notebook_id", notebookID, "kind", kind, "error", err)
	}
}

func clamp(n, fallback, max int) int {
	if n == 0 {
		n = fallback
	}
	if n < 1 {
		n = 1
	}
	if n > max {
		n = max
	}
	return n
}
