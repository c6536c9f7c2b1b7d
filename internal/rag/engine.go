// Package rag answers questions over indexed documents by retrieving
// relevant chunks and prompting a chat model with them.
package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"studylm/internal/contextutil"
	"studylm/internal/llm"
	"studylm/internal/retrieve"
	"studylm/internal/storage"
)

// systemPrompt grounds the model in retrieved context only.
const systemPrompt = "You are a helpful research assistant. Use only the provided context to answer. " +
	"If the answer isn't in the context, say you don't know."

const (
	askTopK     = 6
	previewRune = 240
)

// Embedder turns texts into query vectors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer generates a chat completion from a system and user prompt.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, p llm.ChatParams) (string, error)
}

// NotebookStore is the slice of the records layer the engine needs.
type NotebookStore interface {
	Get(ctx context.Context, id string) (*storage.Notebook, error)
	AppendHistory(ctx context.Context, id string, msg storage.ChatMessage) error
	SaveStudy(ctx context.Context, id, kind string, payload json.RawMessage) error
}

// Options configures engine defaults, taken from server configuration.
type Options struct {
	DefaultChatModel   string
	AllowedChatModels  []string
	DefaultTemperature float64
	UploadsDir         string
}

// Engine provides retrieval-augmented answering and study tools.
type Engine struct {
	embedder  Embedder
	completer Completer
	retriever *retrieve.Retriever
	notebooks NotebookStore
	opts      Options
}

// NewEngine creates a RAG engine.
func NewEngine(embedder Embedder, completer Completer, retriever *retrieve.Retriever, notebooks NotebookStore, opts Options) *Engine {
	if opts.DefaultTemperature == 0 {
		opts.DefaultTemperature = 0.2
	}
	return &Engine{
		embedder:  embedder,
		completer: completer,
		retriever: retriever,
		notebooks: notebooks,
		opts:      opts,
	}
}

// Ask answers a question against a single document.
func (e *Engine) Ask(ctx context.Context, fileID, question string, opts ChatOptions) (Answer, error) {
	logger := contextutil.LoggerFromContext(ctx)
	logger.InfoContext(ctx, "ask started", "file_id", fileID)

	results, err := e.search(ctx, []string{fileID}, question, askTopK)
	if err != nil {
		return Answer{}, err
	}

	userMsg := "Here is some context from the document:\n\n" +
		joinContext(results) +
		fmt.Sprintf("\n\nQ: %s\nA:", question)

	params, err := e.resolveParams(nil, opts, 512)
	if err != nil {
		return Answer{}, err
	}
	answer, err := e.completer.Complete(ctx, systemPrompt, userMsg, params)
	if err != nil {
		return Answer{}, err
	}

	logger.InfoContext(ctx, "ask completed", "file_id", fileID, "chunks_used", len(results))
	return Answer{Answer: answer, Citations: e.citations(results)}, nil
}

// AskNotebook answers a question across all of a notebook's sources and
// records the exchange in the notebook's chat history.
func (e *Engine) AskNotebook(ctx context.Context, notebookID, question string, opts ChatOptions) (Answer, error) {
	logger := contextutil.LoggerFromContext(ctx)

	nb, err := e.notebooks.Get(ctx, notebookID)
	if err != nil {
		return Answer{}, err
	}
	sources := filterSources(nb.Sources, opts.IncludeSources)
	if len(sources) == 0 {
		return Answer{}, ErrNoSources
	}

	results, err := e.search(ctx, sources, question, askTopK)
	if err != nil {
		return Answer{}, err
	}

	sys := systemPrompt
	if facts := factsBlock(nb.Facts); facts != "" {
		sys += "\n\nAdditional notebook facts to consider (author-provided):\n" + facts
	}
	userMsg := "Here is some context from the notebook sources (may include multiple files):\n\n" +
		joinContext(results) +
		fmt.Sprintf("\n\nQ: %s\nA:", question)

	params, err := e.resolveParams(nb, opts, 512)
	if err != nil {
		return Answer{}, err
	}
	answer, err := e.completer.Complete(ctx, sys, userMsg, params)
	if err != nil {
		return Answer{}, err
	}

	citations := e.citations(results)
	e.persistHistory(ctx, notebookID, question, answer, citations)

	logger.InfoContext(ctx, "notebook ask completed",
		"notebook_id", notebookID, "sources", len(sources), "chunks_used", len(results))
	return Answer{Answer: answer, Citations: citations}, nil
}

// search embeds the query and retrieves the top chunks across the sources.
func (e *Engine) search(ctx context.Context, sources []string, query string, topK int) ([]retrieve.Result, error) {
	vectors, err := e.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned for query")
	}
	return e.retriever.Retrieve(ctx, sources, vectors[0], topK)
}

// resolveParams applies the override chain request > notebook settings >
// server defaults, and validates the model against the allow-list.
func (e *Engine) resolveParams(nb *storage.Notebook, opts ChatOptions, defaultMaxTokens int) (llm.ChatParams, error) {
	model := opts.Model
	if model == "" && nb != nil && nb.Settings.ChatModel != nil {
		model = *nb.Settings.ChatModel
	}
	if model == "" {
		model = e.opts.DefaultChatModel
	}
	if !e.modelAllowed(model) {
		return llm.ChatParams{}, fmt.Errorf("%w: %s", ErrModelNotAllowed, model)
	}

	temperature := e.opts.DefaultTemperature
	if nb != nil && nb.Settings.Temperature != nil {
		temperature = *nb.Settings.Temperature
	}
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}

	maxTokens := opts.MaxTokens
	if maxTokens == 0 && nb != nil && nb.Settings.MaxTokens != nil {
		maxTokens = *nb.Settings.MaxTokens
	}
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	return llm.ChatParams{
		Model:       model,
		Temperature: float32(temperature),
		MaxTokens:   maxTokens,
	}, nil
}

func (e *Engine) modelAllowed(model string) bool {
	if len(e.opts.AllowedChatModels) == 0 {
		return true
	}
	for _, allowed := range e.opts.AllowedChatModels {
		if model == allowed {
			return true
		}
	}
	return false
}

// citations maps retrieval results to source pointers with short previews.
func (e *Engine) citations(results []retrieve.Result) []Citation {
	citations := make([]Citation, 0, len(results))
	for _, res := range results {
		citations = append(citations, Citation{
			FileID:    res.DocumentID,
			PageStart: res.Chunk.PageStart,
			PageEnd:   res.Chunk.PageEnd,
			Preview:   preview(res.Chunk.Text),
			URL:       e.sourceURL(res.DocumentID, res.Chunk.PageStart),
		})
	}
	return citations
}

// sourceURL returns a servable URL for the uploaded source, preferring the
// PDF with a page anchor, then image and text variants.
func (e *Engine) sourceURL(fileID string, pageStart *int) string {
	pdf := filepath.Join(e.opts.UploadsDir, fileID+".pdf")
	if _, err := os.Stat(pdf); err == nil {
		if pageStart != nil && *pageStart > 0 {
			return fmt.Sprintf("/uploads/%s.pdf#page=%d", fileID, *pageStart)
		}
		return fmt.Sprintf("/uploads/%s.pdf", fileID)
	}
	for _, ext := range []string{"png", "jpg", "txt"} {
		p := filepath.Join(e.opts.UploadsDir, fileID+"."+ext)
		if _, err := os.Stat(p); err == nil {
			return fmt.Sprintf("/uploads/%s.%s", fileID, ext)
		}
	}
	return ""
}

func (e *Engine) persistHistory(ctx context.Context, notebookID, question, answer string, citations []Citation) {
	logger := contextutil.LoggerFromContext(ctx)
	now := float64(time.Now().UnixNano()) / float64(time.Second)

	if err := e.notebooks.AppendHistory(ctx, notebookID, storage.ChatMessage{
		Role: "user", Content: question, TS: now,
	}); err != nil {
		logger.ErrorContext(ctx, "failed to persist user turn", "notebook_id", notebookID, "error", err)
		return
	}

	raw, err := json.Marshal(citations)
	if err != nil {
		raw = nil
	}
	if err := e.notebooks.AppendHistory(ctx, notebookID, storage.ChatMessage{
		Role: "assistant", Content: answer, TS: now, Citations: raw,
	}); err != nil {
		logger.ErrorContext(ctx, "failed to persist assistant turn", "notebook_id", notebookID, "error", err)
	}
}

func filterSources(sources, include []string) []string {
	if len(include) == 0 {
		return sources
	}
	allow := make(map[string]bool, len(include))
	for _, fid := range include {
		allow[fid] = true
	}
	filtered := make([]string, 0, len(sources))
	for _, fid := range sources {
		if allow[fid] {
			filtered = append(filtered, fid)
		}
	}
	return filtered
}

func factsBlock(facts []storage.Fact) string {
	if len(facts) == 0 {
		return ""
	}
	lines := make([]string, 0, len(facts))
	for _, f := range facts {
		lines = append(lines, "- "+f.Text)
	}
	return strings.Join(lines, "\n")
}

func joinContext(results []retrieve.Result) string {
	texts := make([]string, 0, len(results))
	for _, res := range results {
		texts = append(texts, res.Chunk.Text)
	}
	return strings.Join(texts, "\n\n")
}

func preview(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) > previewRune {
		runes = runes[:previewRune]
	}
	return string(runes)
}
