package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"studylm/internal/contextutil"
	"studylm/internal/rag"
	"studylm/internal/storage"
)

// StudyHandler exposes the chat and study tools of a notebook.
type StudyHandler struct {
	engine   *rag.Engine
	repo     *storage.NotebookRepo
	markdown goldmark.Markdown
}

// NewStudyHandler creates a new StudyHandler.
func NewStudyHandler(engine *rag.Engine, repo *storage.NotebookRepo) *StudyHandler {
	return &StudyHandler{
		engine:   engine,
		repo:     repo,
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

type notebookAskRequest struct {
	Question       string   `json:"question"`
	ChatModel      string   `json:"chat_model,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	MaxTokens      int      `json:"max_tokens,omitempty"`
	IncludeSources []string `json:"include_sources,omitempty"`
}

// Ask handles POST /notebooks/{notebookID}/ask.
func (h *StudyHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req notebookAskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := h.engine.AskNotebook(r.Context(), chi.URLParam(r, "notebookID"), req.Question, rag.ChatOptions{
		Model:          req.ChatModel,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		IncludeSources: req.IncludeSources,
	})
	if err != nil {
		handleDomainError(w, r, err, "Failed to answer question")
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

type summarizeRequest struct {
	Kind           string   `json:"kind,omitempty"`
	ChatModel      string   `json:"chat_model,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	MaxTokens      int      `json:"max_tokens,omitempty"`
	IncludeSources []string `json:"include_sources,omitempty"`
}

// Summarize handles POST /notebooks/{notebookID}/summarize.
func (h *StudyHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	kind := req.Kind
	if kind == "" {
		kind = "overview"
	}
	md, err := h.engine.Summarize(r.Context(), chi.URLParam(r, "notebookID"), kind, rag.ChatOptions{
		Model:          req.ChatModel,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		IncludeSources: req.IncludeSources,
	})
	if err != nil {
		handleDomainError(w, r, err, "Failed to summarize notebook")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"kind": strings.ToLower(kind), "markdown": md})
}

type studyGenerateRequest struct {
	Count          int      `json:"count,omitempty"`
	ChatModel      string   `json:"chat_model,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	MaxTokens      int      `json:"max_tokens,omitempty"`
	IncludeSources []string `json:"include_sources,omitempty"`
}

// Flashcards handles POST /notebooks/{notebookID}/flashcards.
func (h *StudyHandler) Flashcards(w http.ResponseWriter, r *http.Request) {
	var req studyGenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cards, err := h.engine.Flashcards(r.Context(), chi.URLParam(r, "notebookID"), req.Count, rag.ChatOptions{
		Model:          req.ChatModel,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		IncludeSources: req.IncludeSources,
	})
	if err != nil {
		handleDomainError(w, r, err, "Failed to generate flashcards")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(cards), "items": cards})
}

// Quiz handles POST /notebooks/{notebookID}/quiz.
func (h *StudyHandler) Quiz(w http.ResponseWriter, r *http.Request) {
	var req studyGenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	items, err := h.engine.Quiz(r.Context(), chi.URLParam(r, "notebookID"), req.Count, rag.ChatOptions{
		Model:          req.ChatModel,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		IncludeSources: req.IncludeSources,
	})
	if err != nil {
		handleDomainError(w, r, err, "Failed to generate quiz")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(items), "items": items})
}

// GetStudy handles GET /notebooks/{notebookID}/study.
func (h *StudyHandler) GetStudy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "notebookID")
	if _, err := h.repo.Get(r.Context(), id); err != nil {
		handleDomainError(w, r, err, "Failed to load study artifacts")
		return
	}

	study, err := h.repo.Study(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err, "Failed to load study artifacts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"study": study})
}

// ExportMarkdown handles GET /notebooks/{notebookID}/export.md.
func (h *StudyHandler) ExportMarkdown(w http.ResponseWriter, r *http.Request) {
	md, err := h.buildExport(r)
	if err != nil {
		handleDomainError(w, r, err, "Failed to export notebook")
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(md))
}

// ExportHTML handles GET /notebooks/{notebookID}/export.html: the markdown
// export rendered to HTML.
func (h *StudyHandler) ExportHTML(w http.ResponseWriter, r *http.Request) {
	md, err := h.buildExport(r)
	if err != nil {
		handleDomainError(w, r, err, "Failed to export notebook")
		return
	}

	var buf bytes.Buffer
	if err := h.markdown.Convert([]byte(md), &buf); err != nil {
		contextutil.LoggerFromContext(r.Context()).ErrorContext(r.Context(), "failed to render export", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to render export")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *StudyHandler) buildExport(r *http.Request) (string, error) {
	ctx := r.Context()
	id := chi.URLParam(r, "notebookID")

	nb, err := h.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	study, err := h.repo.Study(ctx, id)
	if err != nil {
		return "", err
	}
	return renderExport(nb, study), nil
}

// renderExport assembles the notebook's facts, study artifacts and source
// links into one markdown document.
func renderExport(nb *storage.Notebook, study map[string]storage.StudyArtifact) string {
	var sb strings.Builder
	title := nb.Title
	if title == "" {
		title = "Untitled Notebook"
	}
	fmt.Fprintf(&sb, "# %s\n\nGenerated by StudyLM.", title)

	if len(nb.Facts) > 0 {
		sb.WriteString("\n\n## Facts\n\n")
		for i, f := range nb.Facts {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString("- " + f.Text)
		}
	}

	sections := []struct{ name, kind string }{
		{"Overview", "overview"},
		{"Key Points", "key_points"},
		{"Outline", "outline"},
		{"Glossary", "glossary"},
	}
	for _, sec := range sections {
		artifact, ok := study[sec.kind]
		if !ok {
			continue
		}
		var payload struct {
			Markdown string `json:"markdown"`
		}
		if err := json.Unmarshal(artifact.Payload, &payload); err != nil || payload.Markdown == "" {
			continue
		}
		fmt.Fprintf(&sb, "\n\n## %s\n\n%s", sec.name, strings.TrimSpace(payload.Markdown))
	}

	if artifact, ok := study["flashcards"]; ok {
		var payload struct {
			Items []rag.Flashcard `json:"items"`
		}
		if err := json.Unmarshal(artifact.Payload, &payload); err == nil && len(payload.Items) > 0 {
			sb.WriteString("\n\n## Flashcards\n")
			for i, card := range payload.Items {
				fmt.Fprintf(&sb, "\n%d. Q: %s\n   A: %s\n", i+1, card.Q, card.A)
			}
		}
	}

	if artifact, ok := study["quiz"]; ok {
		var payload struct {
			Items []rag.QuizItem `json:"items"`
		}
		if err := json.Unmarshal(artifact.Payload, &payload); err == nil && len(payload.Items) > 0 {
			sb.WriteString("\n\n## Quiz\n")
			for i, item := range payload.Items {
				fmt.Fprintf(&sb, "\n%d. %s\n", i+1, item.Question)
				for j, opt := range item.Options {
					fmt.Fprintf(&sb, "   - %c. %s\n", 'A'+j, opt)
				}
				if item.Answer >= 0 && item.Answer < len(item.Options) {
					fmt.Fprintf(&sb, "   Answer: %c\n", 'A'+item.Answer)
				}
			}
		}
	}

	if len(nb.Sources) > 0 {
		sb.WriteString("\n\n## Sources\n\n")
		for _, fid := range nb.Sources {
			fmt.Fprintf(&sb, "- %s.pdf (/uploads/%s.pdf)\n", fid, fid)
		}
	}

	return sb.String()
}
