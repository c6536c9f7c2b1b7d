package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"studylm/internal/storage"
)

// NotebookHandler manages notebook records: CRUD, sources, facts, chat
// history and settings.
type NotebookHandler struct {
	repo *storage.NotebookRepo
}

// NewNotebookHandler creates a new NotebookHandler.
func NewNotebookHandler(repo *storage.NotebookRepo) *NotebookHandler {
	return &NotebookHandler{repo: repo}
}

type notebookCreateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Create handles POST /notebooks.
func (h *NotebookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req notebookCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	nb, err := h.repo.Create(r.Context(), strings.TrimSpace(req.Title), req.Description)
	if err != nil {
		handleDomainError(w, r, err, "Failed to create notebook")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": nb.ID})
}

// List handles GET /notebooks.
func (h *NotebookHandler) List(w http.ResponseWriter, r *http.Request) {
	notebooks, err := h.repo.List(r.Context())
	if err != nil {
		handleDomainError(w, r, err, "Failed to list notebooks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notebooks": notebooks})
}

// Get handles GET /notebooks/{notebookID}: the notebook with its chat
// history and study artifacts.
func (h *NotebookHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "notebookID")

	nb, err := h.repo.Get(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err, "Failed to load notebook")
		return
	}
	history, err := h.repo.History(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err, "Failed to load notebook")
		return
	}
	study, err := h.repo.Study(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err, "Failed to load notebook")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":           nb.ID,
		"title":        nb.Title,
		"description":  nb.Description,
		"created_at":   nb.CreatedAt,
		"updated_at":   nb.UpdatedAt,
		"sources":      nb.Sources,
		"facts":        nb.Facts,
		"settings":     nb.Settings,
		"chat_history": history,
		"study":        study,
	})
}

type notebookPatchRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// Patch handles PATCH /notebooks/{notebookID}.
func (h *NotebookHandler) Patch(w http.ResponseWriter, r *http.Request) {
	var req notebookPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.repo.Update(r.Context(), chi.URLParam(r, "notebookID"), req.Title, req.Description); err != nil {
		handleDomainError(w, r, err, "Failed to update notebook")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Updated"})
}

// Delete handles DELETE /notebooks/{notebookID}.
func (h *NotebookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Delete(r.Context(), chi.URLParam(r, "notebookID")); err != nil {
		handleDomainError(w, r, err, "Failed to delete notebook")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Deleted"})
}

type sourceAttachRequest struct {
	FileID string `json:"file_id"`
}

// AttachSource handles POST /notebooks/{notebookID}/sources.
func (h *NotebookHandler) AttachSource(w http.ResponseWriter, r *http.Request) {
	var req sourceAttachRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.FileID == "" {
		writeError(w, http.StatusBadRequest, "file_id is required")
		return
	}

	sources, err := h.repo.AttachSource(r.Context(), chi.URLParam(r, "notebookID"), req.FileID)
	if err != nil {
		handleDomainError(w, r, err, "Failed to attach source")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Attached", "sources": sources})
}

// DetachSource handles DELETE /notebooks/{notebookID}/sources/{fileID}.
func (h *NotebookHandler) DetachSource(w http.ResponseWriter, r *http.Request) {
	sources, err := h.repo.DetachSource(r.Context(), chi.URLParam(r, "notebookID"), chi.URLParam(r, "fileID"))
	if err != nil {
		handleDomainError(w, r, err, "Failed to detach source")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Detached", "sources": sources})
}

type factCreateRequest struct {
	Text string `json:"text"`
}

// AddFact handles POST /notebooks/{notebookID}/facts.
func (h *NotebookHandler) AddFact(w http.ResponseWriter, r *http.Request) {
	var req factCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	fact, err := h.repo.AddFact(r.Context(), chi.URLParam(r, "notebookID"), req.Text)
	if err != nil {
		handleDomainError(w, r, err, "Failed to add fact")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": fact.ID})
}

// RemoveFact handles DELETE /notebooks/{notebookID}/facts/{factID}.
func (h *NotebookHandler) RemoveFact(w http.ResponseWriter, r *http.Request) {
	err := h.repo.RemoveFact(r.Context(), chi.URLParam(r, "notebookID"), chi.URLParam(r, "factID"))
	if err != nil {
		handleDomainError(w, r, err, "Failed to remove fact")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Removed"})
}

// History handles GET /notebooks/{notebookID}/history.
func (h *NotebookHandler) History(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "notebookID")
	if _, err := h.repo.Get(r.Context(), id); err != nil {
		handleDomainError(w, r, err, "Failed to load history")
		return
	}

	history, err := h.repo.History(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err, "Failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

// ClearHistory handles DELETE /notebooks/{notebookID}/history.
func (h *NotebookHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.ClearHistory(r.Context(), chi.URLParam(r, "notebookID")); err != nil {
		handleDomainError(w, r, err, "Failed to clear history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Cleared"})
}

// GetSettings handles GET /notebooks/{notebookID}/settings.
func (h *NotebookHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	nb, err := h.repo.Get(r.Context(), chi.URLParam(r, "notebookID"))
	if err != nil {
		handleDomainError(w, r, err, "Failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": nb.Settings})
}

// PatchSettings handles PATCH /notebooks/{notebookID}/settings.
func (h *NotebookHandler) PatchSettings(w http.ResponseWriter, r *http.Request) {
	var req storage.Settings
	if !decodeJSON(w, r, &req) {
		return
	}

	settings, err := h.repo.UpdateSettings(r.Context(), chi.URLParam(r, "notebookID"), req)
	if err != nil {
		handleDomainError(w, r, err, "Failed to update settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Updated", "settings": settings})
}
