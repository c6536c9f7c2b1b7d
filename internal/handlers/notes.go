package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"studylm/internal/storage"
)

// NoteHandler manages free-form notes attached to uploaded files.
type NoteHandler struct {
	notes *storage.NoteRepo
}

// NewNoteHandler creates a new NoteHandler.
func NewNoteHandler(notes *storage.NoteRepo) *NoteHandler {
	return &NoteHandler{notes: notes}
}

type saveNoteRequest struct {
	FileID string `json:"file_id"`
	Note   string `json:"note"`
}

// Save handles POST /save_note.
func (h *NoteHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req saveNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.FileID) == "" || req.Note == "" {
		writeError(w, http.StatusBadRequest, "file_id and note are required")
		return
	}

	if err := h.notes.Add(r.Context(), req.FileID, req.Note); err != nil {
		handleDomainError(w, r, err, "Failed to save note")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Note saved"})
}

// List handles GET /notes/{fileID}.
func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")

	notes, err := h.notes.List(r.Context(), fileID)
	if err != nil {
		handleDomainError(w, r, err, "Failed to load notes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"file_id": fileID, "notes": notes})
}
