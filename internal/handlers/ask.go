package handlers

import (
	"errors"
	"net/http"
	"strings"

	"studylm/internal/rag"
	"studylm/internal/retrieve"
)

// AskHandler answers questions against a single indexed document.
type AskHandler struct {
	engine *rag.Engine
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(engine *rag.Engine) *AskHandler {
	return &AskHandler{engine: engine}
}

type askRequest struct {
	FileID    string `json:"file_id"`
	Question  string `json:"question"`
	ChatModel string `json:"chat_model,omitempty"`
}

// ServeHTTP handles POST /ask.
func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.FileID) == "" || strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "file_id and question are required")
		return
	}

	answer, err := h.engine.Ask(r.Context(), req.FileID, req.Question, rag.ChatOptions{Model: req.ChatModel})
	if err != nil {
		if errors.Is(err, retrieve.ErrNoSourcesReady) {
			writeError(w, http.StatusNotFound, "Document not ready yet")
			return
		}
		handleDomainError(w, r, err, "Failed to answer question")
		return
	}

	writeJSON(w, http.StatusOK, answer)
}
