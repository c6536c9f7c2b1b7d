package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"studylm/internal/contextutil"
	"studylm/internal/document"
	"studylm/internal/fetch"
	"studylm/internal/ingest"
)

// IngestURLHandler fetches a web page or YouTube transcript and indexes it
// synchronously.
type IngestURLHandler struct {
	fetcher    *fetch.Fetcher
	pipeline   *ingest.Pipeline
	uploadsDir string
}

// NewIngestURLHandler creates a new IngestURLHandler.
func NewIngestURLHandler(fetcher *fetch.Fetcher, pipeline *ingest.Pipeline, uploadsDir string) *IngestURLHandler {
	return &IngestURLHandler{
		fetcher:    fetcher,
		pipeline:   pipeline,
		uploadsDir: uploadsDir,
	}
}

type ingestURLRequest struct {
	URL string `json:"url"`
}

// ServeHTTP handles POST /ingest_url.
func (h *IngestURLHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req ingestURLRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.fetcher.Fetch(r.Context(), req.URL)
	if err != nil {
		switch {
		case errors.Is(err, fetch.ErrInvalidURL):
			writeError(w, http.StatusBadRequest, "Invalid URL")
		case errors.Is(err, fetch.ErrNoText):
			writeError(w, http.StatusBadRequest, "No text extracted from URL")
		default:
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to fetch URL: %v", err))
		}
		return
	}

	fileID := uuid.New().String()

	// Keep a plain-text copy of the fetched content for viewing.
	txt := fmt.Sprintf("Source: %s\n\n%s\n\n%s", req.URL, res.Title, res.Text)
	txtPath := filepath.Join(h.uploadsDir, fileID+".txt")
	if err := os.WriteFile(txtPath, []byte(txt), 0o644); err != nil {
		contextutil.LoggerFromContext(r.Context()).ErrorContext(r.Context(), "failed to save url text", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save fetched content")
		return
	}

	pages := []document.Page{{Number: 1, Text: res.Text}}
	if err := h.pipeline.ProcessPages(r.Context(), fileID, pages); err != nil {
		handleDomainError(w, r, err, "Failed to index URL content")
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		FileID:  fileID,
		Message: "URL ingested and indexed",
	})
}
