package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"studylm/internal/contextutil"
	"studylm/internal/ingest"
)

// UploadHandler accepts document uploads and queues them for ingestion.
type UploadHandler struct {
	uploadsDir string
	pipeline   *ingest.Pipeline
	workers    *ingest.Workers
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(uploadsDir string, pipeline *ingest.Pipeline, workers *ingest.Workers) *UploadHandler {
	return &UploadHandler{
		uploadsDir: uploadsDir,
		pipeline:   pipeline,
		workers:    workers,
	}
}

// UploadResponse acknowledges a queued upload.
type UploadResponse struct {
	FileID  string `json:"file_id"`
	Message string `json:"message"`
}

// UploadPDF handles POST /upload. The file is saved under a fresh id and
// processing happens in the background; poll /status/{file_id}.
func (h *UploadHandler) UploadPDF(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	if header.Header.Get("Content-Type") != "application/pdf" {
		writeError(w, http.StatusBadRequest, "Only PDFs allowed")
		return
	}

	fileID := uuid.New().String()
	path := filepath.Join(h.uploadsDir, fileID+".pdf")
	if err := h.saveUpload(path, file); err != nil {
		contextutil.LoggerFromContext(r.Context()).ErrorContext(r.Context(), "failed to save upload", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save upload")
		return
	}

	ok := h.workers.Enqueue(ingest.Job{DocumentID: fileID, Run: func(ctx context.Context) {
		h.pipeline.ProcessPDF(ctx, fileID, path)
	}})
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "Server busy, try again later")
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		FileID:  fileID,
		Message: "File queued for processing. It may take ~10-60s depending on size.",
	})
}

// UploadImage handles POST /upload_image. PNG and JPEG images are OCRed as
// single-page documents.
func (h *UploadHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	var ext string
	switch header.Header.Get("Content-Type") {
	case "image/png":
		ext = ".png"
	case "image/jpeg", "image/jpg":
		ext = ".jpg"
	default:
		writeError(w, http.StatusBadRequest, "Only PNG/JPEG images allowed")
		return
	}

	fileID := uuid.New().String()
	path := filepath.Join(h.uploadsDir, fileID+ext)
	if err := h.saveUpload(path, file); err != nil {
		contextutil.LoggerFromContext(r.Context()).ErrorContext(r.Context(), "failed to save upload", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save upload")
		return
	}

	ok := h.workers.Enqueue(ingest.Job{DocumentID: fileID, Run: func(ctx context.Context) {
		h.pipeline.ProcessImage(ctx, fileID, path)
	}})
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "Server busy, try again later")
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		FileID:  fileID,
		Message: "Image queued for OCR and processing.",
	})
}

func (h *UploadHandler) saveUpload(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
