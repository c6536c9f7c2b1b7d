package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"studylm/internal/contextutil"
	"studylm/internal/storage"
	"studylm/internal/store"
)

// uploadExtensions are the source file types saved under the uploads
// directory, in listing order.
var uploadExtensions = []string{".pdf", ".png", ".jpg", ".jpeg", ".txt"}

// FilesHandler lists uploaded sources and manages their metadata and
// lifecycle.
type FilesHandler struct {
	uploadsDir     string
	store          *store.Store
	meta           *storage.FileMetaRepo
	notes          *storage.NoteRepo
	embeddingModel string
	chatModel      string
}

// NewFilesHandler creates a new FilesHandler.
func NewFilesHandler(uploadsDir string, s *store.Store, meta *storage.FileMetaRepo, notes *storage.NoteRepo, embeddingModel, chatModel string) *FilesHandler {
	return &FilesHandler{
		uploadsDir:     uploadsDir,
		store:          s,
		meta:           meta,
		notes:          notes,
		embeddingModel: embeddingModel,
		chatModel:      chatModel,
	}
}

func (h *FilesHandler) listUploadNames() ([]string, error) {
	entries, err := os.ReadDir(h.uploadsDir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, allowed := range uploadExtensions {
			if ext == allowed {
				names = append(names, entry.Name())
				break
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

type fileEntry struct {
	File   string `json:"file"`
	FileID string `json:"file_id"`
	Label  string `json:"label,omitempty"`
}

// List handles GET /files: uploaded sources with their labels.
func (h *FilesHandler) List(w http.ResponseWriter, r *http.Request) {
	names, err := h.listUploadNames()
	if err != nil {
		handleDomainError(w, r, err, "Failed to list files")
		return
	}
	meta, err := h.meta.List(r.Context())
	if err != nil {
		handleDomainError(w, r, err, "Failed to list files")
		return
	}

	files := make([]fileEntry, 0, len(names))
	for _, name := range names {
		fid := strings.SplitN(name, ".", 2)[0]
		files = append(files, fileEntry{File: name, FileID: fid, Label: meta[fid].Label})
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files, "base_url": "/uploads/"})
}

// ListUploads handles GET /uploads-list: bare file names.
func (h *FilesHandler) ListUploads(w http.ResponseWriter, r *http.Request) {
	names, err := h.listUploadNames()
	if err != nil {
		handleDomainError(w, r, err, "Failed to list files")
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": names, "base_url": "/uploads/"})
}

// ListMeta handles GET /files-meta.
func (h *FilesHandler) ListMeta(w http.ResponseWriter, r *http.Request) {
	meta, err := h.meta.List(r.Context())
	if err != nil {
		handleDomainError(w, r, err, "Failed to list file metadata")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": meta})
}

type labelPatchRequest struct {
	Label string `json:"label"`
}

// PatchLabel handles PATCH /file/{fileID}/label.
func (h *FilesHandler) PatchLabel(w http.ResponseWriter, r *http.Request) {
	var req labelPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fileID := chi.URLParam(r, "fileID")
	label, err := h.meta.SetLabel(r.Context(), fileID, req.Label)
	if err != nil {
		handleDomainError(w, r, err, "Failed to set label")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Updated", "file_id": fileID, "label": label})
}

// Status handles GET /status/{fileID}: ingestion progress for polling.
func (h *FilesHandler) Status(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")

	stage, err := h.store.ReadStage(fileID)
	if err != nil {
		handleDomainError(w, r, err, "Failed to read status")
		return
	}
	errMsg, err := h.store.ReadError(fileID)
	if err != nil {
		handleDomainError(w, r, err, "Failed to read status")
		return
	}

	var errField any
	if errMsg != "" {
		errField = errMsg
	}
	var stageField any
	if stage != store.StageUnknown {
		stageField = string(stage)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"file_id":         fileID,
		"ready":           h.store.Ready(fileID),
		"error":           errField,
		"stage":           stageField,
		"embedding_model": h.embeddingModel,
		"chat_model":      h.chatModel,
	})
}

// Info handles GET /file/{fileID}: which upload variants exist plus index
// state and page count.
func (h *FilesHandler) Info(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")

	exists := func(ext string) bool {
		_, err := os.Stat(filepath.Join(h.uploadsDir, fileID+ext))
		return err == nil
	}

	var sizeBytes int64
	var uploadedAt any
	if info, err := os.Stat(filepath.Join(h.uploadsDir, fileID+".pdf")); err == nil {
		sizeBytes = info.Size()
		uploadedAt = float64(info.ModTime().UnixNano()) / 1e9
	}

	var pages any
	if chunks, err := h.store.LoadChunks(fileID); err == nil {
		max := 0
		for _, c := range chunks {
			if c.PageStart != nil && *c.PageStart > max {
				max = *c.PageStart
			}
			if c.PageEnd != nil && *c.PageEnd > max {
				max = *c.PageEnd
			}
		}
		if max > 0 {
			pages = max
		}
	}

	var stageField any
	if stage, err := h.store.ReadStage(fileID); err == nil && stage != store.StageUnknown {
		stageField = string(stage)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"file_id":     fileID,
		"exists_pdf":  exists(".pdf"),
		"exists_png":  exists(".png"),
		"exists_jpg":  exists(".jpg"),
		"exists_txt":  exists(".txt"),
		"size_bytes":  sizeBytes,
		"size_mb":     float64(sizeBytes) / (1024 * 1024),
		"pages":       pages,
		"indexed":     h.store.Ready(fileID),
		"stage":       stageField,
		"uploaded_at": uploadedAt,
	})
}

// Delete handles DELETE /file/{fileID}: removes upload variants, index
// artifacts, notes and labels.
func (h *FilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	logger := contextutil.LoggerFromContext(r.Context())
	fileID := chi.URLParam(r, "fileID")

	removed := []string{}
	for _, ext := range uploadExtensions {
		path := filepath.Join(h.uploadsDir, fileID+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := os.Remove(path); err != nil {
			logger.WarnContext(r.Context(), "failed to remove upload", "path", path, "error", err)
			continue
		}
		removed = append(removed, path)
	}

	if err := h.store.Delete(fileID); err != nil {
		logger.WarnContext(r.Context(), "failed to remove index artifacts", "file_id", fileID, "error", err)
	}
	if err := h.notes.DeleteForFile(r.Context(), fileID); err != nil {
		logger.WarnContext(r.Context(), "failed to remove notes", "file_id", fileID, "error", err)
	}
	if err := h.meta.Delete(r.Context(), fileID); err != nil {
		logger.WarnContext(r.Context(), "failed to remove file metadata", "file_id", fileID, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "Deleted", "removed": removed})
}
