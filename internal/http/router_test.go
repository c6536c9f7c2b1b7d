package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"studylm/internal/chunk"
	"studylm/internal/config"
	"studylm/internal/document"
	"studylm/internal/fetch"
	"studylm/internal/handlers"
	"studylm/internal/ingest"
	"studylm/internal/llm"
	"studylm/internal/rag"
	"studylm/internal/retrieve"
	"studylm/internal/storage"
	"studylm/internal/store"
)

type stubEmbedder struct{}

func (stubEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

type stubCompleter struct{}

func (stubCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string, p llm.ChatParams) (string, error) {
	return "stub answer", nil
}

type stubExtractor struct{}

func (stubExtractor) ExtractPDF(ctx context.Context, path string) ([]document.Page, error) {
	return []document.Page{{Number: 1, Text: "stub page"}}, nil
}

func (stubExtractor) OCRImage(ctx context.Context, path string) ([]document.Page, error) {
	return []document.Page{{Number: 1, Text: "stub image"}}, nil
}

type stubTokenizer struct{}

func (stubTokenizer) Count(text string) int { return len(strings.Fields(text)) }

func (stubTokenizer) Split(text string, maxTokens int) []string { return []string{text} }

func discardTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	db, err := storage.New(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	s, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	uploadsDir := t.TempDir()

	notebookRepo := storage.NewNotebookRepo(db)
	noteRepo := storage.NewNoteRepo(db)
	metaRepo := storage.NewFileMetaRepo(db)

	engine := rag.NewEngine(stubEmbedder{}, stubCompleter{}, retrieve.New(s), notebookRepo, rag.Options{
		DefaultChatModel: "gpt-4o-mini",
		UploadsDir:       uploadsDir,
	})
	pipeline := ingest.NewPipeline(stubExtractor{}, chunk.New(stubTokenizer{}, 100), stubEmbedder{}, s)
	workers := ingest.NewWorkers(context.Background(), 1, discardTestLogger())
	t.Cleanup(workers.Close)

	cfg := &config.Config{
		EmbeddingModel:    "text-embedding-3-small",
		ChatModel:         "gpt-4o-mini",
		ChatModelsAllowed: []string{"gpt-4o-mini"},
	}

	deps := &Deps{
		Upload:     handlers.NewUploadHandler(uploadsDir, pipeline, workers),
		IngestURL:  handlers.NewIngestURLHandler(fetch.New(nil), pipeline, uploadsDir),
		Ask:        handlers.NewAskHandler(engine),
		Notebooks:  handlers.NewNotebookHandler(notebookRepo),
		Study:      handlers.NewStudyHandler(engine, notebookRepo),
		Files:      handlers.NewFilesHandler(uploadsDir, s, metaRepo, noteRepo, cfg.EmbeddingModel, cfg.ChatModel),
		Notes:      handlers.NewNoteHandler(noteRepo),
		Models:     handlers.NewModelsHandler(cfg),
		Health:     handlers.NewHealthHandler("secret-token"),
		UploadsDir: uploadsDir,
	}

	srv := httptest.NewServer(NewRouter(deps))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp, decoded
}

func TestRouter_Root(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "StudyLM API") {
		t.Errorf("GET / = %d %q", resp.StatusCode, body)
	}
}

func TestRouter_Models_WithAndWithoutAPIPrefix(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/models", "/api/models"} {
		resp, body := doJSON(t, http.MethodGet, srv.URL+path, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s = %d", path, resp.StatusCode)
		}
		chat, ok := body["chat"].(map[string]any)
		if !ok || chat["default"] != "gpt-4o-mini" {
			t.Errorf("GET %s body = %v", path, body)
		}
	}
}

func TestRouter_Health_TokenGated(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("health without token = %d, want 404", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	req.Header.Set("X-Internal", "secret-token")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Errorf("health with token = %d, want 200", resp2.StatusCode)
	}
}

func TestRouter_NotebookLifecycle(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/notebooks", map[string]string{"title": "Physics"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create notebook = %d", resp.StatusCode)
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatalf("create notebook body = %v", body)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/notebooks", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list notebooks = %d", resp.StatusCode)
	}
	notebooks, _ := body["notebooks"].([]any)
	if len(notebooks) != 1 {
		t.Fatalf("list has %d notebooks, want 1", len(notebooks))
	}

	resp, _ = doJSON(t, http.MethodPatch, srv.URL+"/notebooks/"+id, map[string]string{"title": "Physics II"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch notebook = %d", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/notebooks/"+id+"/facts", map[string]string{"text": "exam on friday"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add fact = %d", resp.StatusCode)
	}
	factID, _ := body["id"].(string)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/notebooks/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get notebook = %d", resp.StatusCode)
	}
	if body["title"] != "Physics II" {
		t.Errorf("title = %v after patch", body["title"])
	}
	facts, _ := body["facts"].([]any)
	if len(facts) != 1 {
		t.Errorf("facts = %v", body["facts"])
	}

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/notebooks/"+id+"/facts/"+factID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("remove fact = %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPatch, srv.URL+"/notebooks/"+id+"/settings", map[string]any{"chat_model": "gpt-4o-mini"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch settings = %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/notebooks/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete notebook = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/notebooks/"+id, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get deleted notebook = %d, want 404", resp.StatusCode)
	}
}

func TestRouter_NotebookAsk_NoSources(t *testing.T) {
	srv := newTestServer(t)

	_, body := doJSON(t, http.MethodPost, srv.URL+"/notebooks", map[string]string{"title": "Empty"})
	id, _ := body["id"].(string)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/notebooks/"+id+"/ask", map[string]string{"question": "anything?"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("ask without sources = %d, want 400", resp.StatusCode)
	}
	if detail, _ := body["detail"].(string); !strings.Contains(detail, "no sources") {
		t.Errorf("detail = %q", body["detail"])
	}
}

func TestRouter_Ask_DocumentNotReady(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/ask", map[string]string{
		"file_id":  "nope",
		"question": "hello?",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("ask unknown doc = %d, want 404", resp.StatusCode)
	}
	if detail, _ := body["detail"].(string); detail != "Document not ready yet" {
		t.Errorf("detail = %q", detail)
	}
}

func TestRouter_StatusUnknownFile(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/status/unknown-id", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ready, _ := body["ready"].(bool); ready {
		t.Error("unknown file reported ready")
	}
	if body["stage"] != nil {
		t.Errorf("stage = %v, want null", body["stage"])
	}
}

func TestRouter_NotesAndLabels(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/save_note", map[string]string{
		"file_id": "file-1", "note": "remember this",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save note = %d", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/notes/file-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get notes = %d", resp.StatusCode)
	}
	notes, _ := body["notes"].([]any)
	if len(notes) != 1 || notes[0] != "remember this" {
		t.Errorf("notes = %v", body["notes"])
	}

	resp, body = doJSON(t, http.MethodPatch, srv.URL+"/file/file-1/label", map[string]string{"label": "Lecture 1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch label = %d", resp.StatusCode)
	}
	if body["label"] != "Lecture 1" {
		t.Errorf("label = %v", body["label"])
	}
}

func TestRouter_ExportMarkdown(t *testing.T) {
	srv := newTestServer(t)

	_, body := doJSON(t, http.MethodPost, srv.URL+"/notebooks", map[string]string{"title": "Chemistry"})
	id, _ := body["id"].(string)

	resp, err := http.Get(fmt.Sprintf("%s/notebooks/%s/export.md", srv.URL, id))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export.md = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.HasPrefix(string(raw), "# Chemistry") {
		t.Errorf("export starts with %q", string(raw[:min(len(raw), 40)]))
	}

	resp2, err := http.Get(fmt.Sprintf("%s/notebooks/%s/export.html", srv.URL, id))
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	html, _ := io.ReadAll(resp2.Body)
	if !strings.Contains(string(html), "<h1") {
		t.Errorf("export.html = %q, want rendered heading", string(html[:min(len(html), 80)]))
	}
}
