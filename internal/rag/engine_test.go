package rag

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"studylm/internal/document"
	"studylm/internal/llm"
	"studylm/internal/retrieve"
	"studylm/internal/storage"
	"studylm/internal/store"
	"studylm/internal/vectorindex"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

type fakeCompleter struct {
	answer     string
	err        error
	lastSystem string
	lastUser   string
	lastParams llm.ChatParams
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string, p llm.ChatParams) (string, error) {
	f.lastSystem = systemPrompt
	f.lastUser = userPrompt
	f.lastParams = p
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type fakeNotebooks struct {
	nb      *storage.Notebook
	history []storage.ChatMessage
	study   map[string]json.RawMessage
}

func (f *fakeNotebooks) Get(ctx context.Context, id string) (*storage.Notebook, error) {
	if f.nb == nil || f.nb.ID != id {
		return nil, storage.ErrNotFound
	}
	return f.nb, nil
}

func (f *fakeNotebooks) AppendHistory(ctx context.Context, id string, msg storage.ChatMessage) error {
	f.history = append(f.history, msg)
	return nil
}

func (f *fakeNotebooks) SaveStudy(ctx context.Context, id, kind string, payload json.RawMessage) error {
	if f.study == nil {
		f.study = map[string]json.RawMessage{}
	}
	f.study[kind] = payload
	return nil
}

func intPtr(n int) *int { return &n }

// seedDocument persists a two-chunk index where the first chunk is the
// nearest neighbor of query vector {1,0}.
func seedDocument(t *testing.T, s *store.Store, id string) {
	t.Helper()
	idx, err := vectorindex.Build([][]float32{{1, 0}, {0, 1}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := s.SaveIndex(id, idx); err != nil {
		t.Fatalf("SaveIndex: %v", err)
	}
	chunks := []document.Chunk{
		{Text: "mitochondria produce ATP", PageStart: intPtr(3), PageEnd: intPtr(4)},
		{Text: "ribosomes synthesize proteins", PageStart: intPtr(7), PageEnd: intPtr(7)},
	}
	if err := s.SaveChunks(id, chunks); err != nil {
		t.Fatalf("SaveChunks: %v", err)
	}
}

type testEnv struct {
	engine     *Engine
	completer  *fakeCompleter
	notebooks  *fakeNotebooks
	uploadsDir string
	store      *store.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	seedDocument(t, s, "doc-1")

	uploadsDir := t.TempDir()
	completer := &fakeCompleter{answer: "ATP is produced in the mitochondria."}
	notebooks := &fakeNotebooks{}
	engine := NewEngine(
		&fakeEmbedder{vector: []float32{1, 0}},
		completer,
		retrieve.New(s),
		notebooks,
		Options{
			DefaultChatModel:  "gpt-4o-mini",
			AllowedChatModels: []string{"gpt-4o-mini", "gpt-4o"},
			UploadsDir:        uploadsDir,
		},
	)
	return &testEnv{engine: engine, completer: completer, notebooks: notebooks, uploadsDir: uploadsDir, store: s}
}

func TestEngine_Ask(t *testing.T) {
	env := newTestEnv(t)
	if err := os.WriteFile(filepath.Join(env.uploadsDir, "doc-1.pdf"), []byte("%PDF-"), 0o644); err != nil {
		t.Fatal(err)
	}

	ans, err := env.engine.Ask(context.Background(), "doc-1", "where is ATP made?", ChatOptions{})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Answer != "ATP is produced in the mitochondria." {
		t.Errorf("Answer = %q", ans.Answer)
	}
	if len(ans.Citations) == 0 {
		t.Fatal("expected citations")
	}
	top := ans.Citations[0]
	if top.FileID != "doc-1" || top.PageStart == nil || *top.PageStart != 3 {
		t.Errorf("top citation = %+v, want doc-1 page 3", top)
	}
	if top.URL != "/uploads/doc-1.pdf#page=3" {
		t.Errorf("URL = %q, want pdf link with page anchor", top.URL)
	}
	if top.Preview != "mitochondria produce ATP" {
		t.Errorf("Preview = %q", top.Preview)
	}

	if !strings.Contains(env.completer.lastUser, "mitochondria produce ATP") {
		t.Error("retrieved context missing from the user prompt")
	}
	if env.completer.lastParams.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q, want server default", env.completer.lastParams.Model)
	}
	if env.completer.lastParams.MaxTokens != 512 {
		t.Errorf("MaxTokens = %d, want 512", env.completer.lastParams.MaxTokens)
	}
}

func TestEngine_Ask_DocumentNotReady(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.Ask(context.Background(), "missing-doc", "question", ChatOptions{})
	if !errors.Is(err, retrieve.ErrNoSourcesReady) {
		t.Fatalf("error = %v, want ErrNoSourcesReady", err)
	}
}

func TestEngine_Ask_ModelNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.Ask(context.Background(), "doc-1", "question", ChatOptions{Model: "gpt-experimental"})
	if !errors.Is(err, ErrModelNotAllowed) {
		t.Fatalf("error = %v, want ErrModelNotAllowed", err)
	}
}

func TestEngine_AskNotebook(t *testing.T) {
	env := newTestEnv(t)
	env.notebooks.nb = &storage.Notebook{
		ID:      "nb-1",
		Sources: []string{"doc-1"},
		Facts: []storage.Fact{
			{ID: "f1", Text: "the exam covers chapter 2"},
		},
	}

	ans, err := env.engine.AskNotebook(context.Background(), "nb-1", "where is ATP made?", ChatOptions{})
	if err != nil {
		t.Fatalf("AskNotebook: %v", err)
	}
	if ans.Answer == "" || len(ans.Citations) == 0 {
		t.Fatalf("incomplete answer: %+v", ans)
	}

	if !strings.Contains(env.completer.lastSystem, "the exam covers chapter 2") {
		t.Error("notebook facts missing from the system prompt")
	}

	if len(env.notebooks.history) != 2 {
		t.Fatalf("history has %d turns, want 2", len(env.notebooks.history))
	}
	if env.notebooks.history[0].Role != "user" || env.notebooks.history[1].Role != "assistant" {
		t.Errorf("history roles = %s/%s", env.notebooks.history[0].Role, env.notebooks.history[1].Role)
	}
	if len(env.notebooks.history[1].Citations) == 0 {
		t.Error("assistant turn should carry citations")
	}
}

func TestEngine_AskNotebook_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.AskNotebook(context.Background(), "missing", "q", ChatOptions{})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want storage.ErrNotFound", err)
	}
}

func TestEngine_AskNotebook_NoSources(t *testing.T) {
	env := newTestEnv(t)
	env.notebooks.nb = &storage.Notebook{ID: "nb-1", Sources: []string{"doc-1"}}

	// Include filter that excludes every attached source.
	_, err := env.engine.AskNotebook(context.Background(), "nb-1", "q", ChatOptions{IncludeSources: []string{"other"}})
	if !errors.Is(err, ErrNoSources) {
		t.Fatalf("error = %v, want ErrNoSources", err)
	}

	env.notebooks.nb.Sources = nil
	_, err = env.engine.AskNotebook(context.Background(), "nb-1", "q", ChatOptions{})
	if !errors.Is(err, ErrNoSources) {
		t.Fatalf("error = %v, want ErrNoSources", err)
	}
}

func TestEngine_SettingsOverrideChain(t *testing.T) {
	env := newTestEnv(t)
	model := "gpt-4o"
	temp := 0.9
	tokens := 256
	env.notebooks.nb = &storage.Notebook{
		ID:      "nb-1",
		Sources: []string{"doc-1"},
		Settings: storage.Settings{
			ChatModel:   &model,
			Temperature: &temp,
			MaxTokens:   &tokens,
		},
	}

	if _, err := env.engine.AskNotebook(context.Background(), "nb-1", "q", ChatOptions{}); err != nil {
		t.Fatalf("AskNotebook: %v", err)
	}
	if env.completer.lastParams.Model != "gpt-4o" {
		t.Errorf("Model = %q, want notebook setting", env.completer.lastParams.Model)
	}
	if env.completer.lastParams.Temperature != 0.9 {
		t.Errorf("Temperature = %v, want 0.9", env.completer.lastParams.Temperature)
	}
	if env.completer.lastParams.MaxTokens != 256 {
		t.Errorf("MaxTokens = %d, want 256", env.completer.lastParams.MaxTokens)
	}

	// Request overrides beat notebook settings.
	reqTemp := 0.1
	_, err := env.engine.AskNotebook(context.Background(), "nb-1", "q", ChatOptions{
		Model:       "gpt-4o-mini",
		Temperature: &reqTemp,
		MaxTokens:   64,
	})
	if err != nil {
		t.Fatalf("AskNotebook: %v", err)
	}
	if env.completer.lastParams.Model != "gpt-4o-mini" || env.completer.lastParams.Temperature != 0.1 || env.completer.lastParams.MaxTokens != 64 {
		t.Errorf("params = %+v, request overrides not applied", env.completer.lastParams)
	}
}

func TestEngine_SourceURLPreference(t *testing.T) {
	env := newTestEnv(t)
	if err := os.WriteFile(filepath.Join(env.uploadsDir, "doc-1.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	url := env.engine.sourceURL("doc-1", intPtr(2))
	if url != "/uploads/doc-1.png" {
		t.Errorf("url = %q, want png fallback without page anchor", url)
	}

	if url := env.engine.sourceURL("absent", nil); url != "" {
		t.Errorf("url = %q, want empty for unknown file", url)
	}
}
