package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"studylm/internal/chunk"
	"studylm/internal/config"
	"studylm/internal/extract"
	"studylm/internal/fetch"
	"studylm/internal/handlers"
	"studylm/internal/http"
	"studylm/internal/ingest"
	"studylm/internal/llm"
	"studylm/internal/rag"
	"studylm/internal/retrieve"
	"studylm/internal/storage"
	"studylm/internal/store"
	"studylm/internal/tokenizer"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	// Create repository instances
	notebookRepo := storage.NewNotebookRepo(db)
	noteRepo := storage.NewNoteRepo(db)
	fileMetaRepo := storage.NewFileMetaRepo(db)

	// Initialize the on-disk vector store
	vectorStore, err := store.New(cfg.VectorStoreDir)
	if err != nil {
		log.Fatalf("Failed to open vector store: %v", err)
	}
	slog.Info("Vector store ready", "dir", cfg.VectorStoreDir)

	// Text extraction with optional Tesseract OCR fallback
	ocr := extract.NewTesseract(cfg.OCRDPI, cfg.OCRLanguage, cfg.OCRTesseractConfig)
	extractor := extract.New(cfg.MaxPDFMB, cfg.MaxPDFPages, cfg.OCRTextThreshold, cfg.OCREnabled, ocr)

	// Tokenizer and chunker
	tok, err := tokenizer.NewTiktoken()
	if err != nil {
		log.Fatalf("Failed to load tokenizer: %v", err)
	}
	chunker := chunk.New(tok, cfg.MaxChunkTokens)

	// OpenAI-compatible clients
	embedder := llm.NewEmbeddingsClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.EmbeddingModel)
	llmClient := llm.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.ChatModel)

	// Create RAG engine
	retriever := retrieve.New(vectorStore)
	ragEngine := rag.NewEngine(embedder, llmClient, retriever, notebookRepo, rag.Options{
		DefaultChatModel:  cfg.ChatModel,
		AllowedChatModels: cfg.ChatModelsAllowed,
		UploadsDir:        cfg.UploadsDir,
	})
	slog.Info("RAG engine initialized", "chat_model", cfg.ChatModel, "embedding_model", cfg.EmbeddingModel)

	// Ingestion pipeline and background worker pool
	ctx := context.Background()
	pipeline := ingest.NewPipeline(extractor, chunker, embedder, vectorStore)
	workers := ingest.NewWorkers(ctx, cfg.IngestWorkers, logger)
	defer workers.Close()
	slog.Info("Ingestion workers started", "count", cfg.IngestWorkers)

	fetcher := fetch.New(nil)

	// Create router with dependencies
	deps := &http.Deps{
		Upload:      handlers.NewUploadHandler(cfg.UploadsDir, pipeline, workers),
		IngestURL:   handlers.NewIngestURLHandler(fetcher, pipeline, cfg.UploadsDir),
		Ask:         handlers.NewAskHandler(ragEngine),
		Notebooks:   handlers.NewNotebookHandler(notebookRepo),
		Study:       handlers.NewStudyHandler(ragEngine, notebookRepo),
		Files:       handlers.NewFilesHandler(cfg.UploadsDir, vectorStore, fileMetaRepo, noteRepo, cfg.EmbeddingModel, cfg.ChatModel),
		Notes:       handlers.NewNoteHandler(noteRepo),
		Models:      handlers.NewModelsHandler(cfg),
		Health:      handlers.NewHealthHandler(cfg.HealthcheckToken),
		CORSOrigins: cfg.CORSOrigins,
		UploadsDir:  cfg.UploadsDir,
	}
	router := http.NewRouter(deps)

	// Start API server
	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	slog.Debug("LLM configuration", "base_url", cfg.OpenAIBaseURL, "chat_model", cfg.ChatModel)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}
