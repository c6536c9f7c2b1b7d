// Package ingest orchestrates the write path: extract → chunk → embed →
// build index → persist, one background unit of work per uploaded document.
package ingest

import (
	"context"
	"fmt"

	"studylm/internal/chunk"
	"studylm/internal/contextutil"
	"studylm/internal/document"
	"studylm/internal/store"
	"studylm/internal/vectorindex"
)

// TextExtractor extracts page-structured text from source files.
type TextExtractor interface {
	ExtractPDF(ctx context.Context, path string) ([]document.Page, error)
	OCRImage(ctx context.Context, path string) ([]document.Page, error)
}

// Embedder turns a batch of texts into fixed-dimension vectors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Pipeline runs a document through extraction, chunking, embedding and index
// persistence. Each run owns its identifier's storage slot exclusively:
// identifiers are assigned once and never reused, so concurrent runs for
// different documents share no mutable state.
type Pipeline struct {
	extractor TextExtractor
	chunker   *chunk.Chunker
	embedder  Embedder
	store     *store.Store
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(extractor TextExtractor, chunker *chunk.Chunker, embedder Embedder, s *store.Store) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     s,
	}
}

// ProcessPDF ingests the PDF at path under the given document identifier.
// Failures are captured in the document's stage and error markers; the
// method never panics the worker.
func (p *Pipeline) ProcessPDF(ctx context.Context, id, path string) {
	logger := contextutil.LoggerFromContext(ctx)
	logger.InfoContext(ctx, "processing document", "file_id", id)

	p.writeStage(ctx, id, store.StageParsing)
	pages, err := p.extractor.ExtractPDF(ctx, path)
	if err != nil {
		p.fail(ctx, id, err)
		return
	}
	p.processPages(ctx, id, pages)
}

// ProcessImage ingests an image file by recognizing its text as a
// single-page document.
func (p *Pipeline) ProcessImage(ctx context.Context, id, path string) {
	logger := contextutil.LoggerFromContext(ctx)
	logger.InfoContext(ctx, "processing image", "file_id", id)

	p.writeStage(ctx, id, store.StageParsing)
	pages, err := p.extractor.OCRImage(ctx, path)
	if err != nil {
		p.fail(ctx, id, err)
		return
	}
	p.processPages(ctx, id, pages)
}

// ProcessPages ingests pre-extracted pages (URL and text sources). Unlike
// the file front-ends it reports the failure to the caller as well as to the
// stage markers, because URL ingestion runs synchronously.
func (p *Pipeline) ProcessPages(ctx context.Context, id string, pages []document.Page) error {
	p.writeStage(ctx, id, store.StageParsing)
	return p.processPages(ctx, id, pages)
}

func (p *Pipeline) processPages(ctx context.Context, id string, pages []document.Page) error {
	logger := contextutil.LoggerFromContext(ctx)

	chunks := p.chunker.Chunk(pages)
	if len(chunks) == 0 {
		err := fmt.Errorf("no text extracted from document")
		p.fail(ctx, id, err)
		return err
	}

	p.writeStage(ctx, id, store.StageEmbedding)

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		p.fail(ctx, id, err)
		return err
	}

	idx, err := vectorindex.Build(vectors)
	if err != nil {
		p.fail(ctx, id, err)
		return err
	}
	if err := p.store.SaveIndex(id, idx); err != nil {
		p.fail(ctx, id, err)
		return err
	}
	// Chunk order must match index row order: chunk i ↔ row i.
	if err := p.store.SaveChunks(id, chunks); err != nil {
		p.fail(ctx, id, err)
		return err
	}

	p.writeStage(ctx, id, store.StageDone)
	logger.InfoContext(ctx, "document indexed", "file_id", id, "chunks", len(chunks))
	return nil
}

// fail captures the error in the document's markers so status polling shows
// not-ready with a reason.
func (p *Pipeline) fail(ctx context.Context, id string, cause error) {
	logger := contextutil.LoggerFromContext(ctx)
	logger.ErrorContext(ctx, "ingestion failed", "file_id", id, "error", cause)

	if err := p.store.WriteError(id, cause.Error()); err != nil {
		logger.ErrorContext(ctx, "failed to write error marker", "file_id", id, "error", err)
	}
	p.writeStage(ctx, id, store.StageError)
}

func (p *Pipeline) writeStage(ctx context.Context, id string, stage store.Stage) {
	if err := p.store.WriteStage(id, stage); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to write stage marker",
			"file_id", id, "stage", string(stage), "error", err)
	}
}
