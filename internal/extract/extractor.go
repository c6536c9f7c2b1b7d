// Package extract pulls page-level text out of source documents, with an
// OCR fallback for pages that carry no extractable text.
package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"studylm/internal/contextutil"
	"studylm/internal/document"
)

// Extractor extracts ordered page text from documents, enforcing size and
// page-count ceilings before any parsing happens.
type Extractor struct {
	// MaxBytes is the document byte-size ceiling.
	MaxBytes int64
	// MaxPages is the document page-count ceiling.
	MaxPages int
	// TextThreshold is the trimmed character count below which a page is
	// classified as textless and sent through OCR. Heuristic: pages with
	// sparse but real text may be misclassified as scanned.
	TextThreshold int
	// OCREnabled gates the OCR fallback entirely.
	OCREnabled bool

	ocr OCR
}

// New creates an Extractor. ocr may be nil when OCR is disabled.
func New(maxMB, maxPages, textThreshold int, ocrEnabled bool, ocr OCR) *Extractor {
	return &Extractor{
		MaxBytes:      int64(maxMB) * 1024 * 1024,
		MaxPages:      maxPages,
		TextThreshold: textThreshold,
		OCREnabled:    ocrEnabled && ocr != nil,
		ocr:           ocr,
	}
}

// ExtractPDF returns one Page per page of the PDF at path, in page order.
// Pages classified as textless are run through OCR when enabled; an OCR
// failure keeps the original text and never fails the extraction.
func (e *Extractor) ExtractPDF(ctx context.Context, path string) (pages []document.Page, err error) {
	logger := contextutil.LoggerFromContext(ctx)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	if info.Size() > e.MaxBytes {
		return nil, fmt.Errorf("%w: %.1fMB, limit is %dMB",
			ErrSizeExceeded, float64(info.Size())/(1024*1024), e.MaxBytes/(1024*1024))
	}

	// The PDF parser panics on some malformed inputs; surface those as
	// extraction errors instead of crashing the ingestion worker.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("%w: parser panic: %v", ErrExtraction, r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	defer func() {
		_ = f.Close()
	}()

	numPages := reader.NumPage()
	if numPages > e.MaxPages {
		return nil, fmt.Errorf("%w: %d pages, limit is %d", ErrPageCountExceeded, numPages, e.MaxPages)
	}

	pages = make([]document.Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		text := ""
		page := reader.Page(i)
		if !page.V.IsNull() {
			content, err := page.GetPlainText(nil)
			if err != nil {
				logger.WarnContext(ctx, "failed to read page text", "page", i, "error", err)
			} else {
				text = content
			}
		}
		pages = append(pages, document.Page{Number: i, Text: text})
	}

	return e.applyOCRFallback(ctx, path, pages), nil
}

// OCRImage recognizes the text of a standalone image and wraps it as a
// single-page document. Unlike the per-page fallback, a failure here is an
// extraction error: an image source has no native text to fall back to.
func (e *Extractor) OCRImage(ctx context.Context, path string) ([]document.Page, error) {
	if e.ocr == nil {
		return nil, fmt.Errorf("%w: OCR is not available", ErrExtraction)
	}
	text, err := e.ocr.ImageToText(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return []document.Page{{Number: 1, Text: strings.TrimSpace(text)}}, nil
}

// applyOCRFallback substitutes OCR output for pages classified as textless.
// OCR failures are deliberately swallowed: OCR is a best-effort enhancement,
// and the original (possibly empty) text is kept.
func (e *Extractor) applyOCRFallback(ctx context.Context, path string, pages []document.Page) []document.Page {
	if !e.OCREnabled {
		return pages
	}
	logger := contextutil.LoggerFromContext(ctx)

	for i, page := range pages {
		if len(strings.TrimSpace(page.Text)) >= e.TextThreshold {
			continue
		}
		text, err := e.ocr.PageToText(ctx, path, page.Number)
		if err != nil {
			logger.WarnContext(ctx, "OCR failed, keeping extracted text", "page", page.Number, "error", err)
			continue
		}
		if strings.TrimSpace(text) != "" {
			logger.DebugContext(ctx, "substituted OCR text for textless page", "page", page.Number)
			pages[i].Text = text
		}
	}
	return pages
}
