package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"studylm/internal/document"
)

// fakeOCR records calls and returns canned text per page.
type fakeOCR struct {
	pageText  map[int]string
	imageText string
	err       error
	calls     []int
}

func (f *fakeOCR) PageToText(_ context.Context, _ string, page int) (string, error) {
	f.calls = append(f.calls, page)
	if f.err != nil {
		return "", f.err
	}
	return f.pageText[page], nil
}

func (f *fakeOCR) ImageToText(_ context.Context, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.imageText, nil
}

func TestExtractor_SizeGuard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.pdf")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	// Sparse file over the 1MB ceiling; the guard fires before any parsing.
	if err := f.Truncate(2 * 1024 * 1024); err != nil {
		t.Fatalf("Truncate() error = %v", err)
	}
	_ = f.Close()

	e := New(1, 100, 30, false, nil)
	_, err = e.ExtractPDF(context.Background(), path)
	if !errors.Is(err, ErrSizeExceeded) {
		t.Errorf("ExtractPDF() error = %v, want ErrSizeExceeded", err)
	}
}

func TestExtractor_MalformedInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.pdf")
	if err := os.WriteFile(path, []byte("this is not a pdf"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	e := New(100, 100, 30, false, nil)
	_, err := e.ExtractPDF(context.Background(), path)
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("ExtractPDF() error = %v, want ErrExtraction", err)
	}
}

func TestExtractor_MissingFile(t *testing.T) {
	e := New(100, 100, 30, false, nil)
	_, err := e.ExtractPDF(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"))
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("ExtractPDF() error = %v, want ErrExtraction", err)
	}
}

func TestApplyOCRFallback_SubstitutesTextlessPages(t *testing.T) {
	ocr := &fakeOCR{pageText: map[int]string{2: "recognized scanned text"}}
	e := New(100, 100, 30, true, ocr)

	longText := "This page carries plenty of extractable text content on it."
	pages := []document.Page{
		{Number: 1, Text: longText},
		{Number: 2, Text: "short"}, // under the 30-char threshold
		{Number: 3, Text: longText},
	}

	out := e.applyOCRFallback(context.Background(), "doc.pdf", pages)

	if len(ocr.calls) != 1 || ocr.calls[0] != 2 {
		t.Errorf("OCR called for pages %v, want [2]", ocr.calls)
	}
	if out[1].Text != "recognized scanned text" {
		t.Errorf("page 2 text = %q, want OCR substitution", out[1].Text)
	}
	if out[0].Text != longText || out[2].Text != longText {
		t.Error("pages with real text must not be touched")
	}
}

func TestApplyOCRFallback_FailureKeepsOriginalText(t *testing.T) {
	ocr := &fakeOCR{err: fmt.Errorf("tesseract not installed")}
	e := New(100, 100, 30, true, ocr)

	pages := []document.Page{{Number: 1, Text: "tiny"}}
	out := e.applyOCRFallback(context.Background(), "doc.pdf", pages)

	if out[0].Text != "tiny" {
		t.Errorf("page text = %q, OCR failure must keep original", out[0].Text)
	}
}

func TestApplyOCRFallback_EmptyOCRKeepsOriginalText(t *testing.T) {
	ocr := &fakeOCR{pageText: map[int]string{1: "   "}}
	e := New(100, 100, 30, true, ocr)

	pages := []document.Page{{Number: 1, Text: "tiny"}}
	out := e.applyOCRFallback(context.Background(), "doc.pdf", pages)

	if out[0].Text != "tiny" {
		t.Errorf("page text = %q, blank OCR output must keep original", out[0].Text)
	}
}

func TestApplyOCRFallback_DisabledNeverCallsOCR(t *testing.T) {
	ocr := &fakeOCR{pageText: map[int]string{1: "should not appear"}}
	e := New(100, 100, 30, false, ocr)

	pages := []document.Page{{Number: 1, Text: ""}}
	out := e.applyOCRFallback(context.Background(), "doc.pdf", pages)

	if len(ocr.calls) != 0 {
		t.Errorf("OCR called %d times with OCR disabled", len(ocr.calls))
	}
	if out[0].Text != "" {
		t.Errorf("page text = %q, want untouched", out[0].Text)
	}
}

func TestExtractor_OCRImage(t *testing.T) {
	ocr := &fakeOCR{imageText: "  text in image  "}
	e := New(100, 100, 30, true, ocr)

	pages, err := e.OCRImage(context.Background(), "photo.png")
	if err != nil {
		t.Fatalf("OCRImage() error = %v", err)
	}
	if len(pages) != 1 || pages[0].Number != 1 {
		t.Fatalf("pages = %+v, want one page numbered 1", pages)
	}
	if pages[0].Text != "text in image" {
		t.Errorf("text = %q, want trimmed OCR output", pages[0].Text)
	}
}

func TestExtractor_OCRImage_Failure(t *testing.T) {
	ocr := &fakeOCR{err: fmt.Errorf("unreadable")}
	e := New(100, 100, 30, true, ocr)

	if _, err := e.OCRImage(context.Background(), "photo.png"); !errors.Is(err, ErrExtraction) {
		t.Errorf("OCRImage() error = %v, want ErrExtraction", err)
	}
}

func TestNewTesseract_Defaults(t *testing.T) {
	tess := NewTesseract(40, "", "--psm 3 --oem 1")
	if tess.DPI != 72 {
		t.Errorf("DPI = %d, want clamp to 72", tess.DPI)
	}
	if tess.Language != "eng" {
		t.Errorf("Language = %q, want eng", tess.Language)
	}
	if len(tess.ExtraArgs) != 4 {
		t.Errorf("ExtraArgs = %v, want 4 fields", tess.ExtraArgs)
	}
}
