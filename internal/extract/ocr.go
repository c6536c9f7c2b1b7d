package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// OCR recognizes text in rendered pages and standalone images. Implementations
// are best-effort: the extractor falls back to the original page text on any
// failure.
type OCR interface {
	// PageToText renders one page of the PDF at path to a raster image and
	// runs character recognition over it.
	PageToText(ctx context.Context, pdfPath string, page int) (string, error)
	// ImageToText runs character recognition over an image file.
	ImageToText(ctx context.Context, imagePath string) (string, error)
}

// Tesseract shells out to the tesseract binary, rasterizing PDF pages with
// pdftoppm first. Mirrors how pytesseract drives the same binary.
type Tesseract struct {
	// DPI used when rasterizing PDF pages. Values below 72 are clamped.
	DPI int
	// Language passed to tesseract's -l flag.
	Language string
	// ExtraArgs are additional tesseract CLI flags, e.g. "--psm 3".
	ExtraArgs []string
}

// NewTesseract creates a Tesseract engine. extraConfig is a space-separated
// CLI flag string, split the way a shell would split simple flags.
func NewTesseract(dpi int, language, extraConfig string) *Tesseract {
	if dpi < 72 {
		dpi = 72
	}
	if language == "" {
		language = "eng"
	}
	return &Tesseract{
		DPI:       dpi,
		Language:  language,
		ExtraArgs: strings.Fields(extraConfig),
	}
}

// PageToText rasterizes the given 1-based page of the PDF and recognizes its
// text.
func (t *Tesseract) PageToText(ctx context.Context, pdfPath string, page int) (string, error) {
	tmpDir, err := os.MkdirTemp("", "studylm-ocr-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(tmpDir)
	}()

	prefix := filepath.Join(tmpDir, "page")
	render := exec.CommandContext(ctx, "pdftoppm",
		"-r", strconv.Itoa(t.DPI),
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		"-png", "-singlefile",
		pdfPath, prefix,
	)
	if out, err := render.CombinedOutput(); err != nil {
		return "", fmt.Errorf("pdftoppm failed: %w: %s", err, bytes.TrimSpace(out))
	}

	return t.ImageToText(ctx, prefix+".png")
}

// ImageToText recognizes text in the image at path.
func (t *Tesseract) ImageToText(ctx context.Context, imagePath string) (string, error) {
	args := []string{imagePath, "stdout", "-l", t.Language}
	args = append(args, t.ExtraArgs...)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "tesseract", args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract failed: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
