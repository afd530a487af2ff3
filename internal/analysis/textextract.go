package analysis

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// TextExtractor pulls text out of a scanned image with the tesseract OCR
// engine, one process per document.
type TextExtractor struct {
	tesseractPath string
}

// NewTextExtractor locates the tesseract binary.
func NewTextExtractor() (*TextExtractor, error) {
	tesseractPath, err := exec.LookPath("tesseract")
	if err != nil {
		return nil, fmt.Errorf("tesseract not found in PATH: %w", err)
	}
	return &TextExtractor{tesseractPath: tesseractPath}, nil
}

// ExtractText OCRs the image at path. langCode is a tesseract language
// code such as eng or tam; empty uses the engine default.
func (e *TextExtractor) ExtractText(ctx context.Context, path, langCode string) (string, error) {
	args := []string{path, "stdout"}
	if langCode != "" {
		args = append(args, "-l", langCode)
	}

	cmd := exec.CommandContext(ctx, e.tesseractPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
