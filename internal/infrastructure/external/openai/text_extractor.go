package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"github.com/Prygunov-Andrei/finance-sub003/internal/application/port"
)

// FitzTextExtractor reads the text layer of PDF documents with mupdf
type FitzTextExtractor struct {
	maxPages int
	logger   *zap.Logger
}

// NewFitzTextExtractor creates a text extractor reading at most maxPages pages
func NewFitzTextExtractor(maxPages int, logger *zap.Logger) *FitzTextExtractor {
	if maxPages <= 0 {
		maxPages = 3
	}
	return &FitzTextExtractor{
		maxPages: maxPages,
		logger:   logger,
	}
}

// ExtractText returns the text of the first pages of the document
func (e *FitzTextExtractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty document")
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("failed to open document: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages > e.maxPages {
		pages = e.maxPages
	}

	var sb strings.Builder
	for page := 0; page < pages; page++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := doc.Text(page)
		if err != nil {
			e.logger.Warn("Failed to extract page text", zap.Int("page", page), zap.Error(err))
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	return strings.TrimSpace(sb.String()), nil
}

// Verify interface compliance
var _ port.DocumentTextExtractor = (*FitzTextExtractor)(nil)
