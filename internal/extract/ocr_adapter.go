package extract

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/invoice-triage/constants"
	"github.com/joseph-ayodele/invoice-triage/internal/ocr"
)

// ImageOCR is the slice of ocr.Extractor the adapter needs.
type ImageOCR interface {
	Extract(ctx context.Context, path string) (ocr.ExtractionResult, error)
}

type OCRAdapter struct {
	extractor ImageOCR
	logger    *slog.Logger
}

func NewOCRAdapter(e ImageOCR, l *slog.Logger) *OCRAdapter {
	if l == nil {
		l = slog.Default()
	}
	return &OCRAdapter{
		extractor: e,
		logger:    l,
	}
}

func (a *OCRAdapter) Extract(ctx context.Context, path string) (Result, error) {
	r, err := a.extractor.Extract(ctx, path)
	if err != nil {
		return Result{SourceType: constants.IMAGE, Method: "image-ocr", HasConfidence: true, Warnings: r.Warnings}, err
	}
	a.logger.Debug("image ocr done", "path", path, "confidence", r.Confidence, "tokens", r.Tokens)
	return Result{
		Text:          r.Text,
		Pages:         1,
		SourceType:    constants.IMAGE,
		Method:        r.Method,
		Language:      r.Language,
		Duration:      r.Duration,
		Warnings:      r.Warnings,
		Confidence:    r.Confidence,
		HasConfidence: true,
	}, nil
}
