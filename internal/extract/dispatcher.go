package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/invoice-triage/constants"
	"github.com/joseph-ayodele/invoice-triage/internal/common"
)

// Dispatcher picks the extractor for a file's format and folds every failure into the
// returned Result, so callers never see an error or a panic from a document.
type Dispatcher struct {
	extractors map[constants.Format]TextExtractor
	logger     *slog.Logger
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		extractors: make(map[constants.Format]TextExtractor),
		logger:     logger,
	}
}

// NewDefaultDispatcher wires the PDF, DOCX and spreadsheet readers plus image OCR.
func NewDefaultDispatcher(images ImageOCR, logger *slog.Logger) *Dispatcher {
	d := NewDispatcher(logger)
	d.Register(constants.PDF, NewPDFExtractor(d.logger))
	d.Register(constants.DOCX, NewDOCXExtractor(d.logger))
	d.Register(constants.SHEET, NewSheetExtractor(d.logger))
	d.Register(constants.IMAGE, NewOCRAdapter(images, d.logger))
	return d
}

func (d *Dispatcher) Register(f constants.Format, x TextExtractor) {
	d.extractors[f] = x
}

// Supports reports whether a file with this path's extension has an extractor.
func (d *Dispatcher) Supports(path string) bool {
	_, ok := d.extractors[constants.MapExtToFormat(filepath.Ext(path))]
	return ok
}

// Extract never returns an error: failures become Result.Failure wrapping
// common.ErrExtraction with empty text (and zero confidence for images).
func (d *Dispatcher) Extract(ctx context.Context, path string) (res Result) {
	start := time.Now()
	name := filepath.Base(path)

	format := constants.MapExtToFormat(filepath.Ext(path))
	x, ok := d.extractors[format]
	if !ok {
		return Result{
			SourceType: format,
			Failure:    fmt.Errorf("%w: %s", common.ErrUnsupportedFormat, filepath.Ext(path)),
		}
	}

	fail := func(method string, cause error) Result {
		d.logger.Error("extraction failed", "file", name, "format", format, "error", cause)
		return Result{
			SourceType:    format,
			Method:        method,
			Duration:      time.Since(start),
			HasConfidence: format == constants.IMAGE,
			Failure:       fmt.Errorf("%w: %s: %v", common.ErrExtraction, name, cause),
		}
	}

	defer func() {
		if r := recover(); r != nil {
			res = fail("", fmt.Errorf("panic: %v", r))
		}
	}()

	out, err := x.Extract(ctx, path)
	if err != nil {
		return fail(out.Method, err)
	}
	out.SourceType = format
	if out.Duration == 0 {
		out.Duration = time.Since(start)
	}
	return out
}
