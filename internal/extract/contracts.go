package extract

import (
	"context"
	"time"

	"github.com/joseph-ayodele/invoice-triage/constants"
)

// TextExtractor is one document family's file -> text stage.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (Result, error)
}

// Result is the uniform extraction outcome handed to routing. Failure is non-nil when
// the file could not be read; Text is then empty (and Confidence 0 for images).
type Result struct {
	Text       string
	Pages      int
	SourceType constants.Format
	Method     string // "pdf-text" | "pdf-content-stream" | "docx-xml" | "sheet-cells" | "image-ocr"
	Language   string
	Duration   time.Duration
	Warnings   []string

	// Confidence is the OCR mean word confidence (0..100); only image scans carry one.
	Confidence    float64
	HasConfidence bool

	Failure error
}

// Failed reports whether extraction failed.
func (r Result) Failed() bool { return r.Failure != nil }

// LowConfidence reports whether the result carries a confidence strictly below threshold.
// Structured formats have no confidence and are never low-confidence.
func (r Result) LowConfidence(threshold float64) bool {
	return r.HasConfidence && r.Confidence < threshold
}
