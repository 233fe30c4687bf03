package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-triage/internal/core"
	"github.com/joseph-ayodele/invoice-triage/internal/ingest"
)

const (
	triageSheet  = "Triage"
	summarySheet = "Summary"
)

// Service renders triage runs as XLSX workbooks.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// RunReportXLSX returns a workbook (as bytes) with one row per file on the Triage
// sheet and the run totals on the Summary sheet.
func (s *Service) RunReportXLSX(runID string, results []core.FileResult, stats ingest.DirStats) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer f.Close()

	// the default "Sheet1" becomes the triage sheet
	if err := f.SetSheetName(f.GetSheetName(0), triageSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("add sheet: %w", err)
	}
	activeIndex, _ := f.GetSheetIndex(triageSheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"File",
		"Format",
		"Decision",
		"Reason",
		"Destination",
		"Invoice No",
		"Payer ABN",
		"OCR Confidence",
		"Error",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(triageSheet, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(triageSheet, "A1", "I1", style)
		_ = f.SetCellStyle(summarySheet, "A1", "A20", style)
	}

	row := 2
	for _, r := range results {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(triageSheet, cell, v)
		}

		write(1, r.FileName)
		write(2, string(r.Format))
		write(3, string(r.Decision))
		write(4, r.Reason)
		dest := r.Destination
		if dest == "" && !r.Moved {
			dest = "(left in place)"
		}
		write(5, dest)
		// identifiers stay text so leading zeros survive
		write(6, r.InvoiceNumber)
		write(7, r.PayerID)
		if r.HasConfidence {
			write(8, r.Confidence)
		}
		errText := r.Err
		if errText == "" {
			errText = r.ExtractErr
		}
		write(9, truncate(errText, 200))

		row++
	}

	_ = f.SetColWidth(triageSheet, "A", "A", 36) // file
	_ = f.SetColWidth(triageSheet, "B", "D", 16) // format, decision, reason
	_ = f.SetColWidth(triageSheet, "E", "E", 60) // destination
	_ = f.SetColWidth(triageSheet, "F", "H", 16) // identifiers, confidence
	_ = f.SetColWidth(triageSheet, "I", "I", 60) // error

	summary := [][2]any{
		{"Run ID", runID},
		{"Generated", time.Now().UTC().Format(time.RFC3339)},
		{"Scanned", stats.Scanned},
		{"Matched", stats.Matched},
		{"Skipped", stats.Skipped},
		{"Succeeded", stats.Succeeded},
		{"Failed", stats.Failed},
		{"Processed", stats.Processed},
		{"Manual review", stats.ManualReview},
		{"Enquiries", stats.Enquiries},
		{"Likely duplicate", stats.LikelyDuplicate},
	}
	for i, kv := range summary {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+1), kv[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+1), kv[1])
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 18)
	_ = f.SetColWidth(summarySheet, "B", "B", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("run report rendered",
		"run_id", runID,
		"rows", len(results),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// WriteRunReport renders the report and writes it to path, creating parent folders.
func (s *Service) WriteRunReport(path, runID string, results []core.FileResult, stats ingest.DirStats) error {
	data, err := s.RunReportXLSX(runID, results, stats)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
