package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-triage/constants"
)

// SheetExtractor flattens the first worksheet into one line of cell values.
// Only OOXML workbooks open; legacy .xls fails and is reported as a failure.
type SheetExtractor struct {
	logger *slog.Logger
}

func NewSheetExtractor(logger *slog.Logger) *SheetExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &SheetExtractor{logger: logger}
}

func (x *SheetExtractor) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	res := Result{SourceType: constants.SHEET, Method: "sheet-cells"}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return res, fmt.Errorf("open workbook: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			x.logger.Warn("close workbook", "path", path, "error", err)
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return res, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return res, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	var cells []string
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		for _, v := range row {
			if v = strings.TrimSpace(v); v != "" {
				cells = append(cells, v)
			}
		}
	}

	res.Text = strings.Join(cells, " ")
	res.Pages = 1
	res.Duration = time.Since(start)
	x.logger.Debug("sheet text extracted", "path", path, "sheet", sheets[0], "cells", len(cells))
	return res, nil
}
