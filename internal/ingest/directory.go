package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/invoice-triage/internal/common"
	"github.com/joseph-ayodele/invoice-triage/internal/core"
)

// Ingestor feeds intake files to the processor one at a time.
type Ingestor struct {
	processor FileProcessor
	logger    *slog.Logger
}

func NewIngestor(p FileProcessor, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{processor: p, logger: logger}
}

// IngestPath triages one path. Anything that is not a regular file is rejected.
func (i *Ingestor) IngestPath(ctx context.Context, path string) (core.FileResult, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return core.FileResult{Path: path, FileName: filepath.Base(path), Err: err.Error()}, err
	}
	if !info.Mode().IsRegular() {
		err := fmt.Errorf("%w: not a regular file: %s", common.ErrInvalidInput, path)
		return core.FileResult{Path: path, FileName: filepath.Base(path), Err: err.Error()}, err
	}
	return i.processor.ProcessFile(ctx, path)
}

// IngestDirectory lists root (not recursively) and triages every regular file in
// lexical order. A failing file is counted and the pass continues; only a listing
// error or cancellation ends it early.
func (i *Ingestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]core.FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, fmt.Errorf("%w: intake directory is required", common.ErrInvalidInput)
	}

	// os.ReadDir sorts by filename
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, DirStats{}, common.NewAppError(common.CodeFS, "list intake "+root, err)
	}

	var results []core.FileResult
	var stats DirStats

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return results, stats, err
		}
		stats.Scanned++

		if skipHidden && IsHidden(e.Name()) {
			stats.Skipped++
			continue
		}
		if !e.Type().IsRegular() {
			i.logger.Debug("skipping non-regular entry", "path", e.Name(), "type", e.Type().String())
			stats.Skipped++
			continue
		}
		stats.Matched++

		path := filepath.Join(root, e.Name())
		r, err := i.IngestPath(ctx, path)
		stats.count(r.Decision)
		results = append(results, r)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				i.logger.Warn("file disappeared before processing", "file", e.Name())
			} else {
				i.logger.Error("failed to triage file", "file", e.Name(), "error", err)
			}
			stats.Failed++
			continue
		}
		stats.Succeeded++
	}

	i.logger.Info("intake pass complete",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"processed", stats.Processed,
		"manual_review", stats.ManualReview,
		"enquiries", stats.Enquiries,
		"likely_duplicate", stats.LikelyDuplicate,
	)
	return results, stats, nil
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
