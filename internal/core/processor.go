package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/invoice-triage/constants"
	"github.com/joseph-ayodele/invoice-triage/internal/common"
	"github.com/joseph-ayodele/invoice-triage/internal/extract"
	"github.com/joseph-ayodele/invoice-triage/internal/identify"
	"github.com/joseph-ayodele/invoice-triage/internal/repository"
	"github.com/joseph-ayodele/invoice-triage/internal/routing"
)

// Extractor turns a file into text; failures are carried in the Result.
type Extractor interface {
	Supports(path string) bool
	Extract(ctx context.Context, path string) extract.Result
}

// Journal is the optional decision audit trail.
type Journal interface {
	Record(ctx context.Context, e repository.JournalEntry) (repository.JournalEntry, error)
}

// Observer receives per-document measurements.
type Observer interface {
	ObserveExtraction(format constants.Format, d time.Duration, failed bool)
	ObserveDecision(d constants.Decision)
	ObserveMoveFailure()
}

// FileResult is the per-file triage outcome.
type FileResult struct {
	Path          string
	FileName      string
	Format        constants.Format
	Decision      constants.Decision
	Reason        string
	Destination   string
	Moved         bool
	InvoiceNumber string
	PayerID       string
	Confidence    float64
	HasConfidence bool
	Method        string
	HashHex       string
	ExtractErr    string
	Err           string
	Duration      time.Duration
}

// Processor runs one file through extract -> identify -> ledger -> route.
type Processor struct {
	logger    *slog.Logger
	extractor Extractor
	router    *routing.Router
	journal   Journal
	observer  Observer
}

// NewProcessor wires the stages; journal and observer may be nil.
func NewProcessor(
	logger *slog.Logger,
	extractor Extractor,
	router *routing.Router,
	journal Journal,
	observer Observer,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		logger:    logger,
		extractor: extractor,
		router:    router,
		journal:   journal,
		observer:  observer,
	}
}

// ProcessFile triages the file at path. A non-nil error means the file could not be
// placed (for example the move failed); the returned result still describes the
// decision that was taken.
func (p *Processor) ProcessFile(ctx context.Context, path string) (FileResult, error) {
	start := time.Now()
	name := filepath.Base(path)
	res := FileResult{
		Path:     path,
		FileName: name,
		Format:   constants.MapExtToFormat(filepath.Ext(path)),
	}
	logger := p.logger.With("file", name)
	if runID := common.RunIDFromContext(ctx); runID != "" {
		logger = logger.With("run_id", runID)
	}

	hashHex, err := hashFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// gone before we got to it; there is nothing left to route
		err = fmt.Errorf("%w: %s: %w", common.ErrNotFound, name, err)
		res.Err = err.Error()
		logger.Error("file vanished before triage", "error", err)
		return res, err
	case err != nil:
		// unreadable files are still routed; extraction reports the failure
		logger.Warn("failed to hash file", "error", common.WrapError(err, "read "+name))
	default:
		res.HashHex = hashHex
	}

	in := routing.Input{Path: path, Supported: p.extractor.Supports(path)}
	if in.Supported {
		ex := p.extractor.Extract(ctx, path)
		if p.observer != nil {
			p.observer.ObserveExtraction(res.Format, ex.Duration, ex.Failed())
		}
		res.Method = ex.Method
		res.Confidence, res.HasConfidence = ex.Confidence, ex.HasConfidence
		if ex.Failed() {
			res.ExtractErr = ex.Failure.Error()
		}

		in.IDs = identify.Extract(ex.Text)
		in.Confidence, in.HasConfidence = ex.Confidence, ex.HasConfidence
		res.InvoiceNumber, res.PayerID = in.IDs.InvoiceNumber, in.IDs.PayerID
		logger.Debug("identifiers extracted",
			"format", res.Format,
			"method", ex.Method,
			"invoice_number", res.InvoiceNumber,
			"payer_id", res.PayerID,
			"confidence", ex.Confidence,
			"has_confidence", ex.HasConfidence,
		)
	}

	out := p.router.Route(in)
	res.Decision, res.Reason = out.Decision, out.Reason
	res.Destination, res.Moved = out.Destination, out.Moved
	res.Duration = time.Since(start)
	if p.observer != nil {
		p.observer.ObserveDecision(out.Decision)
	}

	if out.Err != nil {
		res.Err = out.Err.Error()
		if p.observer != nil {
			p.observer.ObserveMoveFailure()
		}
		logger.Error("failed to move file", "decision", out.Decision, "error", out.Err)
	} else {
		logger.Info("document routed",
			"decision", out.Decision,
			"reason", out.Reason,
			"destination", out.Destination,
			"invoice_number", res.InvoiceNumber,
			"payer_id", res.PayerID,
		)
	}

	p.recordJournal(ctx, logger, res)

	if out.Err != nil {
		return res, common.NewAppError(common.CodeFS, "place "+name, out.Err)
	}
	return res, nil
}

func (p *Processor) recordJournal(ctx context.Context, logger *slog.Logger, res FileResult) {
	if p.journal == nil {
		return
	}
	errText := res.Err
	if errText == "" {
		errText = res.ExtractErr
	}
	_, err := p.journal.Record(ctx, repository.JournalEntry{
		RunID:         common.RunIDFromContext(ctx),
		FileName:      res.FileName,
		SourcePath:    res.Path,
		ContentSHA256: res.HashHex,
		Destination:   res.Destination,
		Decision:      res.Decision,
		InvoiceNumber: res.InvoiceNumber,
		PayerID:       res.PayerID,
		Confidence:    res.Confidence,
		HasConfidence: res.HasConfidence,
		Error:         errText,
	})
	if err != nil {
		// the routing decision stands; the journal is an audit trail only
		logger.Warn("failed to journal decision", "error", err)
	}
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
