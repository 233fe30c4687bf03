// Package routing decides where a document goes and moves it there.
package routing

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/joseph-ayodele/invoice-triage/constants"
	"github.com/joseph-ayodele/invoice-triage/internal/identify"
)

// Why a decision was taken; stable strings for logs, the journal and the report.
const (
	ReasonUnsupported   = "unsupported_format"
	ReasonMissingIDs    = "missing_identifiers"
	ReasonDuplicate     = "duplicate"
	ReasonLowConfidence = "low_confidence"
	ReasonAccepted      = "accepted"
	ReasonLedgerFailed  = "ledger_append_failed"
)

// Ledger is the duplicate store the router consults and appends to.
type Ledger interface {
	Key(payerID, invoiceNumber string) (string, bool)
	IsDuplicate(key string) bool
	Record(key, filename string) error
}

type Options struct {
	Folders             map[constants.Decision]string
	ConfidenceThreshold float64
	DuplicateAction     constants.DuplicateAction
}

// Input is everything the decision depends on.
type Input struct {
	Path          string
	Supported     bool
	IDs           identify.Identifiers
	Confidence    float64
	HasConfidence bool
}

// Outcome is where a document ended up. Destination is empty when the file was left
// in place; Err is set when the move failed after the decision was made.
type Outcome struct {
	Decision    constants.Decision
	Reason      string
	Key         string
	Destination string
	Moved       bool
	Recorded    bool
	Err         error
}

// Router applies the triage rules in order. Not safe for concurrent use.
type Router struct {
	ledger Ledger
	opts   Options
	logger *slog.Logger
}

func NewRouter(ledger Ledger, opts Options, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DuplicateAction == "" {
		opts.DuplicateAction = constants.DuplicateActionMove
	}
	return &Router{ledger: ledger, opts: opts, logger: logger}
}

// Decide returns the decision without touching the ledger or the filesystem.
func (r *Router) Decide(in Input) (constants.Decision, string, string) {
	if !in.Supported {
		return constants.DecisionEnquiries, ReasonUnsupported, ""
	}
	key, ok := r.ledger.Key(in.IDs.PayerID, in.IDs.InvoiceNumber)
	if !ok {
		return constants.DecisionManualReview, ReasonMissingIDs, ""
	}
	if r.ledger.IsDuplicate(key) {
		return constants.DecisionLikelyDuplicate, ReasonDuplicate, key
	}
	if in.HasConfidence && in.Confidence < r.opts.ConfidenceThreshold {
		return constants.DecisionManualReview, ReasonLowConfidence, key
	}
	return constants.DecisionProcessed, ReasonAccepted, key
}

// Route decides, records accepted keys in the ledger, then moves the file.
func (r *Router) Route(in Input) Outcome {
	decision, reason, key := r.Decide(in)
	out := Outcome{Decision: decision, Reason: reason, Key: key}
	name := filepath.Base(in.Path)

	// a Processed file always has a ledger line
	if reason == ReasonAccepted || reason == ReasonLowConfidence {
		if err := r.ledger.Record(key, name); err != nil {
			r.logger.Error("ledger append failed, sending to manual review", "file", name, "key", key, "error", err)
			out.Decision, out.Reason = constants.DecisionManualReview, ReasonLedgerFailed
		} else {
			out.Recorded = true
		}
	}

	if out.Decision == constants.DecisionLikelyDuplicate && r.opts.DuplicateAction == constants.DuplicateActionSkip {
		r.logger.Info("likely duplicate left in place", "file", name, "key", key)
		return out
	}

	dir, ok := r.opts.Folders[out.Decision]
	if !ok || dir == "" {
		out.Err = fmt.Errorf("no folder configured for %s", out.Decision)
		return out
	}
	dst, err := MoveSafely(in.Path, dir)
	if err != nil {
		out.Err = fmt.Errorf("move %s: %w", name, err)
		return out
	}
	out.Destination, out.Moved = dst, true
	return out
}
