package constants

// Decision is the terminal routing outcome for one document.
type Decision string

// Stable values (written to the journal and the run report).
const (
	DecisionProcessed       Decision = "processed"        // identifiers found, new, confident
	DecisionManualReview    Decision = "manual_review"    // identifiers missing or low OCR confidence
	DecisionEnquiries       Decision = "enquiries"        // unsupported format
	DecisionLikelyDuplicate Decision = "likely_duplicate" // key already in the ledger
)

// AllDecisions lists every decision in a stable order.
var AllDecisions = []Decision{
	DecisionProcessed,
	DecisionManualReview,
	DecisionEnquiries,
	DecisionLikelyDuplicate,
}

// DefaultConfidenceThreshold is the OCR confidence (0..100) below which an image scan
// is considered low-confidence.
const DefaultConfidenceThreshold = 60.0
