// Package identify pulls the invoice number and payer ABN out of extracted text.
package identify

import (
	"regexp"
	"strings"
)

// Identifiers holds what was found; an empty field means none.
type Identifiers struct {
	InvoiceNumber string
	PayerID       string // ABN, digits only
}

func (i Identifiers) HasInvoice() bool { return i.InvoiceNumber != "" }
func (i Identifiers) HasPayer() bool   { return i.PayerID != "" }

var (
	invoiceLabeled  = regexp.MustCompile(`(?i)(Invoice\s*No[:#]?\s*|Inv\s*[:#]?\s*|Inv\.?#?)\s*(\d+)`)
	invoiceFallback = regexp.MustCompile(`\b\d{4,}\b`)

	abnLabeled  = regexp.MustCompile(`(?i)\bABN[:\s]*([0-9 ]{11,20})\b`)
	abnFallback = regexp.MustCompile(`\b\d{11}\b`)

	spaceLike = strings.NewReplacer(
		"\u00a0", " ",
		"\u202f", " ",
		"\u2007", " ",
		"\r", " ",
		"\n", " ",
	)
)

// Normalize maps non-breaking spaces and line breaks to plain spaces so labels
// split across lines still match.
func Normalize(text string) string {
	return spaceLike.Replace(text)
}

// Extract applies the labeled patterns first and falls back to bare digit runs.
// The first match in document order wins. The fallbacks can pick up dates, phone
// numbers or amounts; callers treat them as heuristics.
func Extract(text string) Identifiers {
	text = Normalize(text)
	return Identifiers{
		InvoiceNumber: InvoiceNumber(text),
		PayerID:       PayerID(text),
	}
}

// InvoiceNumber returns the labeled invoice number, else the first run of 4+ digits.
func InvoiceNumber(text string) string {
	if m := invoiceLabeled.FindStringSubmatch(text); m != nil {
		return m[2]
	}
	return invoiceFallback.FindString(text)
}

// PayerID returns the labeled ABN with its spaces removed, else the first bare
// 11-digit run.
func PayerID(text string) string {
	if m := abnLabeled.FindStringSubmatch(text); m != nil {
		if id := strings.ReplaceAll(m[1], " ", ""); id != "" {
			return id
		}
	}
	return abnFallback.FindString(text)
}
