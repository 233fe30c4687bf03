package constants

// KeyPolicy selects which identifiers form the duplicate-detection key.
type KeyPolicy string

const (
	// KeyPolicyComposite keys on payer ABN + invoice number; both must be extracted.
	KeyPolicyComposite KeyPolicy = "composite"
	// KeyPolicyInvoice keys on the invoice number alone.
	KeyPolicyInvoice KeyPolicy = "invoice"
)

// DuplicateAction selects what happens to a file whose key is already in the ledger.
type DuplicateAction string

const (
	DuplicateActionMove DuplicateAction = "move" // relocate to the duplicates folder
	DuplicateActionSkip DuplicateAction = "skip" // leave the file in the intake folder
)

// DefaultDuplicateAction is the historical behaviour of each key policy.
func DefaultDuplicateAction(p KeyPolicy) DuplicateAction {
	if p == KeyPolicyInvoice {
		return DuplicateActionSkip
	}
	return DuplicateActionMove
}
