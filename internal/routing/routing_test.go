package routing

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-triage/constants"
	"github.com/joseph-ayodele/invoice-triage/internal/identify"
	"github.com/joseph-ayodele/invoice-triage/internal/repository"
)

type fakeLedger struct {
	keys      map[string]bool
	recorded  []string
	recordErr error
}

func newFakeLedger(existing ...string) *fakeLedger {
	l := &fakeLedger{keys: map[string]bool{}}
	for _, k := range existing {
		l.keys[k] = true
	}
	return l
}

func (l *fakeLedger) Key(payer, invoice string) (string, bool) {
	return repository.BuildKey(constants.KeyPolicyComposite, payer, invoice)
}

func (l *fakeLedger) IsDuplicate(key string) bool { return l.keys[key] }

func (l *fakeLedger) Record(key, filename string) error {
	if l.recordErr != nil {
		return l.recordErr
	}
	l.keys[key] = true
	l.recorded = append(l.recorded, key+"|"+filename)
	return nil
}

func folders(root string) map[constants.Decision]string {
	return map[constants.Decision]string{
		constants.DecisionProcessed:       filepath.Join(root, "processed"),
		constants.DecisionManualReview:    filepath.Join(root, "manual_review"),
		constants.DecisionEnquiries:       filepath.Join(root, "enquiries"),
		constants.DecisionLikelyDuplicate: filepath.Join(root, "likely_duplicates"),
	}
}

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(name), 0o644))
	return p
}

var fullIDs = identify.Identifiers{InvoiceNumber: "10234", PayerID: "12345678901"}

func TestDecide(t *testing.T) {
	r := NewRouter(newFakeLedger("12345678901|10234"), Options{ConfidenceThreshold: 60}, nil)

	tests := []struct {
		name     string
		in       Input
		decision constants.Decision
		reason   string
	}{
		{"unsupported wins over everything", Input{Supported: false, IDs: fullIDs}, constants.DecisionEnquiries, ReasonUnsupported},
		{"missing payer", Input{Supported: true, IDs: identify.Identifiers{InvoiceNumber: "1"}}, constants.DecisionManualReview, ReasonMissingIDs},
		{"missing invoice", Input{Supported: true, IDs: identify.Identifiers{PayerID: "12345678901"}}, constants.DecisionManualReview, ReasonMissingIDs},
		{"duplicate beats low confidence", Input{Supported: true, IDs: fullIDs, HasConfidence: true, Confidence: 10}, constants.DecisionLikelyDuplicate, ReasonDuplicate},
		{"threshold is not low", Input{Supported: true, IDs: identify.Identifiers{InvoiceNumber: "5", PayerID: "1"}, HasConfidence: true, Confidence: 60}, constants.DecisionProcessed, ReasonAccepted},
		{"just under threshold", Input{Supported: true, IDs: identify.Identifiers{InvoiceNumber: "5", PayerID: "1"}, HasConfidence: true, Confidence: 59.999}, constants.DecisionManualReview, ReasonLowConfidence},
		{"no confidence is never low", Input{Supported: true, IDs: identify.Identifiers{InvoiceNumber: "5", PayerID: "1"}}, constants.DecisionProcessed, ReasonAccepted},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, reason, _ := r.Decide(tc.in)
			assert.Equal(t, tc.decision, d)
			assert.Equal(t, tc.reason, reason)
		})
	}
}

func TestRouteProcessedRecordsThenMoves(t *testing.T) {
	root := t.TempDir()
	src := touch(t, filepath.Join(root, "intake"), "inv.pdf")
	ledger := newFakeLedger()
	r := NewRouter(ledger, Options{Folders: folders(root), ConfidenceThreshold: 60}, nil)

	out := r.Route(Input{Path: src, Supported: true, IDs: fullIDs})
	require.NoError(t, out.Err)
	assert.Equal(t, constants.DecisionProcessed, out.Decision)
	assert.True(t, out.Recorded)
	assert.True(t, out.Moved)
	assert.Equal(t, filepath.Join(root, "processed", "inv.pdf"), out.Destination)
	assert.Equal(t, []string{"12345678901|10234|inv.pdf"}, ledger.recorded)
	assert.NoFileExists(t, src)
}

func TestRouteLowConfidenceIsRecorded(t *testing.T) {
	root := t.TempDir()
	src := touch(t, filepath.Join(root, "intake"), "scan.jpg")
	ledger := newFakeLedger()
	r := NewRouter(ledger, Options{Folders: folders(root), ConfidenceThreshold: 60}, nil)

	out := r.Route(Input{Path: src, Supported: true, IDs: fullIDs, HasConfidence: true, Confidence: 45})
	require.NoError(t, out.Err)
	assert.Equal(t, constants.DecisionManualReview, out.Decision)
	assert.Equal(t, ReasonLowConfidence, out.Reason)
	assert.Len(t, ledger.recorded, 1)
	assert.FileExists(t, filepath.Join(root, "manual_review", "scan.jpg"))
}

func TestRouteLedgerFailureGoesToManualReview(t *testing.T) {
	root := t.TempDir()
	src := touch(t, filepath.Join(root, "intake"), "inv.pdf")
	ledger := newFakeLedger()
	ledger.recordErr = errors.New("disk full")
	r := NewRouter(ledger, Options{Folders: folders(root), ConfidenceThreshold: 60}, nil)

	out := r.Route(Input{Path: src, Supported: true, IDs: fullIDs})
	require.NoError(t, out.Err)
	assert.Equal(t, constants.DecisionManualReview, out.Decision)
	assert.Equal(t, ReasonLedgerFailed, out.Reason)
	assert.False(t, out.Recorded)
	assert.FileExists(t, filepath.Join(root, "manual_review", "inv.pdf"))
}

func TestRouteDuplicateActions(t *testing.T) {
	t.Run("move", func(t *testing.T) {
		root := t.TempDir()
		src := touch(t, filepath.Join(root, "intake"), "again.pdf")
		ledger := newFakeLedger("12345678901|10234")
		r := NewRouter(ledger, Options{Folders: folders(root), DuplicateAction: constants.DuplicateActionMove}, nil)

		out := r.Route(Input{Path: src, Supported: true, IDs: fullIDs})
		require.NoError(t, out.Err)
		assert.Equal(t, constants.DecisionLikelyDuplicate, out.Decision)
		assert.True(t, out.Moved)
		assert.FileExists(t, filepath.Join(root, "likely_duplicates", "again.pdf"))
		assert.Empty(t, ledger.recorded)
	})

	t.Run("skip", func(t *testing.T) {
		root := t.TempDir()
		src := touch(t, filepath.Join(root, "intake"), "again.pdf")
		r := NewRouter(newFakeLedger("12345678901|10234"), Options{Folders: folders(root), DuplicateAction: constants.DuplicateActionSkip}, nil)

		out := r.Route(Input{Path: src, Supported: true, IDs: fullIDs})
		require.NoError(t, out.Err)
		assert.Equal(t, constants.DecisionLikelyDuplicate, out.Decision)
		assert.False(t, out.Moved)
		assert.Empty(t, out.Destination)
		assert.FileExists(t, src)
	})
}

func TestRouteMissingFolder(t *testing.T) {
	root := t.TempDir()
	src := touch(t, root, "notes.txt")
	r := NewRouter(newFakeLedger(), Options{Folders: map[constants.Decision]string{}}, nil)

	out := r.Route(Input{Path: src})
	assert.Equal(t, constants.DecisionEnquiries, out.Decision)
	assert.Error(t, out.Err)
	assert.FileExists(t, src)
}

func TestMoveSafelyCollisions(t *testing.T) {
	root := t.TempDir()
	dst := filepath.Join(root, "processed")
	touch(t, dst, "invoice.pdf")
	touch(t, dst, "invoice (1).pdf")

	src := touch(t, filepath.Join(root, "intake"), "invoice.pdf")
	got, err := MoveSafely(src, dst)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dst, "invoice (2).pdf"), got)

	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "invoice.pdf", string(data))

	// originals untouched
	data, err = os.ReadFile(filepath.Join(dst, "invoice.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "invoice.pdf", string(data))
}

func TestMoveSafelyFirstCollisionAndNoExtension(t *testing.T) {
	root := t.TempDir()
	dst := filepath.Join(root, "out")
	touch(t, dst, "a.pdf")
	touch(t, dst, "README")

	got, err := MoveSafely(touch(t, filepath.Join(root, "in"), "a.pdf"), dst)
	require.NoError(t, err)
	assert.Equal(t, "a (1).pdf", filepath.Base(got))

	got, err = MoveSafely(touch(t, filepath.Join(root, "in"), "README"), dst)
	require.NoError(t, err)
	assert.Equal(t, "README (1)", filepath.Base(got))
}

func TestMoveSafelyCreatesDestination(t *testing.T) {
	root := t.TempDir()
	src := touch(t, root, "x.docx")
	got, err := MoveSafely(src, filepath.Join(root, "deep", "er"))
	require.NoError(t, err)
	assert.FileExists(t, got)
	assert.NoFileExists(t, src)
}

func TestMoveSafelyMissingSource(t *testing.T) {
	root := t.TempDir()
	_, err := MoveSafely(filepath.Join(root, "gone.pdf"), filepath.Join(root, "out"))
	require.Error(t, err)
}

func TestCopyFileRefusesExisting(t *testing.T) {
	root := t.TempDir()
	src := touch(t, root, "a.pdf")
	dst := touch(t, filepath.Join(root, "out"), "a.pdf")
	err := copyFile(src, dst)
	assert.ErrorIs(t, err, os.ErrExist)
}
