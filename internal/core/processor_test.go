package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-triage/constants"
	"github.com/joseph-ayodele/invoice-triage/internal/common"
	"github.com/joseph-ayodele/invoice-triage/internal/extract"
	"github.com/joseph-ayodele/invoice-triage/internal/repository"
	"github.com/joseph-ayodele/invoice-triage/internal/routing"
)

// fakeExtractor answers by file name.
type fakeExtractor struct {
	results map[string]extract.Result
	calls   []string
}

func (f *fakeExtractor) Supports(path string) bool {
	return constants.IsAllowedExt(filepath.Ext(path))
}

func (f *fakeExtractor) Extract(_ context.Context, path string) extract.Result {
	f.calls = append(f.calls, filepath.Base(path))
	return f.results[filepath.Base(path)]
}

type fakeJournal struct {
	entries []repository.JournalEntry
	err     error
}

func (j *fakeJournal) Record(_ context.Context, e repository.JournalEntry) (repository.JournalEntry, error) {
	if j.err != nil {
		return e, j.err
	}
	j.entries = append(j.entries, e)
	return e, nil
}

type fakeObserver struct {
	decisions   []constants.Decision
	extractions int
	failures    int
	moveFails   int
}

func (o *fakeObserver) ObserveExtraction(_ constants.Format, _ time.Duration, failed bool) {
	o.extractions++
	if failed {
		o.failures++
	}
}
func (o *fakeObserver) ObserveDecision(d constants.Decision) { o.decisions = append(o.decisions, d) }
func (o *fakeObserver) ObserveMoveFailure()                  { o.moveFails++ }

type env struct {
	root      string
	intake    string
	ledger    string
	extractor *fakeExtractor
	journal   *fakeJournal
	observer  *fakeObserver
	proc      *Processor
}

func newEnv(t *testing.T, policy constants.KeyPolicy) *env {
	t.Helper()
	root := t.TempDir()
	e := &env{
		root:      root,
		intake:    filepath.Join(root, "intake"),
		ledger:    filepath.Join(root, "processed_invoices.txt"),
		extractor: &fakeExtractor{results: map[string]extract.Result{}},
		journal:   &fakeJournal{},
		observer:  &fakeObserver{},
	}
	require.NoError(t, os.MkdirAll(e.intake, 0o755))

	l, err := repository.LoadLedger(e.ledger, policy, nil)
	require.NoError(t, err)
	router := routing.NewRouter(l, routing.Options{
		Folders: map[constants.Decision]string{
			constants.DecisionProcessed:       e.dir(constants.DecisionProcessed),
			constants.DecisionManualReview:    e.dir(constants.DecisionManualReview),
			constants.DecisionEnquiries:       e.dir(constants.DecisionEnquiries),
			constants.DecisionLikelyDuplicate: e.dir(constants.DecisionLikelyDuplicate),
		},
		ConfidenceThreshold: constants.DefaultConfidenceThreshold,
		DuplicateAction:     constants.DefaultDuplicateAction(policy),
	}, nil)
	e.proc = NewProcessor(nil, e.extractor, router, e.journal, e.observer)
	return e
}

func (e *env) dir(d constants.Decision) string {
	return filepath.Join(e.root, string(d))
}

func (e *env) put(t *testing.T, name string, res extract.Result) string {
	t.Helper()
	p := filepath.Join(e.intake, name)
	require.NoError(t, os.WriteFile(p, []byte("content of "+name), 0o644))
	e.extractor.results[name] = res
	return p
}

func (e *env) ledgerText(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(e.ledger)
	if errors.Is(err, os.ErrNotExist) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

func TestProcessFileAccepted(t *testing.T) {
	e := newEnv(t, constants.KeyPolicyComposite)
	path := e.put(t, "inv.pdf", extract.Result{Text: "Invoice No: 10234\nABN 12 345 678 901", Method: "pdf-text"})

	ctx := common.WithRunID(context.Background(), "run-42")
	res, err := e.proc.ProcessFile(ctx, path)
	require.NoError(t, err)

	assert.Equal(t, constants.DecisionProcessed, res.Decision)
	assert.Equal(t, routing.ReasonAccepted, res.Reason)
	assert.Equal(t, "10234", res.InvoiceNumber)
	assert.Equal(t, "12345678901", res.PayerID)
	assert.Equal(t, filepath.Join(e.dir(constants.DecisionProcessed), "inv.pdf"), res.Destination)
	assert.Len(t, res.HashHex, 64)
	assert.FileExists(t, res.Destination)
	assert.NoFileExists(t, path)
	assert.Equal(t, "12345678901|10234|inv.pdf\n", e.ledgerText(t))

	require.Len(t, e.journal.entries, 1)
	assert.Equal(t, "run-42", e.journal.entries[0].RunID)
	assert.Equal(t, res.HashHex, e.journal.entries[0].ContentSHA256)
	assert.Equal(t, []constants.Decision{constants.DecisionProcessed}, e.observer.decisions)
	assert.Equal(t, 1, e.observer.extractions)
}

func TestProcessFileLowConfidenceImage(t *testing.T) {
	e := newEnv(t, constants.KeyPolicyComposite)
	path := e.put(t, "scan.jpg", extract.Result{
		Text:          "Inv# 555 ABN 98765432109",
		HasConfidence: true,
		Confidence:    45,
	})

	res, err := e.proc.ProcessFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, constants.DecisionManualReview, res.Decision)
	assert.Equal(t, routing.ReasonLowConfidence, res.Reason)
	assert.True(t, res.HasConfidence)
	assert.Equal(t, "98765432109|555|scan.jpg\n", e.ledgerText(t))
	assert.FileExists(t, filepath.Join(e.dir(constants.DecisionManualReview), "scan.jpg"))
}

func TestProcessFileUnsupported(t *testing.T) {
	e := newEnv(t, constants.KeyPolicyComposite)
	path := e.put(t, "notes.txt", extract.Result{})

	res, err := e.proc.ProcessFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, constants.DecisionEnquiries, res.Decision)
	assert.Empty(t, e.extractor.calls, "no extraction for unsupported files")
	assert.Zero(t, e.observer.extractions)
	assert.Empty(t, e.ledgerText(t))
	assert.NoFileExists(t, e.ledger)
	assert.FileExists(t, filepath.Join(e.dir(constants.DecisionEnquiries), "notes.txt"))
}

func TestProcessFileExtractionFailure(t *testing.T) {
	e := newEnv(t, constants.KeyPolicyComposite)
	path := e.put(t, "broken.docx", extract.Result{Failure: errors.New("extraction failed: bad zip")})

	res, err := e.proc.ProcessFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, constants.DecisionManualReview, res.Decision)
	assert.Equal(t, routing.ReasonMissingIDs, res.Reason)
	assert.Contains(t, res.ExtractErr, "bad zip")
	assert.Equal(t, 1, e.observer.failures)
	require.Len(t, e.journal.entries, 1)
	assert.Contains(t, e.journal.entries[0].Error, "bad zip")
}

func TestProcessFileDuplicatePair(t *testing.T) {
	e := newEnv(t, constants.KeyPolicyComposite)
	text := "Invoice No 10234 ABN 12345678901"
	first := e.put(t, "a.pdf", extract.Result{Text: text})
	second := e.put(t, "b.docx", extract.Result{Text: text})

	r1, err := e.proc.ProcessFile(context.Background(), first)
	require.NoError(t, err)
	r2, err := e.proc.ProcessFile(context.Background(), second)
	require.NoError(t, err)

	assert.Equal(t, constants.DecisionProcessed, r1.Decision)
	assert.Equal(t, constants.DecisionLikelyDuplicate, r2.Decision)
	assert.FileExists(t, filepath.Join(e.dir(constants.DecisionLikelyDuplicate), "b.docx"))
	assert.Equal(t, "12345678901|10234|a.pdf\n", e.ledgerText(t))
}

func TestProcessFileInvoicePolicySkipsDuplicates(t *testing.T) {
	e := newEnv(t, constants.KeyPolicyInvoice)
	first := e.put(t, "a.pdf", extract.Result{Text: "Invoice No 77"})
	second := e.put(t, "b.pdf", extract.Result{Text: "Invoice No 77 ABN 12345678901"})

	r1, err := e.proc.ProcessFile(context.Background(), first)
	require.NoError(t, err)
	r2, err := e.proc.ProcessFile(context.Background(), second)
	require.NoError(t, err)

	assert.Equal(t, constants.DecisionProcessed, r1.Decision)
	assert.Equal(t, constants.DecisionLikelyDuplicate, r2.Decision)
	assert.False(t, r2.Moved)
	assert.FileExists(t, second)
	assert.Equal(t, "77|a.pdf\n", e.ledgerText(t))
}

func TestProcessFileJournalFailureKeepsDecision(t *testing.T) {
	e := newEnv(t, constants.KeyPolicyComposite)
	e.journal.err = errors.New("database is locked")
	path := e.put(t, "inv.pdf", extract.Result{Text: "Invoice No 1 ABN 12345678901"})

	res, err := e.proc.ProcessFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, constants.DecisionProcessed, res.Decision)
}

func TestProcessFileMissing(t *testing.T) {
	e := newEnv(t, constants.KeyPolicyComposite)

	_, err := e.proc.ProcessFile(context.Background(), filepath.Join(e.intake, "gone.pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Empty(t, e.observer.decisions)
}

func TestProcessFileUnreadableIsStillRouted(t *testing.T) {
	if runtime.GOOS == "windows" || os.Getuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	e := newEnv(t, constants.KeyPolicyComposite)
	path := e.put(t, "locked.pdf", extract.Result{Failure: errors.New("extraction failed: permission denied")})
	require.NoError(t, os.Chmod(path, 0o000))

	res, err := e.proc.ProcessFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, constants.DecisionManualReview, res.Decision)
	assert.Empty(t, res.HashHex)
	assert.Equal(t, []string{"locked.pdf"}, e.extractor.calls)
	assert.NoFileExists(t, path)
	assert.FileExists(t, filepath.Join(e.dir(constants.DecisionManualReview), "locked.pdf"))
	require.Len(t, e.journal.entries, 1)
	assert.Empty(t, e.journal.entries[0].ContentSHA256)
}

func TestProcessFileMoveFailure(t *testing.T) {
	e := newEnv(t, constants.KeyPolicyComposite)
	// a regular file where the enquiries folder should be makes the move fail
	require.NoError(t, os.WriteFile(e.dir(constants.DecisionEnquiries), []byte("x"), 0o644))
	path := e.put(t, "notes.txt", extract.Result{})

	res, err := e.proc.ProcessFile(context.Background(), path)
	require.Error(t, err)
	assert.Equal(t, common.CodeFS, common.ErrorCode(err))
	assert.Equal(t, constants.DecisionEnquiries, res.Decision)
	assert.NotEmpty(t, res.Err)
	assert.Equal(t, 1, e.observer.moveFails)
	assert.FileExists(t, path)
}
