package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-triage/constants"
	"github.com/joseph-ayodele/invoice-triage/internal/common"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := OpenJournal(context.Background(), Config{DSN: filepath.Join(t.TempDir(), "journal.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(j.Close)
	return j
}

func TestDialectFor(t *testing.T) {
	assert.Equal(t, DialectPostgres, DialectFor("postgres://u:p@localhost:5432/triage"))
	assert.Equal(t, DialectPostgres, DialectFor("postgresql://localhost/triage"))
	assert.Equal(t, DialectSQLite, DialectFor("/var/lib/triage/journal.db"))
	assert.Equal(t, DialectSQLite, DialectFor("sqlite://journal.db"))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?, ?, ?", (&Journal{dialect: DialectSQLite}).placeholders(3))
	assert.Equal(t, "$1, $2, $3", (&Journal{dialect: DialectPostgres}).placeholders(3))
}

func TestJournalRecordAndList(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first, err := j.Record(ctx, JournalEntry{
		RunID:         "run-1",
		FileName:      "a.pdf",
		SourcePath:    "/in/a.pdf",
		ContentSHA256: "ab12",
		Destination:   "/out/processed/a.pdf",
		Decision:      constants.DecisionProcessed,
		InvoiceNumber: "10234",
		PayerID:       "12345678901",
		DecidedAt:     base,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	_, err = j.Record(ctx, JournalEntry{
		RunID:         "run-1",
		FileName:      "scan.jpg",
		SourcePath:    "/in/scan.jpg",
		Destination:   "/out/manual_review/scan.jpg",
		Decision:      constants.DecisionManualReview,
		Confidence:    45,
		HasConfidence: true,
		DecidedAt:     base.Add(time.Second),
	})
	require.NoError(t, err)

	_, err = j.Record(ctx, JournalEntry{
		RunID:      "run-1",
		FileName:   "notes.txt",
		SourcePath: "/in/notes.txt",
		Decision:   constants.DecisionEnquiries,
		Error:      "unsupported format",
		DecidedAt:  base.Add(2 * time.Second),
	})
	require.NoError(t, err)

	got, err := j.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "notes.txt", got[0].FileName)
	assert.Equal(t, constants.DecisionEnquiries, got[0].Decision)
	assert.False(t, got[0].HasConfidence)
	assert.Equal(t, "unsupported format", got[0].Error)

	assert.Equal(t, "scan.jpg", got[1].FileName)
	assert.True(t, got[1].HasConfidence)
	assert.InDelta(t, 45.0, got[1].Confidence, 1e-9)
	assert.True(t, got[1].DecidedAt.Equal(base.Add(time.Second)))

	all, err := j.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, first.ID, all[2].ID)
	assert.Equal(t, "12345678901", all[2].PayerID)
	assert.Equal(t, "ab12", all[2].ContentSHA256)
}

func TestJournalListRecentRejectsBadLimit(t *testing.T) {
	j := openTestJournal(t)
	_, err := j.ListRecent(context.Background(), 0)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestJournalReopenKeepsRows(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "journal.db")

	j, err := OpenJournal(ctx, Config{DSN: dsn}, nil)
	require.NoError(t, err)
	_, err = j.Record(ctx, JournalEntry{RunID: "r", FileName: "a.pdf", SourcePath: "a.pdf", Decision: constants.DecisionProcessed})
	require.NoError(t, err)
	j.Close()

	j, err = OpenJournal(ctx, Config{DSN: dsn}, nil)
	require.NoError(t, err)
	defer j.Close()
	got, err := j.ListRecent(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
