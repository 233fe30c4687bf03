package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/invoice-triage/constants"
	"github.com/joseph-ayodele/invoice-triage/internal/common"
)

// decided_at is stored as fixed-width UTC text so lexical order is time order on
// both dialects.
const journalTimeLayout = "2006-01-02T15:04:05.000000000Z"

const journalSchema = `CREATE TABLE IF NOT EXISTS triage_decisions (
	id             TEXT PRIMARY KEY,
	run_id         TEXT NOT NULL,
	file_name      TEXT NOT NULL,
	source_path    TEXT NOT NULL,
	content_sha256 TEXT NOT NULL DEFAULT '',
	destination    TEXT NOT NULL DEFAULT '',
	decision       TEXT NOT NULL,
	invoice_number TEXT NOT NULL DEFAULT '',
	payer_id       TEXT NOT NULL DEFAULT '',
	confidence     DOUBLE PRECISION,
	error          TEXT NOT NULL DEFAULT '',
	decided_at     TEXT NOT NULL
)`

const journalIndex = `CREATE INDEX IF NOT EXISTS triage_decisions_decided_at ON triage_decisions (decided_at)`

// JournalEntry is one routing decision.
type JournalEntry struct {
	ID            string
	RunID         string
	FileName      string
	SourcePath    string
	ContentSHA256 string
	Destination   string
	Decision      constants.Decision
	InvoiceNumber string
	PayerID       string
	Confidence    float64
	HasConfidence bool
	Error         string
	DecidedAt     time.Time
}

type JournalRepository interface {
	Record(ctx context.Context, e JournalEntry) (JournalEntry, error)
	ListRecent(ctx context.Context, limit int) ([]JournalEntry, error)
	Close()
}

// Journal keeps an audit trail of decisions in sqlite or postgres.
type Journal struct {
	db      *sql.DB
	pool    *pgxpool.Pool
	dialect Dialect
	logger  *slog.Logger
}

// OpenJournal connects and creates the table if needed.
func OpenJournal(ctx context.Context, cfg Config, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, pool, d, err := Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrJournal, err)
	}
	j := &Journal{db: db, pool: pool, dialect: d, logger: logger}

	for _, stmt := range []string{journalSchema, journalIndex} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			j.Close()
			return nil, fmt.Errorf("%w: migrate: %v", common.ErrJournal, err)
		}
	}
	return j, nil
}

func (j *Journal) Dialect() Dialect { return j.dialect }

// placeholders returns n bind markers for the dialect: "?" or "$1".."$n".
func (j *Journal) placeholders(n int) string {
	marks := make([]string, n)
	for i := range marks {
		if j.dialect == DialectPostgres {
			marks[i] = "$" + strconv.Itoa(i+1)
		} else {
			marks[i] = "?"
		}
	}
	return strings.Join(marks, ", ")
}

// Record inserts e, filling ID and DecidedAt when unset, and returns the stored entry.
func (j *Journal) Record(ctx context.Context, e JournalEntry) (JournalEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.DecidedAt.IsZero() {
		e.DecidedAt = time.Now()
	}
	e.DecidedAt = e.DecidedAt.UTC()

	var conf sql.NullFloat64
	if e.HasConfidence {
		conf = sql.NullFloat64{Float64: e.Confidence, Valid: true}
	}

	q := `INSERT INTO triage_decisions
		(id, run_id, file_name, source_path, content_sha256, destination, decision, invoice_number, payer_id, confidence, error, decided_at)
		VALUES (` + j.placeholders(12) + `)`
	_, err := j.db.ExecContext(ctx, q,
		e.ID, e.RunID, e.FileName, e.SourcePath, e.ContentSHA256, e.Destination, string(e.Decision),
		e.InvoiceNumber, e.PayerID, conf, e.Error, e.DecidedAt.Format(journalTimeLayout),
	)
	if err != nil {
		j.logger.Error("failed to record decision", "file", e.FileName, "decision", e.Decision, "error", err)
		return e, fmt.Errorf("%w: insert: %v", common.ErrJournal, err)
	}
	return e, nil
}

// ListRecent returns up to limit entries, newest first.
func (j *Journal) ListRecent(ctx context.Context, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", common.ErrInvalidInput)
	}
	q := `SELECT id, run_id, file_name, source_path, content_sha256, destination, decision, invoice_number, payer_id, confidence, error, decided_at
		FROM triage_decisions ORDER BY decided_at DESC, id DESC LIMIT ` + j.placeholders(1)
	rows, err := j.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", common.ErrJournal, err)
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var (
			e        JournalEntry
			decision string
			conf     sql.NullFloat64
			at       string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.FileName, &e.SourcePath, &e.ContentSHA256, &e.Destination, &decision,
			&e.InvoiceNumber, &e.PayerID, &conf, &e.Error, &at); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", common.ErrJournal, err)
		}
		e.Decision = constants.Decision(decision)
		e.Confidence, e.HasConfidence = conf.Float64, conf.Valid
		if e.DecidedAt, err = time.Parse(journalTimeLayout, at); err != nil {
			return nil, fmt.Errorf("%w: decided_at %q: %v", common.ErrJournal, at, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", common.ErrJournal, err)
	}
	return out, nil
}

func (j *Journal) Close() {
	Close(j.db, j.pool, j.logger)
}
