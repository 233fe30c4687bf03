package repository

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/invoice-triage/constants"
	"github.com/joseph-ayodele/invoice-triage/internal/common"
)

const ledgerSep = "|"

// Ledger is the append-only record of accepted invoices, one line per file:
// "<payer>|<invoice>|<filename>" or "<invoice>|<filename>" depending on the key policy.
// It is read once at load; afterwards only this process appends to it. Not safe for
// concurrent use.
type Ledger struct {
	path   string
	policy constants.KeyPolicy
	// every "|"-terminated prefix of every line, so a key lookup is one map hit
	prefixes map[string]struct{}
	lines    int
	logger   *slog.Logger
}

// LoadLedger reads the ledger at path. A missing file is an empty ledger; any other
// read failure is returned as a LEDGER_ERROR.
func LoadLedger(path string, policy constants.KeyPolicy, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Ledger{
		path:     path,
		policy:   policy,
		prefixes: make(map[string]struct{}),
		logger:   logger,
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("ledger not found, starting empty", "path", path)
		return l, nil
	}
	if err != nil {
		return nil, common.NewAppError(common.CodeLedger, "read ledger "+path, fmt.Errorf("%w: %v", common.ErrLedger, err))
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		l.index(line)
	}
	logger.Info("ledger loaded", "path", path, "records", l.lines, "key_policy", policy)
	return l, nil
}

func (l *Ledger) index(line string) {
	l.lines++
	for i := 0; i < len(line); i++ {
		if line[i] == ledgerSep[0] {
			l.prefixes[line[:i]] = struct{}{}
		}
	}
}

// Key builds the lookup key for the ledger's policy. ok is false when a required
// identifier is missing.
func (l *Ledger) Key(payerID, invoiceNumber string) (key string, ok bool) {
	return BuildKey(l.policy, payerID, invoiceNumber)
}

// BuildKey is Key without a ledger.
func BuildKey(policy constants.KeyPolicy, payerID, invoiceNumber string) (string, bool) {
	if invoiceNumber == "" {
		return "", false
	}
	if policy == constants.KeyPolicyInvoice {
		return invoiceNumber, true
	}
	if payerID == "" {
		return "", false
	}
	return payerID + ledgerSep + invoiceNumber, true
}

// IsDuplicate reports whether some stored line starts with key + "|".
func (l *Ledger) IsDuplicate(key string) bool {
	if key == "" {
		return false
	}
	_, ok := l.prefixes[key]
	return ok
}

// Record appends "<key>|<filename>" to the file. The key becomes visible to
// IsDuplicate only once the write has succeeded.
func (l *Ledger) Record(key, filename string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", common.ErrLedger)
	}
	// a newline in the name would split the record in two
	filename = strings.NewReplacer("\r", " ", "\n", " ").Replace(filename)
	line := key + ledgerSep + filename

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create ledger dir: %v", common.ErrLedger, err)
		}
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", common.ErrLedger, l.path, err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: append %s: %v", common.ErrLedger, l.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", common.ErrLedger, l.path, err)
	}

	l.index(line)
	l.logger.Debug("ledger record appended", "key", key, "file", filename)
	return nil
}

// Len is the number of records seen, loaded plus appended.
func (l *Ledger) Len() int { return l.lines }

func (l *Ledger) Policy() constants.KeyPolicy { return l.policy }

func (l *Ledger) Path() string { return l.path }
