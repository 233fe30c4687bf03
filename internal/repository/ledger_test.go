package repository

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-triage/constants"
	"github.com/joseph-ayodele/invoice-triage/internal/common"
)

func TestLoadLedgerMissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed_invoices.txt")

	l, err := LoadLedger(path, constants.KeyPolicyComposite, nil)
	require.NoError(t, err)
	assert.Zero(t, l.Len())
	assert.False(t, l.IsDuplicate("12345678901|10234"))
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "load must not create the file")
}

func TestLoadLedgerUnreadable(t *testing.T) {
	// a directory in place of the file is a read error other than not-exist
	dir := t.TempDir()

	_, err := LoadLedger(dir, constants.KeyPolicyComposite, nil)
	require.Error(t, err)
	assert.Equal(t, common.CodeLedger, common.ErrorCode(err))
	assert.ErrorIs(t, err, common.ErrLedger)
}

func TestLedgerIsDuplicate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.txt")
	require.NoError(t, os.WriteFile(path, []byte(
		"12345678901|10234|a.pdf\r\n"+
			"\n"+
			"98765432109|77|b.docx\n"), 0o644))

	l, err := LoadLedger(path, constants.KeyPolicyComposite, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, l.Len())

	tests := []struct {
		key  string
		want bool
	}{
		{"12345678901|10234", true},
		{"98765432109|77", true},
		{"12345678901|1023", false}, // numeric prefix must not match
		{"12345678901|102345", false},
		{"12345678901", true}, // still a "|"-terminated prefix of a line
		{"", false},
		{"98765432109|77|b.docx", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, l.IsDuplicate(tc.key), "key %q", tc.key)
	}
}

func TestLedgerRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.txt")
	l, err := LoadLedger(path, constants.KeyPolicyComposite, nil)
	require.NoError(t, err)

	key, ok := l.Key("12345678901", "10234")
	require.True(t, ok)
	require.NoError(t, l.Record(key, "inv.pdf"))
	require.NoError(t, l.Record("11111111111|5", "odd\nname.pdf"))

	assert.True(t, l.IsDuplicate(key))
	assert.Equal(t, 2, l.Len())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "12345678901|10234|inv.pdf\n11111111111|5|odd name.pdf\n", string(data))

	// a fresh load sees the same state
	again, err := LoadLedger(path, constants.KeyPolicyComposite, nil)
	require.NoError(t, err)
	assert.True(t, again.IsDuplicate(key))
	assert.Equal(t, 2, again.Len())
}

func TestLedgerRecordFailureLeavesIndexUntouched(t *testing.T) {
	if runtime.GOOS == "windows" || os.Getuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o444))

	l, err := LoadLedger(path, constants.KeyPolicyInvoice, nil)
	require.NoError(t, err)

	err = l.Record("10234", "inv.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrLedger)
	assert.False(t, l.IsDuplicate("10234"))
}

func TestBuildKey(t *testing.T) {
	tests := []struct {
		name    string
		policy  constants.KeyPolicy
		payer   string
		invoice string
		want    string
		ok      bool
	}{
		{"composite", constants.KeyPolicyComposite, "12345678901", "10234", "12345678901|10234", true},
		{"composite missing payer", constants.KeyPolicyComposite, "", "10234", "", false},
		{"composite missing invoice", constants.KeyPolicyComposite, "12345678901", "", "", false},
		{"invoice", constants.KeyPolicyInvoice, "", "10234", "10234", true},
		{"invoice ignores payer", constants.KeyPolicyInvoice, "12345678901", "10234", "10234", true},
		{"invoice missing", constants.KeyPolicyInvoice, "12345678901", "", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := BuildKey(tc.policy, tc.payer, tc.invoice)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
