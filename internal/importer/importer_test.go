package importer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/branchledger/internal/errs"
	"github.com/cleared-dev/branchledger/internal/logging"
	"github.com/cleared-dev/branchledger/internal/model"
	pt "github.com/cleared-dev/branchledger/internal/posting/postingtest"
)

func parseFile(t *testing.T, p Parser, name string) []VoucherRow {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", name))
	require.NoError(t, err)
	defer f.Close()

	rows, err := p.Parse(f)
	require.NoError(t, err)
	return rows
}

func TestChaseParser_Parse(t *testing.T) {
	rows := parseFile(t, &ChaseParser{}, "chase_checking.csv")
	require.Len(t, rows, 6)

	// First: GITHUB subscription
	assert.Equal(t, "GITHUB *PRO SUBSCRIPTION", rows[0].Narration)
	assert.Equal(t, "4.00", rows[0].Amount.StringFixed(2))
	assert.Equal(t, model.VoucherPayment, rows[0].Type)
	assert.Equal(t, 2025, rows[0].Date.Year())
	assert.Equal(t, 3, rows[0].Date.Day())

	// Fourth: ACME income
	assert.Equal(t, "ACME CONSULTING INVOICE 1042", rows[3].Narration)
	assert.Equal(t, model.VoucherReceipt, rows[3].Type)
	assert.Equal(t, "3500.00", rows[3].Amount.StringFixed(2))

	assert.Equal(t, 22, rows[5].Date.Day())
	assert.Empty(t, rows[0].LedgerCode)
}

func TestChaseParser_Reference(t *testing.T) {
	rows := parseFile(t, &ChaseParser{}, "chase_checking.csv")

	// Reference format: chase_YYYYMMDD_<prefix>
	assert.Equal(t, "chase_20250103_GITHUBPROS", rows[0].Ref)
}

func TestChaseParser_DuplicateReferences(t *testing.T) {
	csv := "Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\n" +
		"DEBIT,01/03/2025,COFFEE,-4.00,DEBIT_CARD,100.00,\n" +
		"DEBIT,01/03/2025,COFFEE,-3.00,DEBIT_CARD,97.00,\n"
	rows, err := (&ChaseParser{}).Parse(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "chase_20250103_COFFEE", rows[0].Ref)
	assert.Equal(t, "chase_20250103_COFFEE_2", rows[1].Ref)
}

func TestChaseParser_Errors(t *testing.T) {
	header := "Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\n"
	tests := []struct {
		name string
		row  string
		want string
	}{
		{"bad date", "DEBIT,NOTADATE,desc,-4.00,ACH_DEBIT,100.00,\n", "parsing date"},
		{"bad amount", "DEBIT,01/03/2025,desc,NOTANUMBER,ACH_DEBIT,100.00,\n", "parsing amount"},
		{"zero amount", "DEBIT,01/03/2025,desc,0.00,ACH_DEBIT,100.00,\n", "zero amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&ChaseParser{}).Parse(strings.NewReader(header + tt.row))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestChaseParser_EmptyFile(t *testing.T) {
	rows, err := (&ChaseParser{}).Parse(strings.NewReader("Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\n"))
	require.NoError(t, err)
	assert.Nil(t, rows)
}

func TestVoucherParser_Parse(t *testing.T) {
	rows := parseFile(t, &VoucherParser{}, "vouchers.csv")
	require.Len(t, rows, 4)

	assert.Equal(t, model.VoucherJournal, rows[0].Type)
	assert.Equal(t, "PAY-1", rows[2].Ref)
	assert.Equal(t, "3000.5", rows[2].Amount.String())
	assert.Equal(t, model.VoucherReceipt, rows[3].Type)
	assert.Equal(t, "Counter sales, week 1", rows[3].Narration)
}

func TestVoucherParser_Errors(t *testing.T) {
	header := "ref,date,type,ledger_code,voucher_ledger_code,amount,narration\n"
	tests := []struct {
		name string
		row  string
	}{
		{"empty ref", ",2024-04-01,journal,1,2,10,x\n"},
		{"bad date", "A,01/04/2024,journal,1,2,10,x\n"},
		{"bad type", "A,2024-04-01,barter,1,2,10,x\n"},
		{"bad amount", "A,2024-04-01,journal,1,2,ten,x\n"},
		{"short row", "A,2024-04-01,journal\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&VoucherParser{}).Parse(strings.NewReader(header + tt.row))
			assert.Error(t, err)
		})
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("nonexistent"))
}

func TestRegistry_CaseInsensitive(t *testing.T) {
	r := NewRegistry()
	r.Register(&ChaseParser{})
	assert.NotNil(t, r.Get("Chase"))
	assert.NotNil(t, r.Get("CHASE"))
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(&VoucherParser{})
	assert.Panics(t, func() { r.Register(&VoucherParser{}) })
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.NotNil(t, r.Get("chase"))
	assert.NotNil(t, r.Get("vouchers"))
}

func TestScan_FindsCSVs(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	require.NoError(t, os.MkdirAll(filepath.Join(importDir, "processed"), 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(importDir, "bank.csv"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "other.txt"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "processed", "old.csv"), []byte("data"), 0o644))

	files, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "bank.csv", files[0].Name)
	assert.Equal(t, int64(4), files[0].Size)
}

func TestScan_EmptyDir(t *testing.T) {
	files, err := Scan(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestMarkProcessed(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	require.NoError(t, os.MkdirAll(importDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "bank.csv"), []byte("data"), 0o644))

	require.NoError(t, MarkProcessed(dir, "bank.csv"))

	_, err := os.Stat(filepath.Join(importDir, "bank.csv"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "import", "processed", "bank.csv"))
	assert.NoError(t, err)
}

func TestImportVouchers(t *testing.T) {
	f := pt.New(t)
	im := New(f.Accounts, f.Engine, logging.Nop())

	rows := parseFile(t, &VoucherParser{}, "vouchers.csv")
	res := im.Import(context.Background(), rows, Options{BranchID: pt.Branch, Actor: "import"})
	require.Empty(t, res.Failures)
	require.Len(t, res.Posted, 3)

	pay := res.Posted[1]
	assert.Equal(t, "PAY-1", pay.Reference)
	assert.Len(t, pay.Entries, 2)
	assert.Equal(t, "4200.5", pay.TotalAmount.String())

	assert.Equal(t, "5799.5", f.Ledger(t, pt.Bank).Balance.String())
	assert.Equal(t, "450.25", f.Ledger(t, pt.Cash).Balance.String())
	assert.Equal(t, "450.25", f.Ledger(t, pt.Sales).Balance.String())
}

func TestImportKeepsGoingAfterFailure(t *testing.T) {
	f := pt.New(t)
	im := New(f.Accounts, f.Engine, logging.Nop())

	rows := []VoucherRow{
		{Ref: "A", Date: pt.Date(2024, 5, 1), Type: model.VoucherPayment, LedgerCode: "9.9", VoucherLedgerCode: pt.Cash, Amount: pt.Dec("1")},
		{Ref: "B", Date: pt.Date(2024, 5, 1), Type: model.VoucherPayment, LedgerCode: pt.Rent, VoucherLedgerCode: pt.Cash, Amount: pt.Dec("1")},
		{Ref: "B", Date: pt.Date(2024, 5, 2), Type: model.VoucherPayment, LedgerCode: pt.Rent, VoucherLedgerCode: pt.Cash, Amount: pt.Dec("1")},
		{Ref: "C", Date: pt.Date(2024, 5, 1), Type: model.VoucherPayment, LedgerCode: pt.Rent, VoucherLedgerCode: pt.Cash, Amount: pt.Dec("7")},
	}
	res := im.Import(context.Background(), rows, Options{BranchID: pt.Branch})

	require.Len(t, res.Failures, 2)
	var nf *errs.NotFoundError
	assert.ErrorAs(t, res.Failures[0].Err, &nf)
	var ve *errs.ValidationError
	assert.ErrorAs(t, res.Failures[1].Err, &ve)

	require.Len(t, res.Posted, 1)
	assert.Equal(t, "C", res.Posted[0].Reference)
	assert.Equal(t, "1", res.Posted[0].VoucherNumber)
}

func TestImportBankStatement(t *testing.T) {
	f := pt.New(t)
	im := New(f.Accounts, f.Engine, logging.Nop())

	rows := parseFile(t, &ChaseParser{}, "chase_checking.csv")
	res := im.Import(context.Background(), rows, Options{
		BranchID:      pt.Branch,
		ExpenseLedger: pt.Rent,
		IncomeLedger:  pt.Interest,
		BankLedger:    pt.Bank,
	})
	require.Empty(t, res.Failures)
	assert.Len(t, res.Posted, 6)

	assert.Equal(t, "3253.58", f.Ledger(t, pt.Bank).Balance.String())
	assert.Equal(t, "246.42", f.Ledger(t, pt.Rent).Balance.String())
	assert.Equal(t, "3500", f.Ledger(t, pt.Interest).Balance.String())
}
