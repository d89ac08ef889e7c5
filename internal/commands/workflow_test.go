package commands_test

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/branchledger/internal/auditlog"
	"github.com/cleared-dev/branchledger/internal/reports"
)

// fy2024Project is an initialized project with the 2024-25 year open and
// capital of 10000 paid into the bank.
func fy2024Project(t *testing.T) string {
	t.Helper()
	dir := initProject(t)
	mustRun(t, dir, "year", "add", "--start", "2024-04-01", "--end", "2025-03-31")
	mustRun(t, dir, "voucher", "post", "--type", "journal", "--date", "2024-04-01",
		"--line", "1.2.1:3.1:10000:capital introduced", "--narration", "Opening capital")
	return dir
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	args = append(args, "--project", dir, "--actor", "tester")
	out, stderr, err := run(t, args...)
	require.NoError(t, err, "%v: %s", args, stderr)
	return out
}

func trialBalance(t *testing.T, dir string) reports.TrialBalanceReport {
	t.Helper()
	out := mustRun(t, dir, "report", "trial-balance", "--json")
	var r reports.TrialBalanceReport
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	return r
}

func TestVoucherPostAndShow(t *testing.T) {
	dir := fy2024Project(t)

	out := mustRun(t, dir, "voucher", "post", "--type", "payment", "--date", "2024-05-01",
		"--line", "5.3.1:1.2.1:500", "--reference", "INV-7")
	assert.Contains(t, out, "Posted PAYMENT PV-1")
	assert.Contains(t, out, "500.00")

	out = mustRun(t, dir, "voucher", "show", "journal", "1")
	assert.Contains(t, out, "Opening capital")
	assert.Contains(t, out, "1.2.1")
	assert.Contains(t, out, "3.1")
	assert.Contains(t, out, "10000.00")

	out = mustRun(t, dir, "voucher", "show", "payment", "1", "--json")
	var shown struct {
		Voucher struct {
			Reference string `json:"reference"`
			Entries   []any  `json:"entries"`
		} `json:"voucher"`
		Journal []struct {
			Type string `json:"type"`
		} `json:"journal"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, "INV-7", shown.Voucher.Reference)
	assert.Len(t, shown.Voucher.Entries, 1)
	require.Len(t, shown.Journal, 2)
	assert.Equal(t, "DEBIT", shown.Journal[0].Type)
	assert.Equal(t, "CREDIT", shown.Journal[1].Type)
}

func TestVoucherEdit(t *testing.T) {
	dir := fy2024Project(t)

	out := mustRun(t, dir, "voucher", "edit", "journal", "1", "--narration", "Capital from owner")
	assert.Contains(t, out, `Updated JOURNAL 1: "Capital from owner"`)

	out = mustRun(t, dir, "statement", "3.1", "--from", "2024-04-01", "--to", "2024-04-30")
	assert.Contains(t, out, "Capital from owner")
	assert.NotContains(t, out, "capital introduced")
}

func TestVoucherPostRejected(t *testing.T) {
	dir := fy2024Project(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"outside any year", []string{"--type", "payment", "--date", "2023-05-01", "--line", "5.3.1:1.2.1:5"}, "financial year"},
		{"unknown ledger", []string{"--type", "payment", "--date", "2024-05-01", "--line", "9.9.9:1.2.1:5"}, "9.9.9"},
		{"zero amount", []string{"--type", "payment", "--date", "2024-05-01", "--line", "5.3.1:1.2.1:0"}, "amount"},
		{"bad line", []string{"--type", "payment", "--date", "2024-05-01", "--line", "5.3.1"}, "PRIMARY:OPPOSITE:AMOUNT"},
		{"unresolvable", []string{"--type", "contra", "--date", "2024-05-01", "--line", "5.3.1:1.2.1:5"}, "CONTRA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"voucher", "post", "--project", dir}, tt.args...)
			_, stderr, err := run(t, args...)
			require.Error(t, err)
			assert.Contains(t, stderr, tt.want)
		})
	}

	r := trialBalance(t, dir)
	assert.True(t, r.Totals.Difference.IsZero())
	assert.Len(t, r.Ledgers, 13)
}

func TestTrialBalanceBalances(t *testing.T) {
	dir := fy2024Project(t)
	mustRun(t, dir, "voucher", "post", "--type", "payment", "--date", "2024-05-01", "--line", "5.3.1:1.2.1:500")
	mustRun(t, dir, "voucher", "post", "--type", "receipt", "--date", "2024-05-02", "--line", "4.1.1:1.1.1:800")

	r := trialBalance(t, dir)
	assert.Equal(t, "10800", r.Totals.TotalDebitBalance.String())
	assert.Equal(t, "10800", r.Totals.TotalCreditBalance.String())
	assert.False(t, r.BalanceValidation.HasBalanceMismatches)

	out := mustRun(t, dir, "report", "trial-balance", "--strict")
	assert.Contains(t, out, "Balanced")
	assert.Contains(t, out, "Owner's Capital")
}

func TestTradingReport(t *testing.T) {
	dir := fy2024Project(t)
	mustRun(t, dir, "voucher", "post", "--type", "payment", "--date", "2024-05-01", "--line", "5.1.1:1.2.1:3000")
	mustRun(t, dir, "voucher", "post", "--type", "receipt", "--date", "2024-05-02", "--line", "4.1.1:1.2.1:5000")

	out := mustRun(t, dir, "report", "trading", "--json", "--opening-stock", "1000", "--closing-stock", "1500")
	var r reports.TradingAccountReport
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, "2500", r.Summary.CostOfGoodsSold.String())
	assert.Equal(t, "2500", r.Summary.GrossProfit.String())
	assert.True(t, r.Summary.IsGrossProfit)
	assert.True(t, r.Summary.IsBalanced)

	out = mustRun(t, dir, "report", "trading", "--opening-stock", "1000", "--closing-stock", "1500")
	assert.Contains(t, out, "Gross profit c/d")
}

func TestStatementCSV(t *testing.T) {
	dir := fy2024Project(t)
	mustRun(t, dir, "voucher", "post", "--type", "payment", "--date", "2024-05-01", "--line", "5.3.1:1.2.1:500")

	out := mustRun(t, dir, "statement", "1.2.1", "--from", "2024-04-01", "--to", "2025-03-31", "--csv")
	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "entry_id", records[0][0])
	assert.Equal(t, "10000.00", records[1][3])
	assert.Equal(t, "500.00", records[2][4])

	out = mustRun(t, dir, "statement", "1.2.1", "--from", "2024-04-01", "--to", "2025-03-31")
	assert.Contains(t, out, "Opening")
	assert.Contains(t, out, "capital introduced")
}

func TestAccountCommands(t *testing.T) {
	dir := fy2024Project(t)

	out := mustRun(t, dir, "group", "add", "--name", "Fixed Deposits", "--parent", "1")
	assert.Contains(t, out, "Created group 1.4 Fixed Deposits (Assets)")

	out = mustRun(t, dir, "ledger", "add", "--name", "FD 2024", "--group", "1.4", "--opening", "2500")
	assert.Contains(t, out, "Created ledger 1.4.1 FD 2024")

	mustRun(t, dir, "ledger", "add", "--name", "Petty Cash", "--group", "1.1", "--type", "cash")

	_, stderr, err := run(t, "ledger", "add", "--project", dir, "--name", "Wrong", "--group", "2.1", "--type", "bank")
	require.Error(t, err)
	assert.Contains(t, stderr, "Assets")

	_, stderr, err = run(t, "group", "deactivate", "1.4", "--project", dir)
	require.Error(t, err)
	assert.Contains(t, stderr, "active children")

	mustRun(t, dir, "group", "add", "--name", "Unused", "--parent", "5")
	out = mustRun(t, dir, "group", "deactivate", "5.4")
	assert.Contains(t, out, "Deactivated group 5.4 Unused")

	out = mustRun(t, dir, "chart", "export")
	assert.Contains(t, out, "1.1.2,Petty Cash,ledger")
	assert.NotContains(t, out, "Unused")
}

func TestChartImport(t *testing.T) {
	dir := fy2024Project(t)
	chart := "code,name,kind,nature,type,parent_code,opening_balance\n" +
		"7,Suspense,group,Assets,,,\n" +
		"7.1,Clearing,ledger,,General,7,125.50\n"
	path := filepath.Join(t.TempDir(), "extra.csv")
	require.NoError(t, os.WriteFile(path, []byte(chart), 0o644))

	out := mustRun(t, dir, "chart", "import", path)
	assert.Contains(t, out, "Imported 2 accounts")

	r := trialBalance(t, dir)
	assert.Len(t, r.Ledgers, 14)
}

func TestVoucherImportScansProject(t *testing.T) {
	dir := fy2024Project(t)
	data := "ref,date,type,ledger_code,voucher_ledger_code,amount,narration\n" +
		"R1,2024-06-01,payment,5.3.1,1.2.1,1200,June rent\n" +
		"R2,2024-06-03,receipt,4.1.1,1.1.1,300,Counter sales\n" +
		"R2,2024-06-03,receipt,4.1.1,1.1.1,200,Counter sales\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "import", "june.csv"), []byte(data), 0o644))

	out := mustRun(t, dir, "voucher", "import")
	assert.Contains(t, out, "june.csv: 2 posted, 0 failed")

	_, err := os.Stat(filepath.Join(dir, "import", "processed", "june.csv"))
	assert.NoError(t, err)

	out = mustRun(t, dir, "voucher", "show", "receipt", "1")
	assert.Contains(t, out, "500.00")
}

func TestVoucherImportReportsFailures(t *testing.T) {
	dir := fy2024Project(t)
	data := "ref,date,type,ledger_code,voucher_ledger_code,amount,narration\n" +
		"OK,2024-06-01,payment,5.3.1,1.2.1,10,fine\n" +
		"BAD,2024-06-01,payment,8.8,1.2.1,10,no such ledger\n"
	path := filepath.Join(t.TempDir(), "mixed.csv")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	out, _, err := run(t, "voucher", "import", path, "--project", dir)
	require.Error(t, err)
	assert.Contains(t, out, "mixed.csv: 1 posted, 1 failed")
	assert.Contains(t, out, "BAD")
}

func TestPropagateAudits(t *testing.T) {
	dir := fy2024Project(t)
	out := mustRun(t, dir, "propagate")
	assert.Contains(t, out, "Rebuilt branch 1 (0 groups corrected)")
}

func TestMetricsTextfile(t *testing.T) {
	dir := fy2024Project(t)
	path := filepath.Join(t.TempDir(), "branchledger.prom")

	mustRun(t, dir, "voucher", "post", "--type", "payment", "--date", "2024-05-01",
		"--line", "5.3.1:1.2.1:5", "--metrics-textfile", path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `branchledger_vouchers_posted_total{type="PAYMENT"} 1`)

	mustRun(t, dir, "report", "trial-balance", "--metrics-textfile", path)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `branchledger_trial_balance_difference{branch="1"} 0`)
}

func TestAuditLog(t *testing.T) {
	dir := fy2024Project(t)
	mustRun(t, dir, "propagate")

	out := mustRun(t, dir, "audit", "--action", "voucher_posted")
	entries, err := auditlog.ReadCSV(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "tester", entries[0].Actor)
	assert.Equal(t, "1", entries[0].VoucherNumber)

	out = mustRun(t, dir, "audit", "--action", "branch_rebuilt")
	assert.Contains(t, out, "branch_rebuilt")
}
