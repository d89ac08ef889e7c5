// Package postingtest seeds a branch with the default chart, voucher books
// and a financial year so tests can post vouchers straight away.
package postingtest

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cleared-dev/branchledger/internal/accounts"
	"github.com/cleared-dev/branchledger/internal/books"
	"github.com/cleared-dev/branchledger/internal/logging"
	"github.com/cleared-dev/branchledger/internal/metrics"
	"github.com/cleared-dev/branchledger/internal/model"
	"github.com/cleared-dev/branchledger/internal/posting"
	"github.com/cleared-dev/branchledger/internal/store/storetest"
)

// Branch is the branch every fixture is seeded into.
const Branch uint = 1

// Codes of frequently used ledgers in accounts.DefaultChart.
const (
	Cash        = "1.1.1"
	Bank        = "1.2.1"
	Receivables = "1.3.1"
	Payables    = "2.1.1"
	BankLoan    = "2.2.1"
	Capital     = "3.1"
	Sales       = "4.1.1"
	Interest    = "4.3.1"
	Purchases   = "5.1.1"
	Freight     = "5.2.1"
	Rent        = "5.3.1"
	Drawings    = "6.1"
)

// Fixture is a seeded database with services bound to it.
type Fixture struct {
	DB       *gorm.DB
	Accounts *accounts.Service
	Books    *books.Service
	Engine   *posting.Engine
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
}

// New returns a fixture for the financial year 2024-04-01..2025-03-31.
func New(t testing.TB) *Fixture {
	t.Helper()
	ctx := context.Background()

	db := storetest.NewDB(t)
	lg := logging.Nop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	f := &Fixture{
		DB:       db,
		Accounts: accounts.NewService(db, lg),
		Books:    books.NewService(db, lg),
		Engine:   posting.NewEngine(db, lg, m),
		Registry: reg,
		Metrics:  m,
	}

	_, err := f.Accounts.ImportChart(ctx, Branch, accounts.DefaultChart(), "test")
	require.NoError(t, err)
	for _, vt := range model.VoucherTypes {
		_, err := f.Books.CreateVoucherBook(ctx, Branch, vt, "", "")
		require.NoError(t, err)
	}
	_, err = f.Books.CreateFinancialYear(ctx, Branch, Date(2024, 4, 1), Date(2025, 3, 31))
	require.NoError(t, err)
	return f
}

// Date returns midnight UTC of the given day.
func Date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

// Dec parses a decimal literal.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Ledger reloads a ledger by code.
func (f *Fixture) Ledger(t testing.TB, code string) *model.Ledger {
	t.Helper()
	l, err := f.Accounts.LedgerByCode(context.Background(), Branch, code)
	require.NoError(t, err)
	return l
}

// Group reloads a group by code.
func (f *Fixture) Group(t testing.TB, code string) *model.AccountGroup {
	t.Helper()
	g, err := f.Accounts.GroupByCode(context.Background(), Branch, code)
	require.NoError(t, err)
	return g
}

// Line builds a voucher line between two ledger codes.
func (f *Fixture) Line(t testing.TB, primary, opposite, amount string) posting.LineRequest {
	t.Helper()
	return posting.LineRequest{
		LedgerID:        f.Ledger(t, primary).ID,
		VoucherLedgerID: f.Ledger(t, opposite).ID,
		Amount:          Dec(amount),
	}
}

// Request builds a request whose total is the sum of its lines.
func Request(vt model.VoucherType, date time.Time, lines ...posting.LineRequest) posting.PostVoucherRequest {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount)
	}
	return posting.PostVoucherRequest{
		BranchID:    Branch,
		Date:        date,
		Type:        vt,
		TotalAmount: total,
		Lines:       lines,
	}
}

// Post posts a request and fails the test on error.
func (f *Fixture) Post(t testing.TB, req posting.PostVoucherRequest) *model.Voucher {
	t.Helper()
	v, err := f.Engine.PostVoucher(context.Background(), "test", req)
	require.NoError(t, err)
	return v
}
