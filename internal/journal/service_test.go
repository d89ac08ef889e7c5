package journal

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/branchledger/internal/errs"
	"github.com/cleared-dev/branchledger/internal/logging"
	"github.com/cleared-dev/branchledger/internal/model"
	"github.com/cleared-dev/branchledger/internal/store/storetest"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func setup(t *testing.T, opening string) (*Service, *model.Ledger) {
	t.Helper()
	db := storetest.NewDB(t)

	g := model.AccountGroup{Code: "2", Name: "Liabilities", Nature: model.NatureLiabilities, BranchID: 1, Balance: decimal.Zero, IsActive: true}
	require.NoError(t, db.Create(&g).Error)
	l := model.Ledger{Code: "2.1", Name: "Loan", Type: model.LedgerTypeGeneral, AccountGroupID: g.ID, BranchID: 1,
		OpeningBalance: dec(opening), Balance: dec(opening), IsActive: true}
	require.NoError(t, db.Create(&l).Error)

	return NewService(db, logging.Nop()), &l
}

func post(t *testing.T, svc *Service, ledgerID uint, d time.Time, side model.EntryType, amount string) *model.JournalEntry {
	t.Helper()
	je, err := svc.Post(context.Background(), PostParams{
		JournalBookID: 1, VoucherID: 1, Date: d, LedgerID: ledgerID, Side: side, Amount: dec(amount),
	})
	require.NoError(t, err)
	return je
}

func TestPreBalanceWithoutHistoryIsOpening(t *testing.T) {
	svc, l := setup(t, "100")
	got, err := svc.PreBalanceAt(context.Background(), l.ID, date(2024, 5, 1))
	require.NoError(t, err)
	assert.Equal(t, "100", got.String())
}

func TestPreBalanceAfterPriorCredit(t *testing.T) {
	svc, l := setup(t, "100")
	first := post(t, svc, l.ID, date(2024, 5, 1), model.Credit, "50")
	assert.Equal(t, "100", first.PreBalance.String())

	got, err := svc.PreBalanceAt(context.Background(), l.ID, date(2024, 5, 2))
	require.NoError(t, err)
	assert.Equal(t, "150", got.String())
}

func TestPreBalanceDebitSubtracts(t *testing.T) {
	svc, l := setup(t, "100")
	post(t, svc, l.ID, date(2024, 5, 1), model.Credit, "50")
	post(t, svc, l.ID, date(2024, 5, 3), model.Debit, "30")

	got, err := svc.PreBalanceAt(context.Background(), l.ID, date(2024, 5, 4))
	require.NoError(t, err)
	assert.Equal(t, "120", got.String())
}

func TestPreBalanceExcludesSameDate(t *testing.T) {
	svc, l := setup(t, "100")
	post(t, svc, l.ID, date(2024, 5, 1), model.Credit, "50")

	got, err := svc.PreBalanceAt(context.Background(), l.ID, date(2024, 5, 1))
	require.NoError(t, err)
	assert.Equal(t, "100", got.String())
}

func TestPreBalanceOutOfOrderInsert(t *testing.T) {
	svc, l := setup(t, "0")
	post(t, svc, l.ID, date(2024, 5, 10), model.Credit, "10")
	back := post(t, svc, l.ID, date(2024, 5, 5), model.Credit, "7")
	assert.Equal(t, "0", back.PreBalance.String(), "later-dated rows do not count")

	got, err := svc.PreBalanceAt(context.Background(), l.ID, date(2024, 5, 6))
	require.NoError(t, err)
	assert.Equal(t, "7", got.String())
}

func TestPreBalanceIgnoresInactiveEntries(t *testing.T) {
	svc, l := setup(t, "100")
	je := post(t, svc, l.ID, date(2024, 5, 1), model.Credit, "50")
	require.NoError(t, svc.db.Model(je).Update("is_active", false).Error)

	got, err := svc.PreBalanceAt(context.Background(), l.ID, date(2024, 6, 1))
	require.NoError(t, err)
	assert.Equal(t, "100", got.String())
}

func TestPreBalanceUnknownLedger(t *testing.T) {
	svc, _ := setup(t, "0")
	_, err := svc.PreBalanceAt(context.Background(), 404, date(2024, 1, 1))
	var nf *errs.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestEntriesForVoucher(t *testing.T) {
	svc, l := setup(t, "0")
	post(t, svc, l.ID, date(2024, 5, 1), model.Credit, "5")
	post(t, svc, l.ID, date(2024, 5, 1), model.Debit, "5")

	entries, err := svc.EntriesForVoucher(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.Credit, entries[0].Type)

	entries, err = svc.EntriesForVoucher(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStatement(t *testing.T) {
	svc, l := setup(t, "100")
	post(t, svc, l.ID, date(2024, 4, 20), model.Credit, "25")
	post(t, svc, l.ID, date(2024, 5, 2), model.Credit, "50")
	post(t, svc, l.ID, date(2024, 5, 9), model.Debit, "20")
	post(t, svc, l.ID, date(2024, 6, 1), model.Credit, "1")

	st, err := svc.Statement(context.Background(), l.ID, date(2024, 5, 1), date(2024, 5, 31))
	require.NoError(t, err)
	assert.Equal(t, "125", st.Opening.String())
	require.Len(t, st.Lines, 2)
	assert.Equal(t, "125", st.Lines[0].PreBalance.String())
	assert.Equal(t, "175", st.Lines[0].PostBalance.String())
	assert.Equal(t, "155", st.Lines[1].PostBalance.String())
	assert.Equal(t, "155", st.Closing.String())
}

func TestStatementRejectsInvertedRange(t *testing.T) {
	svc, l := setup(t, "0")
	_, err := svc.Statement(context.Background(), l.ID, date(2024, 5, 2), date(2024, 5, 1))
	var ve *errs.ValidationError
	assert.ErrorAs(t, err, &ve)
}
