package reports_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/branchledger/internal/accounts"
	"github.com/cleared-dev/branchledger/internal/errs"
	"github.com/cleared-dev/branchledger/internal/logging"
	"github.com/cleared-dev/branchledger/internal/model"
	pt "github.com/cleared-dev/branchledger/internal/posting/postingtest"
	"github.com/cleared-dev/branchledger/internal/reports"
)

var day = pt.Date(2024, 7, 1)

func lineFor(t *testing.T, r *reports.TrialBalanceReport, name string) reports.TrialBalanceLine {
	t.Helper()
	for _, l := range r.Ledgers {
		if l.Name == name {
			return l
		}
	}
	t.Fatalf("ledger %q not on trial balance", name)
	return reports.TrialBalanceLine{}
}

func TestTrialBalanceBalanced(t *testing.T) {
	f := pt.New(t)
	f.Post(t, pt.Request(model.VoucherJournal, day, f.Line(t, pt.Cash, pt.Capital, "1000")))
	f.Post(t, pt.Request(model.VoucherPayment, day, f.Line(t, pt.Rent, pt.Cash, "300")))

	r, err := reports.NewService(f.DB, logging.Nop()).TrialBalance(context.Background(), pt.Branch)
	require.NoError(t, err)

	assert.True(t, r.Totals.Difference.IsZero())
	assert.Equal(t, "1000", r.Totals.TotalDebitBalance.String())
	assert.Equal(t, "1000", r.Totals.TotalCreditBalance.String())
	assert.False(t, r.BalanceValidation.HasBalanceMismatches)
	assert.NoError(t, r.Err())

	cash := lineFor(t, r, "Cash")
	assert.Equal(t, model.Debit, cash.BalanceType)
	assert.Equal(t, "700", cash.BalanceAmount.String())

	capital := lineFor(t, r, "Owner's Capital")
	assert.Equal(t, model.Credit, capital.BalanceType)
	assert.Equal(t, "1000", capital.BalanceAmount.String())
}

func TestTrialBalanceWrongSignStaysOnNaturalSide(t *testing.T) {
	f := pt.New(t)
	f.Post(t, pt.Request(model.VoucherPayment, day, f.Line(t, pt.Rent, pt.Bank, "500")))

	r, err := reports.NewService(f.DB, logging.Nop()).TrialBalance(context.Background(), pt.Branch)
	require.NoError(t, err)

	bank := lineFor(t, r, "Bank")
	assert.Equal(t, model.Debit, bank.BalanceType)
	assert.Equal(t, "500", bank.BalanceAmount.String())
	assert.Equal(t, "1000", r.Totals.Difference.String())
	assert.False(t, r.BalanceValidation.HasBalanceMismatches, "stored and recomputed figures agree")

	var ce *errs.ConsistencyError
	assert.ErrorAs(t, r.Err(), &ce)
}

func TestTrialBalanceDetectsTamperedLedger(t *testing.T) {
	f := pt.New(t)
	f.Post(t, pt.Request(model.VoucherJournal, day, f.Line(t, pt.Cash, pt.Capital, "1000")))

	cash := f.Ledger(t, pt.Cash)
	require.NoError(t, f.DB.Model(cash).Update("balance", decimal.NewFromInt(900)).Error)

	r, err := reports.NewService(f.DB, logging.Nop()).TrialBalance(context.Background(), pt.Branch)
	require.NoError(t, err)

	assert.True(t, r.BalanceValidation.HasBalanceMismatches)
	require.Len(t, r.BalanceValidation.MismatchedLedgers, 1)
	m := r.BalanceValidation.MismatchedLedgers[0]
	assert.Equal(t, "Cash", m.Name)
	assert.Equal(t, "1000", m.Calculated.String())
	assert.Equal(t, "900", m.Stored.String())
	assert.NotEmpty(t, r.BalanceValidation.MismatchedGroups)
	assert.Equal(t, "-100", r.Totals.Difference.String())

	assert.Equal(t, "900", f.Ledger(t, pt.Cash).Balance.String(), "never corrected silently")
}

func TestTrialBalanceJSONShape(t *testing.T) {
	f := pt.New(t)
	r, err := reports.NewService(f.DB, logging.Nop()).TrialBalance(context.Background(), pt.Branch)
	require.NoError(t, err)

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Contains(t, out, "ledgers")
	assert.Contains(t, out["totals"], "difference")
	assert.Contains(t, out["balanceValidation"], "mismatchedLedgers")
}

func tradingParams(opening, closing string) reports.TradingParams {
	return reports.TradingParams{
		BranchID:     pt.Branch,
		OpeningStock: pt.Dec(opening),
		ClosingStock: pt.Dec(closing),
		Sections: reports.TradingSections{
			Purchase:      accounts.TypePurchase,
			Sales:         accounts.TypeSales,
			DirectIncome:  accounts.TypeDirectIncome,
			DirectExpense: accounts.TypeDirectExpense,
		},
	}
}

func seedTrading(t *testing.T) *pt.Fixture {
	t.Helper()
	f := pt.New(t)
	f.Post(t, pt.Request(model.VoucherReceipt, day, f.Line(t, pt.Sales, pt.Cash, "5000")))
	f.Post(t, pt.Request(model.VoucherPayment, day, f.Line(t, pt.Purchases, pt.Cash, "3000")))
	f.Post(t, pt.Request(model.VoucherPayment, day, f.Line(t, pt.Freight, pt.Cash, "200")))
	f.Post(t, pt.Request(model.VoucherPayment, day, f.Line(t, pt.Rent, pt.Cash, "999")))
	return f
}

func TestTradingAccountGrossProfit(t *testing.T) {
	f := seedTrading(t)

	r, err := reports.NewService(f.DB, logging.Nop()).TradingAccount(context.Background(), tradingParams("1000", "1500"))
	require.NoError(t, err)

	assert.Equal(t, "2700", r.Summary.CostOfGoodsSold.String())
	assert.Equal(t, "2300", r.Summary.GrossProfit.String())
	assert.True(t, r.Summary.IsGrossProfit)
	assert.True(t, r.Summary.IsBalanced)
	assert.Equal(t, "6500", r.DebitSide.Total.String())
	assert.Equal(t, "6500", r.CreditSide.Total.String())

	require.Len(t, r.DebitSide.Purchases, 1)
	assert.Equal(t, "Purchases", r.DebitSide.Purchases[0].Name)
	require.Len(t, r.CreditSide.Sales, 1)
	assert.Equal(t, "5000", r.CreditSide.Sales[0].Amount.String())
	assert.Empty(t, r.CreditSide.DirectIncomes)
}

func TestTradingAccountGrossLoss(t *testing.T) {
	f := seedTrading(t)

	r, err := reports.NewService(f.DB, logging.Nop()).TradingAccount(context.Background(), tradingParams("5000", "0"))
	require.NoError(t, err)

	assert.Equal(t, "8200", r.Summary.CostOfGoodsSold.String())
	assert.Equal(t, "3200", r.Summary.GrossProfit.String())
	assert.False(t, r.Summary.IsGrossProfit)
	assert.Equal(t, "3200", r.CreditSide.GrossLoss.String())
	assert.True(t, r.DebitSide.GrossProfit.IsZero())
	assert.True(t, r.Summary.IsBalanced, "gross loss balances the credit side")
	assert.Equal(t, "8200", r.DebitSide.Total.String())
	assert.Equal(t, "8200", r.CreditSide.Total.String())
}

func TestTradingAccountIncludesNestedGroups(t *testing.T) {
	f := seedTrading(t)
	ctx := context.Background()

	_, err := f.Accounts.CreateGroup(ctx, accounts.NewGroup{BranchID: pt.Branch, ParentCode: "4.1", Name: "Export Sales"})
	require.NoError(t, err)
	_, err = f.Accounts.CreateLedger(ctx, accounts.NewLedger{BranchID: pt.Branch, GroupCode: "4.1.2", Name: "Export"})
	require.NoError(t, err)
	f.Post(t, pt.Request(model.VoucherReceipt, day, f.Line(t, "4.1.2.1", pt.Bank, "800")))

	r, err := reports.NewService(f.DB, logging.Nop()).TradingAccount(ctx, tradingParams("0", "0"))
	require.NoError(t, err)
	assert.Len(t, r.CreditSide.Sales, 2)
	assert.Equal(t, "2600", r.Summary.GrossProfit.String())
}
