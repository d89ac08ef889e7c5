package reports

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/branchledger/internal/model"
)

// TradingSections maps trading account sections to account group type tags.
type TradingSections struct {
	Purchase      string
	Sales         string
	DirectIncome  string
	DirectExpense string
}

// TradingParams selects the branch and stock figures of a trading account.
type TradingParams struct {
	BranchID     uint
	OpeningStock decimal.Decimal
	ClosingStock decimal.Decimal
	Sections     TradingSections
}

// TradingItem is one ledger on a side of the trading account.
type TradingItem struct {
	ID     uint            `json:"id"`
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// DebitSide lists stock consumed and costs incurred.
type DebitSide struct {
	OpeningStock   decimal.Decimal `json:"openingStock"`
	Purchases      []TradingItem   `json:"purchases"`
	DirectExpenses []TradingItem   `json:"directExpenses"`
	GrossProfit    decimal.Decimal `json:"grossProfit"`
	Total          decimal.Decimal `json:"total"`
}

// CreditSide lists revenue earned and stock remaining.
type CreditSide struct {
	Sales         []TradingItem   `json:"sales"`
	DirectIncomes []TradingItem   `json:"directIncomes"`
	ClosingStock  decimal.Decimal `json:"closingStock"`
	GrossLoss     decimal.Decimal `json:"grossLoss"`
	Total         decimal.Decimal `json:"total"`
}

// TradingSummary holds the derived figures.
type TradingSummary struct {
	CostOfGoodsSold decimal.Decimal `json:"costOfGoodsSold"`
	GrossProfit     decimal.Decimal `json:"grossProfit"`
	IsGrossProfit   bool            `json:"isGrossProfit"`
	// IsBalanced always holds because gross profit or loss is the balancing
	// figure. It is an arithmetic check on the totals, not on the books.
	IsBalanced      bool            `json:"isBalanced"`
}

// TradingAccountReport is the trading account of a branch.
type TradingAccountReport struct {
	BranchID   uint           `json:"branchId"`
	DebitSide  DebitSide      `json:"debitSide"`
	CreditSide CreditSide     `json:"creditSide"`
	Summary    TradingSummary `json:"summary"`
}

// TradingAccount partitions the ledgers under the tagged groups into the
// four sections and derives cost of goods sold and gross profit:
//
//	COGS = opening stock + purchases + direct expenses - closing stock
//	GP   = sales + direct income - COGS
//
// A gross profit balances the debit side and a gross loss the credit side.
func (s *Service) TradingAccount(ctx context.Context, p TradingParams) (*TradingAccountReport, error) {
	purchases, err := s.section(ctx, p.BranchID, p.Sections.Purchase)
	if err != nil {
		return nil, err
	}
	sales, err := s.section(ctx, p.BranchID, p.Sections.Sales)
	if err != nil {
		return nil, err
	}
	directIncomes, err := s.section(ctx, p.BranchID, p.Sections.DirectIncome)
	if err != nil {
		return nil, err
	}
	directExpenses, err := s.section(ctx, p.BranchID, p.Sections.DirectExpense)
	if err != nil {
		return nil, err
	}

	purchaseTotal := sum(purchases)
	salesTotal := sum(sales)
	directIncomeTotal := sum(directIncomes)
	directExpenseTotal := sum(directExpenses)

	cogs := p.OpeningStock.Add(purchaseTotal).Add(directExpenseTotal).Sub(p.ClosingStock)
	gp := salesTotal.Add(directIncomeTotal).Sub(cogs)

	r := &TradingAccountReport{
		BranchID: p.BranchID,
		DebitSide: DebitSide{
			OpeningStock:   p.OpeningStock,
			Purchases:      purchases,
			DirectExpenses: directExpenses,
			GrossProfit:    decimal.Zero,
		},
		CreditSide: CreditSide{
			Sales:         sales,
			DirectIncomes: directIncomes,
			ClosingStock:  p.ClosingStock,
			GrossLoss:     decimal.Zero,
		},
		Summary: TradingSummary{
			CostOfGoodsSold: cogs,
			GrossProfit:     gp.Abs(),
			IsGrossProfit:   !gp.IsNegative(),
		},
	}
	if r.Summary.IsGrossProfit {
		r.DebitSide.GrossProfit = gp
	} else {
		r.CreditSide.GrossLoss = gp.Abs()
	}

	r.DebitSide.Total = p.OpeningStock.Add(purchaseTotal).Add(directExpenseTotal).Add(r.DebitSide.GrossProfit)
	r.CreditSide.Total = salesTotal.Add(directIncomeTotal).Add(p.ClosingStock).Add(r.CreditSide.GrossLoss)
	r.Summary.IsBalanced = r.DebitSide.Total.Equal(r.CreditSide.Total)

	if !r.Summary.IsBalanced {
		s.lg.Warn("trading account does not balance", "branch", p.BranchID,
			"debit", r.DebitSide.Total.String(), "credit", r.CreditSide.Total.String())
	}
	return r, nil
}

// section returns the active ledgers under every active group of the
// branch tagged typ, descendants included.
func (s *Service) section(ctx context.Context, branchID uint, typ string) ([]TradingItem, error) {
	items := []TradingItem{}
	if typ == "" {
		return items, nil
	}

	var groupIDs []uint
	if err := s.db.WithContext(ctx).Model(&model.AccountGroup{}).
		Where("branch_id = ? AND type = ? AND is_active = ?", branchID, typ, true).
		Order("code").
		Pluck("id", &groupIDs).Error; err != nil {
		return nil, fmt.Errorf("loading %s groups: %w", typ, err)
	}

	ledgers, err := s.accounts.SubtreeLedgers(ctx, groupIDs)
	if err != nil {
		return nil, err
	}
	for _, l := range ledgers {
		items = append(items, TradingItem{ID: l.ID, Code: l.Code, Name: l.Name, Amount: l.Balance})
	}
	return items, nil
}

func sum(items []TradingItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Amount)
	}
	return total
}
