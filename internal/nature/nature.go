// Package nature decides which side of the books a voucher line posts to.
//
// The decision is a table keyed on voucher type, the nature of the primary
// ledger's group and, where it matters, the nature of the opposite ledger.
// Combinations without a row are unresolvable and fail; there is no default.
package nature

import (
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/branchledger/internal/errs"
	"github.com/cleared-dev/branchledger/internal/model"
)

// oppositeMatch constrains the nature of the opposite leg.
type oppositeMatch int

const (
	anyOpposite oppositeMatch = iota
	assetsOpposite
	nonAssetsOpposite
)

func (m oppositeMatch) matches(n model.Nature) bool {
	switch m {
	case assetsOpposite:
		return n == model.NatureAssets
	case nonAssetsOpposite:
		return n != model.NatureAssets
	default:
		return true
	}
}

// rule maps a set of primary natures to the primary leg's side.
type rule struct {
	primary  []model.Nature
	opposite oppositeMatch
	side     model.EntryType
}

func (r rule) matches(primary, opposite model.Nature) bool {
	if !r.opposite.matches(opposite) {
		return false
	}
	for _, n := range r.primary {
		if n == primary {
			return true
		}
	}
	return false
}

var (
	assets      = model.NatureAssets
	liabilities = model.NatureLiabilities
	capital     = model.NatureCapital
	income      = model.NatureIncome
	expenses    = model.NatureExpenses
	drawings    = model.NatureDrawings
)

// rules is evaluated top to bottom within a voucher type; first match wins.
var rules = map[model.VoucherType][]rule{
	model.VoucherPayment: {
		{primary: []model.Nature{expenses, drawings}, side: model.Debit},
		{primary: []model.Nature{liabilities}, side: model.Debit},
		{primary: []model.Nature{assets}, opposite: assetsOpposite, side: model.Debit},
		{primary: []model.Nature{assets}, opposite: nonAssetsOpposite, side: model.Credit},
	},
	model.VoucherReceipt: {
		{primary: []model.Nature{assets}, opposite: assetsOpposite, side: model.Credit},
		{primary: []model.Nature{assets}, opposite: nonAssetsOpposite, side: model.Debit},
		{primary: []model.Nature{income, liabilities, capital}, side: model.Credit},
	},
	model.VoucherContra: {
		{primary: []model.Nature{assets}, side: model.Debit},
	},
	model.VoucherJournal: {
		{primary: []model.Nature{assets, expenses, drawings}, side: model.Debit},
		{primary: []model.Nature{liabilities, capital, income}, side: model.Credit},
	},
	model.VoucherCreditNote: {
		{primary: []model.Nature{income}, side: model.Debit},
		{primary: []model.Nature{assets}, side: model.Credit},
	},
	model.VoucherDebitNote: {
		{primary: []model.Nature{expenses, assets}, side: model.Debit},
		{primary: []model.Nature{liabilities}, side: model.Credit},
	},
}

// Resolve returns the side of the primary ledger leg. The opposite leg
// always takes Resolve(...).Inverse().
func Resolve(vt model.VoucherType, primary, opposite model.Nature) (model.EntryType, error) {
	for _, r := range rules[vt] {
		if r.matches(primary, opposite) {
			return r.side, nil
		}
	}
	return "", &errs.ClassificationError{
		VoucherType: string(vt),
		Primary:     string(primary),
		Opposite:    string(opposite),
	}
}

// Legs resolves both legs of a line: primary side first, opposite second.
func Legs(vt model.VoucherType, primary, opposite model.Nature) (model.EntryType, model.EntryType, error) {
	side, err := Resolve(vt, primary, opposite)
	if err != nil {
		return "", "", err
	}
	return side, side.Inverse(), nil
}

// Delta is the change one posting makes to a ledger's cached balance.
// A debit increases debit-natured ledgers and decreases the rest; a credit
// does the opposite.
func Delta(n model.Nature, side model.EntryType, amount decimal.Decimal) decimal.Decimal {
	increases := n.DebitNatured() == (side == model.Debit)
	if increases {
		return amount
	}
	return amount.Neg()
}
