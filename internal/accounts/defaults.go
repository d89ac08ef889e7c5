package accounts

import (
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/branchledger/internal/model"
)

// Group type tags that the trading account partitions on.
const (
	TypePurchase      = "PURCHASE"
	TypeSales         = "SALES"
	TypeDirectIncome  = "DIRECT_INCOME"
	TypeDirectExpense = "DIRECT_EXPENSE"
)

// DefaultChart returns the chart seeded into a new branch.
func DefaultChart() []ChartRow {
	g := func(code, name string, n model.Nature, typ, parent string) ChartRow {
		return ChartRow{Code: code, Name: name, Kind: KindGroup, Nature: n, Type: typ, ParentCode: parent, OpeningBalance: decimal.Zero}
	}
	l := func(code, name string, typ model.LedgerType, parent string) ChartRow {
		return ChartRow{Code: code, Name: name, Kind: KindLedger, Type: string(typ), ParentCode: parent, OpeningBalance: decimal.Zero}
	}

	return []ChartRow{
		g("1", "Assets", model.NatureAssets, "", ""),
		g("1.1", "Cash-in-Hand", model.NatureAssets, "", "1"),
		l("1.1.1", "Cash", model.LedgerTypeCash, "1.1"),
		g("1.2", "Bank Accounts", model.NatureAssets, "", "1"),
		l("1.2.1", "Bank", model.LedgerTypeBank, "1.2"),
		g("1.3", "Sundry Debtors", model.NatureAssets, "", "1"),
		l("1.3.1", "Trade Receivables", model.LedgerTypeReceivable, "1.3"),

		g("2", "Liabilities", model.NatureLiabilities, "", ""),
		g("2.1", "Sundry Creditors", model.NatureLiabilities, "", "2"),
		l("2.1.1", "Trade Payables", model.LedgerTypePayable, "2.1"),
		g("2.2", "Loans", model.NatureLiabilities, "", "2"),
		l("2.2.1", "Bank Loan", model.LedgerTypeGeneral, "2.2"),

		g("3", "Capital", model.NatureCapital, "", ""),
		l("3.1", "Owner's Capital", model.LedgerTypeGeneral, "3"),

		g("4", "Income", model.NatureIncome, "", ""),
		g("4.1", "Sales Accounts", model.NatureIncome, TypeSales, "4"),
		l("4.1.1", "Sales", model.LedgerTypeGeneral, "4.1"),
		g("4.2", "Direct Income", model.NatureIncome, TypeDirectIncome, "4"),
		g("4.3", "Indirect Income", model.NatureIncome, "", "4"),
		l("4.3.1", "Interest Received", model.LedgerTypeGeneral, "4.3"),

		g("5", "Expenses", model.NatureExpenses, "", ""),
		g("5.1", "Purchase Accounts", model.NatureExpenses, TypePurchase, "5"),
		l("5.1.1", "Purchases", model.LedgerTypeGeneral, "5.1"),
		g("5.2", "Direct Expenses", model.NatureExpenses, TypeDirectExpense, "5"),
		l("5.2.1", "Freight Inward", model.LedgerTypeGeneral, "5.2"),
		g("5.3", "Indirect Expenses", model.NatureExpenses, "", "5"),
		l("5.3.1", "Rent", model.LedgerTypeGeneral, "5.3"),
		l("5.3.2", "Salaries", model.LedgerTypeGeneral, "5.3"),

		g("6", "Drawings", model.NatureDrawings, "", ""),
		l("6.1", "Owner's Drawings", model.LedgerTypeGeneral, "6"),
	}
}
