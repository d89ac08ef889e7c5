package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Nature classifies account groups in the chart of accounts.
type Nature string

const (
	NatureAssets      Nature = "Assets"
	NatureLiabilities Nature = "Liabilities"
	NatureCapital     Nature = "Capital"
	NatureIncome      Nature = "Income"
	NatureExpenses    Nature = "Expenses"
	NatureDrawings    Nature = "Drawings"
)

// Natures lists every known nature in chart order.
var Natures = []Nature{NatureAssets, NatureLiabilities, NatureCapital, NatureIncome, NatureExpenses, NatureDrawings}

// ParseNature accepts any casing of a known nature name.
func ParseNature(s string) (Nature, error) {
	for _, n := range Natures {
		if strings.EqualFold(string(n), strings.TrimSpace(s)) {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown nature %q", s)
}

// DebitNatured reports whether a debit increases balances of this nature.
func (n Nature) DebitNatured() bool {
	switch n {
	case NatureAssets, NatureExpenses, NatureDrawings:
		return true
	default:
		return false
	}
}

// AccountGroup is an internal node of the chart of accounts.
// Balance is a cache of the sum of its direct children.
type AccountGroup struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Code      string          `gorm:"column:code;not null;uniqueIndex:idx_group_branch_code" json:"code"`
	Name      string          `gorm:"column:name;not null" json:"name"`
	Nature    Nature          `gorm:"column:nature;not null" json:"nature"`
	Type      string          `gorm:"column:type" json:"type,omitempty"`
	ParentID  *uint           `gorm:"column:parent_id;index" json:"parentId,omitempty"`
	BranchID  uint            `gorm:"column:branch_id;not null;uniqueIndex:idx_group_branch_code" json:"branchId"`
	Balance   decimal.Decimal `gorm:"column:balance;type:varchar(78);not null" json:"balance"`
	IsActive  bool            `gorm:"column:is_active;not null;default:true" json:"isActive"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (AccountGroup) TableName() string {
	return "account_groups"
}

// IsRoot reports whether the group has no parent.
func (g AccountGroup) IsRoot() bool {
	return g.ParentID == nil
}

// LedgerType tags what kind of leaf account a ledger is.
type LedgerType string

const (
	LedgerTypeCash       LedgerType = "Cash"
	LedgerTypeBank       LedgerType = "Bank"
	LedgerTypeReceivable LedgerType = "Receivable"
	LedgerTypePayable    LedgerType = "Payable"
	LedgerTypeGeneral    LedgerType = "General"
)

// LedgerTypes lists every known ledger type.
var LedgerTypes = []LedgerType{LedgerTypeCash, LedgerTypeBank, LedgerTypeReceivable, LedgerTypePayable, LedgerTypeGeneral}

// ParseLedgerType accepts any casing; empty means General.
func ParseLedgerType(s string) (LedgerType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return LedgerTypeGeneral, nil
	}
	for _, t := range LedgerTypes {
		if strings.EqualFold(string(t), s) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown ledger type %q", s)
}

// RequiredNature is the group nature a ledger of this type must sit under,
// or "" when any nature is acceptable.
func (t LedgerType) RequiredNature() Nature {
	switch t {
	case LedgerTypeCash, LedgerTypeBank, LedgerTypeReceivable:
		return NatureAssets
	case LedgerTypePayable:
		return NatureLiabilities
	default:
		return ""
	}
}

// Ledger is a leaf account that journal entries post against.
type Ledger struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Code           string          `gorm:"column:code;not null;uniqueIndex:idx_ledger_branch_code" json:"code"`
	Name           string          `gorm:"column:name;not null" json:"name"`
	Type           LedgerType      `gorm:"column:type;not null" json:"type"`
	AccountGroupID uint            `gorm:"column:account_group_id;not null;index" json:"accountGroupId"`
	BranchID       uint            `gorm:"column:branch_id;not null;uniqueIndex:idx_ledger_branch_code" json:"branchId"`
	OpeningBalance decimal.Decimal `gorm:"column:opening_balance;type:varchar(78);not null" json:"openingBalance"`
	Balance        decimal.Decimal `gorm:"column:balance;type:varchar(78);not null" json:"balance"`
	IsActive       bool            `gorm:"column:is_active;not null;default:true" json:"isActive"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

func (Ledger) TableName() string {
	return "ledgers"
}

// LedgerWithNature pairs a ledger with the nature of its account group.
type LedgerWithNature struct {
	Ledger
	Nature Nature
}
