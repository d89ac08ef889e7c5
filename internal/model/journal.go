package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FinancialYear bounds a branch's accounting year (inclusive on both ends).
type FinancialYear struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BranchID  uint      `gorm:"column:branch_id;not null;index" json:"branchId"`
	StartDate time.Time `gorm:"column:start_date;not null" json:"startDate"`
	EndDate   time.Time `gorm:"column:end_date;not null" json:"endDate"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true" json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

func (FinancialYear) TableName() string {
	return "financial_years"
}

// Contains reports whether date falls within the year.
func (y FinancialYear) Contains(date time.Time) bool {
	return !date.Before(y.StartDate) && !date.After(y.EndDate)
}

// JournalBook groups journal entries for one branch and financial year.
type JournalBook struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	BranchID        uint      `gorm:"column:branch_id;not null;index" json:"branchId"`
	FinancialYearID uint      `gorm:"column:financial_year_id;not null;uniqueIndex" json:"financialYearId"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (JournalBook) TableName() string {
	return "journal_books"
}

// JournalEntry is one side of a double-entry posting. Rows are append-only.
type JournalEntry struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	JournalBookID uint            `gorm:"column:journal_book_id;not null;index" json:"journalBookId"`
	VoucherID     uint            `gorm:"column:voucher_id;not null;index" json:"voucherId"`
	Date          time.Time       `gorm:"column:date;not null;index:idx_journal_ledger_date" json:"date"`
	LedgerID      uint            `gorm:"column:ledger_id;not null;index:idx_journal_ledger_date" json:"ledgerId"`
	Amount        decimal.Decimal `gorm:"column:amount;type:varchar(78);not null" json:"amount"`
	Type          EntryType       `gorm:"column:type;not null" json:"type"`
	PreBalance    decimal.Decimal `gorm:"column:pre_balance;type:varchar(78);not null" json:"preBalance"`
	Narration     string          `gorm:"column:narration" json:"narration,omitempty"`
	IsActive      bool            `gorm:"column:is_active;not null;default:true" json:"isActive"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func (JournalEntry) TableName() string {
	return "journal_entries"
}

// Signed returns the entry amount as it moves the running pre-balance:
// credits add, debits subtract.
func (e JournalEntry) Signed() decimal.Decimal {
	if e.Type == Credit {
		return e.Amount
	}
	return e.Amount.Neg()
}
