package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// VoucherType identifies the kind of user-entered transaction.
type VoucherType string

const (
	VoucherPayment    VoucherType = "PAYMENT"
	VoucherReceipt    VoucherType = "RECEIPT"
	VoucherJournal    VoucherType = "JOURNAL"
	VoucherContra     VoucherType = "CONTRA"
	VoucherCreditNote VoucherType = "CREDIT_NOTE"
	VoucherDebitNote  VoucherType = "DEBIT_NOTE"
)

// VoucherTypes lists every known voucher type.
var VoucherTypes = []VoucherType{VoucherPayment, VoucherReceipt, VoucherJournal, VoucherContra, VoucherCreditNote, VoucherDebitNote}

// Valid reports whether t is a known voucher type.
func (t VoucherType) Valid() bool {
	for _, v := range VoucherTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ParseVoucherType accepts any casing and "-" or "_" separators.
func ParseVoucherType(s string) (VoucherType, error) {
	t := VoucherType(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	if !t.Valid() {
		return "", fmt.Errorf("unknown voucher type %q", s)
	}
	return t, nil
}

// EntryType is the side of a posting.
type EntryType string

const (
	Debit  EntryType = "DEBIT"
	Credit EntryType = "CREDIT"
)

// Inverse returns the opposite side.
func (e EntryType) Inverse() EntryType {
	if e == Debit {
		return Credit
	}
	return Debit
}

// VoucherBook scopes voucher numbering to a branch and voucher type.
type VoucherBook struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	BranchID  uint        `gorm:"column:branch_id;not null;index:idx_book_branch_type" json:"branchId"`
	Type      VoucherType `gorm:"column:type;not null;index:idx_book_branch_type" json:"type"`
	Name      string      `gorm:"column:name;not null" json:"name"`
	Prefix    string      `gorm:"column:prefix" json:"prefix,omitempty"`
	IsActive  bool        `gorm:"column:is_active;not null;default:true" json:"isActive"`
	// ActiveKey is "<branch>:<type>" while the book is active and NULL
	// otherwise, so the store allows one active book per branch and type.
	ActiveKey *string     `gorm:"column:active_key;uniqueIndex" json:"-"`
	CreatedAt time.Time   `json:"createdAt"`
}

func (VoucherBook) TableName() string {
	return "voucher_books"
}

// Display renders a voucher number with the book prefix, e.g. "PV-7".
func (b VoucherBook) Display(number string) string {
	if b.Prefix == "" {
		return number
	}
	return b.Prefix + "-" + number
}

// Voucher is a posted transaction with one or more lines.
type Voucher struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	VoucherNumber string          `gorm:"column:voucher_number;not null;uniqueIndex:idx_voucher_book_number" json:"voucherNumber"`
	Date          time.Time       `gorm:"column:date;not null;index" json:"date"`
	Type          VoucherType     `gorm:"column:type;not null" json:"type"`
	VoucherBookID uint            `gorm:"column:voucher_book_id;not null;uniqueIndex:idx_voucher_book_number" json:"voucherBookId"`
	BranchID      uint            `gorm:"column:branch_id;not null;index" json:"branchId"`
	TotalAmount   decimal.Decimal `gorm:"column:total_amount;type:varchar(78);not null" json:"totalAmount"`
	Narration     string          `gorm:"column:narration" json:"narration,omitempty"`
	Reference     string          `gorm:"column:reference" json:"reference,omitempty"`
	Actor         string          `gorm:"column:actor" json:"actor,omitempty"`
	IsActive      bool            `gorm:"column:is_active;not null;default:true" json:"isActive"`
	Entries       []VoucherEntry  `gorm:"foreignKey:VoucherID" json:"entries"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func (Voucher) TableName() string {
	return "vouchers"
}

// VoucherEntry is one line of a voucher. Type is the resolved side of the
// primary ledger; the voucher ledger always takes the inverse.
type VoucherEntry struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	VoucherID       uint            `gorm:"column:voucher_id;not null;index" json:"voucherId"`
	LedgerID        uint            `gorm:"column:ledger_id;not null;index" json:"ledgerId"`
	VoucherLedgerID uint            `gorm:"column:voucher_ledger_id;not null;index" json:"voucherLedgerId"`
	Amount          decimal.Decimal `gorm:"column:amount;type:varchar(78);not null" json:"amount"`
	Type            EntryType       `gorm:"column:type;not null" json:"type"`
	Narration       string          `gorm:"column:narration" json:"narration,omitempty"`
}

func (VoucherEntry) TableName() string {
	return "voucher_entries"
}
