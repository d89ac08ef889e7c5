// Package journal writes double-entry journal rows and answers historical
// balance questions about them.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/cleared-dev/branchledger/internal/errs"
	"github.com/cleared-dev/branchledger/internal/logging"
	"github.com/cleared-dev/branchledger/internal/model"
)

// Service reads and appends journal entries.
type Service struct {
	db *gorm.DB
	lg logging.Logger
}

// NewService creates a journal Service.
func NewService(db *gorm.DB, lg logging.Logger) *Service {
	return &Service{db: db, lg: lg}
}

// WithTx returns a copy of the service bound to tx.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{db: tx, lg: s.lg}
}

// PostParams holds one journal row to append.
type PostParams struct {
	JournalBookID uint
	VoucherID     uint
	Date          time.Time
	LedgerID      uint
	Side          model.EntryType
	Amount        decimal.Decimal
	Narration     string
}

// Post appends one journal row stamped with the ledger's pre-balance at the
// row's date.
func (s *Service) Post(ctx context.Context, p PostParams) (*model.JournalEntry, error) {
	pre, err := s.PreBalanceAt(ctx, p.LedgerID, p.Date)
	if err != nil {
		return nil, err
	}

	je := model.JournalEntry{
		JournalBookID: p.JournalBookID,
		VoucherID:     p.VoucherID,
		Date:          p.Date,
		LedgerID:      p.LedgerID,
		Amount:        p.Amount,
		Type:          p.Side,
		PreBalance:    pre,
		Narration:     p.Narration,
		IsActive:      true,
	}
	if err := s.db.WithContext(ctx).Create(&je).Error; err != nil {
		return nil, fmt.Errorf("writing journal entry for ledger %d: %w", p.LedgerID, err)
	}
	return &je, nil
}

// PreBalanceAt returns a ledger's running balance just before date. The
// latest active entry strictly before date contributes its own pre-balance
// plus its signed amount; with no such entry the opening balance applies.
// Entries dated on date itself are not counted.
func (s *Service) PreBalanceAt(ctx context.Context, ledgerID uint, date time.Time) (decimal.Decimal, error) {
	var prior model.JournalEntry
	err := s.db.WithContext(ctx).
		Where("ledger_id = ? AND is_active = ? AND date < ?", ledgerID, true, date).
		Order("date DESC").Order("id DESC").
		First(&prior).Error
	if err == nil {
		return prior.PreBalance.Add(prior.Signed()), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, fmt.Errorf("finding prior entry for ledger %d: %w", ledgerID, err)
	}

	var ledger model.Ledger
	if err := s.db.WithContext(ctx).First(&ledger, ledgerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, errs.NotFound("ledger", ledgerID)
		}
		return decimal.Zero, fmt.Errorf("loading ledger %d: %w", ledgerID, err)
	}
	return ledger.OpeningBalance, nil
}

// EntriesForVoucher returns a voucher's journal rows in posting order.
func (s *Service) EntriesForVoucher(ctx context.Context, voucherID uint) ([]model.JournalEntry, error) {
	var entries []model.JournalEntry
	if err := s.db.WithContext(ctx).Where("voucher_id = ?", voucherID).Order("id").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("loading journal entries of voucher %d: %w", voucherID, err)
	}
	return entries, nil
}

// StatementLine is one journal row of a ledger statement.
type StatementLine struct {
	EntryID     uint            `json:"entryId"`
	Date        time.Time       `json:"date"`
	VoucherID   uint            `json:"voucherId"`
	Type        model.EntryType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	PreBalance  decimal.Decimal `json:"preBalance"`
	PostBalance decimal.Decimal `json:"postBalance"`
	Narration   string          `json:"narration,omitempty"`
}

// Statement lists a ledger's active entries between two dates.
type Statement struct {
	LedgerID uint            `json:"ledgerId"`
	From     time.Time       `json:"from"`
	To       time.Time       `json:"to"`
	Opening  decimal.Decimal `json:"opening"`
	Lines    []StatementLine `json:"lines"`
	Closing  decimal.Decimal `json:"closing"`
}

// Statement returns the entries of ledgerID dated from..to inclusive,
// ordered by date. Opening is the pre-balance at from; Closing adds each
// line's signed amount to it.
func (s *Service) Statement(ctx context.Context, ledgerID uint, from, to time.Time) (*Statement, error) {
	if to.Before(from) {
		return nil, errs.Invalid("to", "%s is before %s", to.Format(DateFormat), from.Format(DateFormat))
	}

	opening, err := s.PreBalanceAt(ctx, ledgerID, from)
	if err != nil {
		return nil, err
	}

	var entries []model.JournalEntry
	if err := s.db.WithContext(ctx).
		Where("ledger_id = ? AND is_active = ? AND date >= ? AND date <= ?", ledgerID, true, from, to).
		Order("date").Order("id").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("loading statement for ledger %d: %w", ledgerID, err)
	}

	st := &Statement{LedgerID: ledgerID, From: from, To: to, Opening: opening, Closing: opening}
	for _, je := range entries {
		st.Lines = append(st.Lines, StatementLine{
			EntryID:     je.ID,
			Date:        je.Date,
			VoucherID:   je.VoucherID,
			Type:        je.Type,
			Amount:      je.Amount,
			PreBalance:  je.PreBalance,
			PostBalance: je.PreBalance.Add(je.Signed()),
			Narration:   je.Narration,
		})
		st.Closing = st.Closing.Add(je.Signed())
	}
	return st, nil
}
