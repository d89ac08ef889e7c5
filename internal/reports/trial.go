// Package reports derives the trial balance and trading account from the
// cached balances of the account tree.
package reports

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/cleared-dev/branchledger/internal/accounts"
	"github.com/cleared-dev/branchledger/internal/balance"
	"github.com/cleared-dev/branchledger/internal/errs"
	"github.com/cleared-dev/branchledger/internal/logging"
	"github.com/cleared-dev/branchledger/internal/model"
)

// Service builds reports.
type Service struct {
	db       *gorm.DB
	lg       logging.Logger
	accounts *accounts.Service
	balances *balance.Engine
}

// NewService creates a reports Service.
func NewService(db *gorm.DB, lg logging.Logger) *Service {
	return &Service{db: db, lg: lg, accounts: accounts.NewService(db, lg), balances: balance.New(db, lg)}
}

// TrialBalanceLine is one ledger on the trial balance.
type TrialBalanceLine struct {
	ID            uint            `json:"id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	BalanceType   model.EntryType `json:"balanceType"`
	BalanceAmount decimal.Decimal `json:"balanceAmount"`
}

// Totals sums both sides of the trial balance.
type Totals struct {
	TotalDebitBalance  decimal.Decimal `json:"totalDebitBalance"`
	TotalCreditBalance decimal.Decimal `json:"totalCreditBalance"`
	Difference         decimal.Decimal `json:"difference"`
}

// LedgerMismatch is a ledger whose stored balance differs from the one
// recomputed from its journal.
type LedgerMismatch struct {
	ID         uint            `json:"id"`
	Name       string          `json:"name"`
	Calculated decimal.Decimal `json:"calculated"`
	Stored     decimal.Decimal `json:"stored"`
}

// BalanceValidation lists stored figures that disagree with their sources.
type BalanceValidation struct {
	HasBalanceMismatches bool                    `json:"hasBalanceMismatches"`
	MismatchedLedgers    []LedgerMismatch        `json:"mismatchedLedgers"`
	MismatchedGroups     []balance.GroupMismatch `json:"mismatchedGroups,omitempty"`
}

// TrialBalanceReport lists every active ledger on its natural side.
type TrialBalanceReport struct {
	BranchID          uint               `json:"branchId"`
	Ledgers           []TrialBalanceLine `json:"ledgers"`
	Totals            Totals             `json:"totals"`
	BalanceValidation BalanceValidation  `json:"balanceValidation"`
}

// Err reports the first inconsistency as an *errs.ConsistencyError, or nil
// when both sides agree and nothing is mismatched.
func (r *TrialBalanceReport) Err() error {
	if !r.Totals.Difference.IsZero() {
		return &errs.ConsistencyError{
			Subject:  "trial balance",
			Expected: r.Totals.TotalDebitBalance.String(),
			Actual:   r.Totals.TotalCreditBalance.String(),
		}
	}
	if len(r.BalanceValidation.MismatchedLedgers) > 0 {
		m := r.BalanceValidation.MismatchedLedgers[0]
		return &errs.ConsistencyError{
			Subject:  fmt.Sprintf("ledger %s balance", m.Name),
			Expected: m.Calculated.String(),
			Actual:   m.Stored.String(),
		}
	}
	if len(r.BalanceValidation.MismatchedGroups) > 0 {
		m := r.BalanceValidation.MismatchedGroups[0]
		return &errs.ConsistencyError{
			Subject:  fmt.Sprintf("group %s balance", m.Code),
			Expected: m.Calculated.String(),
			Actual:   m.Stored.String(),
		}
	}
	return nil
}

// TrialBalance classifies each active ledger of a branch by its group's
// nature. Debit-natured ledgers go on the debit side and the rest on the
// credit side, always as an absolute amount. Stored balances are compared
// against their journal but never corrected.
func (s *Service) TrialBalance(ctx context.Context, branchID uint) (*TrialBalanceReport, error) {
	groups, err := s.accounts.Groups(ctx, branchID)
	if err != nil {
		return nil, err
	}
	natureByGroup := make(map[uint]model.Nature, len(groups))
	for _, g := range groups {
		natureByGroup[g.ID] = g.Nature
	}

	ledgers, err := s.accounts.Ledgers(ctx, branchID)
	if err != nil {
		return nil, err
	}

	r := &TrialBalanceReport{
		BranchID: branchID,
		Ledgers:  []TrialBalanceLine{},
		Totals:   Totals{TotalDebitBalance: decimal.Zero, TotalCreditBalance: decimal.Zero},
		BalanceValidation: BalanceValidation{
			MismatchedLedgers: []LedgerMismatch{},
		},
	}

	for _, l := range ledgers {
		if !l.IsActive {
			continue
		}
		n, ok := natureByGroup[l.AccountGroupID]
		if !ok {
			return nil, errs.NotFound("account group", l.AccountGroupID)
		}

		line := TrialBalanceLine{ID: l.ID, Code: l.Code, Name: l.Name, BalanceAmount: l.Balance.Abs()}
		if n.DebitNatured() {
			line.BalanceType = model.Debit
			r.Totals.TotalDebitBalance = r.Totals.TotalDebitBalance.Add(line.BalanceAmount)
		} else {
			line.BalanceType = model.Credit
			r.Totals.TotalCreditBalance = r.Totals.TotalCreditBalance.Add(line.BalanceAmount)
		}
		r.Ledgers = append(r.Ledgers, line)

		calculated, err := s.balances.RecomputeLedger(ctx, l.ID)
		if err != nil {
			return nil, err
		}
		if !calculated.Equal(l.Balance) {
			r.BalanceValidation.MismatchedLedgers = append(r.BalanceValidation.MismatchedLedgers, LedgerMismatch{
				ID: l.ID, Name: l.Name, Calculated: calculated, Stored: l.Balance,
			})
		}
	}
	r.Totals.Difference = r.Totals.TotalDebitBalance.Sub(r.Totals.TotalCreditBalance)

	groupMismatches, err := s.balances.CheckGroups(ctx, branchID)
	if err != nil {
		return nil, err
	}
	r.BalanceValidation.MismatchedGroups = groupMismatches
	r.BalanceValidation.HasBalanceMismatches = len(r.BalanceValidation.MismatchedLedgers) > 0 || len(groupMismatches) > 0

	if err := r.Err(); err != nil {
		s.lg.Warn("trial balance inconsistent", "branch", branchID, "error", err)
	}
	return r, nil
}
