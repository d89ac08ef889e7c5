// Package balance keeps cached ledger and account group balances in step
// with the journal.
//
// Ledger balances move by one signed delta per journal entry. Group balances
// are always recomputed as the sum of their active direct children, walking
// parent chains towards the root.
package balance

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cleared-dev/branchledger/internal/errs"
	"github.com/cleared-dev/branchledger/internal/logging"
	"github.com/cleared-dev/branchledger/internal/model"
	"github.com/cleared-dev/branchledger/internal/nature"
)

// Engine recomputes cached balances. Bind it to a transaction with WithTx
// when the update must commit together with the postings that caused it.
type Engine struct {
	db *gorm.DB
	lg logging.Logger
}

// New creates an Engine.
func New(db *gorm.DB, lg logging.Logger) *Engine {
	return &Engine{db: db, lg: lg}
}

// WithTx returns a copy of the engine that runs on tx.
func (e *Engine) WithTx(tx *gorm.DB) *Engine {
	return &Engine{db: tx, lg: e.lg}
}

// ApplyEntry moves a ledger's cached balance by the effect of one posting.
func (e *Engine) ApplyEntry(ctx context.Context, ledgerID uint, n model.Nature, side model.EntryType, amount decimal.Decimal) (decimal.Decimal, error) {
	var ledger model.Ledger
	if err := e.db.WithContext(ctx).First(&ledger, ledgerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, errs.NotFound("ledger", ledgerID)
		}
		return decimal.Zero, fmt.Errorf("loading ledger %d: %w", ledgerID, err)
	}

	updated := ledger.Balance.Add(nature.Delta(n, side, amount))
	if err := e.db.WithContext(ctx).Model(&model.Ledger{}).Where("id = ?", ledgerID).Update("balance", updated).Error; err != nil {
		return decimal.Zero, fmt.Errorf("updating ledger %d balance: %w", ledgerID, err)
	}
	return updated, nil
}

// Propagate recomputes groupID and every ancestor up to its root.
func (e *Engine) Propagate(ctx context.Context, groupID uint) error {
	return e.PropagateAll(ctx, []uint{groupID})
}

// PropagateAll recomputes the union of the parent chains of groupIDs. Each
// group is recomputed once, deepest first, so shared ancestors see their
// children's final sums.
func (e *Engine) PropagateAll(ctx context.Context, groupIDs []uint) error {
	depth := make(map[uint]int)
	groups := make(map[uint]model.AccountGroup)

	for _, id := range groupIDs {
		if _, done := depth[id]; done {
			continue
		}
		chain, err := e.parentChain(ctx, id)
		if err != nil {
			return err
		}
		for i, g := range chain {
			depth[g.ID] = len(chain) - 1 - i
			groups[g.ID] = g
		}
	}

	order := make([]uint, 0, len(depth))
	for id := range depth {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool {
		if depth[order[i]] != depth[order[j]] {
			return depth[order[i]] > depth[order[j]]
		}
		return order[i] < order[j]
	})

	for _, id := range order {
		sum, err := e.recomputeGroup(ctx, groups[id])
		if err != nil {
			return err
		}
		e.lg.Debug("group balance recomputed", "group", id, "code", groups[id].Code, "balance", sum.String())
	}
	return nil
}

// LockChains takes row locks on every group in the parent chains of
// groupIDs, in id order. Stores without row locks ignore the clause.
func (e *Engine) LockChains(ctx context.Context, groupIDs []uint) error {
	ids := make(map[uint]bool)
	for _, id := range groupIDs {
		if ids[id] {
			continue
		}
		chain, err := e.parentChain(ctx, id)
		if err != nil {
			return err
		}
		for _, g := range chain {
			ids[g.ID] = true
		}
	}
	if len(ids) == 0 {
		return nil
	}

	ordered := make([]uint, 0, len(ids))
	for id := range ids {
		ordered = append(ordered, id)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	var locked []model.AccountGroup
	if err := e.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ordered).
		Order("id").
		Find(&locked).Error; err != nil {
		return fmt.Errorf("locking account groups: %w", err)
	}
	return nil
}

// parentChain returns [group, parent, ..., root]. A revisited group means
// the parent pointers form a cycle.
func (e *Engine) parentChain(ctx context.Context, groupID uint) ([]model.AccountGroup, error) {
	visited := make(map[uint]bool)
	var chain []model.AccountGroup

	next := &groupID
	for next != nil {
		id := *next
		if visited[id] {
			return nil, fmt.Errorf("group %d: %w", groupID, errs.ErrCycle)
		}
		visited[id] = true

		var g model.AccountGroup
		if err := e.db.WithContext(ctx).First(&g, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, errs.NotFound("account group", id)
			}
			return nil, fmt.Errorf("loading account group %d: %w", id, err)
		}
		chain = append(chain, g)
		next = g.ParentID
	}
	return chain, nil
}

// childSum adds the cached balances of g's active direct children.
func (e *Engine) childSum(ctx context.Context, g model.AccountGroup) (decimal.Decimal, error) {
	var subGroups []model.AccountGroup
	if err := e.db.WithContext(ctx).
		Where("parent_id = ? AND branch_id = ? AND is_active = ?", g.ID, g.BranchID, true).
		Find(&subGroups).Error; err != nil {
		return decimal.Zero, fmt.Errorf("loading children of group %d: %w", g.ID, err)
	}

	var ledgers []model.Ledger
	if err := e.db.WithContext(ctx).
		Where("account_group_id = ? AND branch_id = ? AND is_active = ?", g.ID, g.BranchID, true).
		Find(&ledgers).Error; err != nil {
		return decimal.Zero, fmt.Errorf("loading ledgers of group %d: %w", g.ID, err)
	}

	sum := decimal.Zero
	for _, c := range subGroups {
		sum = sum.Add(c.Balance)
	}
	for _, l := range ledgers {
		sum = sum.Add(l.Balance)
	}
	return sum, nil
}

func (e *Engine) recomputeGroup(ctx context.Context, g model.AccountGroup) (decimal.Decimal, error) {
	sum, err := e.childSum(ctx, g)
	if err != nil {
		return decimal.Zero, err
	}
	if err := e.db.WithContext(ctx).Model(&model.AccountGroup{}).Where("id = ?", g.ID).Update("balance", sum).Error; err != nil {
		return decimal.Zero, fmt.Errorf("updating group %d balance: %w", g.ID, err)
	}
	return sum, nil
}

// RebuildBranch recomputes every group of a branch bottom-up. Ledger
// balances are left as they are.
func (e *Engine) RebuildBranch(ctx context.Context, branchID uint) error {
	var groups []model.AccountGroup
	if err := e.db.WithContext(ctx).Where("branch_id = ?", branchID).Find(&groups).Error; err != nil {
		return fmt.Errorf("loading groups of branch %d: %w", branchID, err)
	}

	ids := make([]uint, len(groups))
	for i, g := range groups {
		ids[i] = g.ID
	}
	return e.PropagateAll(ctx, ids)
}

// GroupMismatch is a group whose stored balance differs from the sum of
// its children's stored balances.
type GroupMismatch struct {
	ID         uint            `json:"id"`
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	Calculated decimal.Decimal `json:"calculated"`
	Stored     decimal.Decimal `json:"stored"`
}

// CheckGroups compares every active group of a branch against its children
// without writing anything.
func (e *Engine) CheckGroups(ctx context.Context, branchID uint) ([]GroupMismatch, error) {
	var groups []model.AccountGroup
	if err := e.db.WithContext(ctx).
		Where("branch_id = ? AND is_active = ?", branchID, true).
		Order("code").
		Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("loading groups of branch %d: %w", branchID, err)
	}

	var mismatches []GroupMismatch
	for _, g := range groups {
		sum, err := e.childSum(ctx, g)
		if err != nil {
			return nil, err
		}
		if !sum.Equal(g.Balance) {
			mismatches = append(mismatches, GroupMismatch{
				ID: g.ID, Code: g.Code, Name: g.Name, Calculated: sum, Stored: g.Balance,
			})
		}
	}
	return mismatches, nil
}

// RecomputeLedger derives a ledger's balance from its opening balance and
// active journal entries. The stored balance is not touched.
func (e *Engine) RecomputeLedger(ctx context.Context, ledgerID uint) (decimal.Decimal, error) {
	var ledger model.Ledger
	if err := e.db.WithContext(ctx).First(&ledger, ledgerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, errs.NotFound("ledger", ledgerID)
		}
		return decimal.Zero, fmt.Errorf("loading ledger %d: %w", ledgerID, err)
	}
	var group model.AccountGroup
	if err := e.db.WithContext(ctx).First(&group, ledger.AccountGroupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, errs.NotFound("account group", ledger.AccountGroupID)
		}
		return decimal.Zero, fmt.Errorf("loading account group %d: %w", ledger.AccountGroupID, err)
	}

	var entries []model.JournalEntry
	if err := e.db.WithContext(ctx).
		Where("ledger_id = ? AND is_active = ?", ledgerID, true).
		Find(&entries).Error; err != nil {
		return decimal.Zero, fmt.Errorf("loading journal entries of ledger %d: %w", ledgerID, err)
	}

	total := ledger.OpeningBalance
	for _, je := range entries {
		total = total.Add(nature.Delta(group.Nature, je.Type, je.Amount))
	}
	return total, nil
}
