// Package accounts stores the chart of accounts: account groups, their leaf
// ledgers and the hierarchical codes that address them.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cleared-dev/branchledger/internal/auditlog"
	"github.com/cleared-dev/branchledger/internal/balance"
	"github.com/cleared-dev/branchledger/internal/errs"
	"github.com/cleared-dev/branchledger/internal/id"
	"github.com/cleared-dev/branchledger/internal/logging"
	"github.com/cleared-dev/branchledger/internal/model"
)

// Service reads and writes the account tree.
type Service struct {
	db       *gorm.DB
	lg       logging.Logger
	balances *balance.Engine
}

// NewService creates a Service.
func NewService(db *gorm.DB, lg logging.Logger) *Service {
	return &Service{db: db, lg: lg, balances: balance.New(db, lg)}
}

// WithTx returns a copy of the service bound to tx.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{db: tx, lg: s.lg, balances: s.balances.WithTx(tx)}
}

// NewGroup describes a group to create. Code is allocated when empty.
// Nature defaults to the parent's nature.
type NewGroup struct {
	BranchID   uint
	ParentCode string
	Code       string
	Name       string
	Nature     model.Nature
	Type       string
	Actor      string
}

// NewLedger describes a ledger to create. Code is allocated when empty.
type NewLedger struct {
	BranchID       uint
	GroupCode      string
	Code           string
	Name           string
	Type           model.LedgerType
	OpeningBalance decimal.Decimal
	Actor          string
}

// CreateGroup allocates a code and inserts the group in one transaction.
func (s *Service) CreateGroup(ctx context.Context, ng NewGroup) (*model.AccountGroup, error) {
	if strings.TrimSpace(ng.Name) == "" {
		return nil, errs.Invalid("name", "is required")
	}
	if ng.BranchID == 0 {
		return nil, errs.Invalid("branchId", "is required")
	}

	var created *model.AccountGroup
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		svc := s.WithTx(tx)

		g := model.AccountGroup{
			Name:     ng.Name,
			Nature:   ng.Nature,
			Type:     ng.Type,
			BranchID: ng.BranchID,
			Balance:  decimal.Zero,
			IsActive: true,
		}

		if ng.ParentCode != "" {
			parent, err := svc.lockGroup(ctx, ng.BranchID, ng.ParentCode)
			if err != nil {
				return err
			}
			if !parent.IsActive {
				return errs.Invalid("parentCode", "group %s is inactive", parent.Code)
			}
			if g.Nature == "" {
				g.Nature = parent.Nature
			} else if g.Nature != parent.Nature {
				return errs.Invalid("nature", "%s differs from parent %s nature %s", g.Nature, parent.Code, parent.Nature)
			}
			g.ParentID = &parent.ID
		} else if g.Nature == "" {
			return errs.Invalid("nature", "is required for a root group")
		}

		code, err := svc.resolveCode(ctx, ng.ParentCode, ng.Code, ng.BranchID)
		if err != nil {
			return err
		}
		g.Code = code

		if err := tx.Create(&g).Error; err != nil {
			return fmt.Errorf("creating group %s: %w", g.Code, err)
		}
		if err := auditlog.Append(tx, auditlog.Entry{
			BranchID: g.BranchID,
			Actor:    ng.Actor,
			Action:   auditlog.ActionGroupCreated,
			Details:  fmt.Sprintf("%s %s (%s)", g.Code, g.Name, g.Nature),
		}); err != nil {
			return err
		}
		created = &g
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.lg.Info("account group created", "code", created.Code, "name", created.Name, "branch", created.BranchID)
	return created, nil
}

// CreateLedger allocates a code, inserts the ledger with balance equal to
// its opening balance and propagates the opening balance up the tree.
func (s *Service) CreateLedger(ctx context.Context, nl NewLedger) (*model.Ledger, error) {
	if strings.TrimSpace(nl.Name) == "" {
		return nil, errs.Invalid("name", "is required")
	}
	if nl.GroupCode == "" {
		return nil, errs.Invalid("groupCode", "is required")
	}
	if nl.Type == "" {
		nl.Type = model.LedgerTypeGeneral
	}

	var created *model.Ledger
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		svc := s.WithTx(tx)

		group, err := svc.lockGroup(ctx, nl.BranchID, nl.GroupCode)
		if err != nil {
			return err
		}
		if !group.IsActive {
			return errs.Invalid("groupCode", "group %s is inactive", group.Code)
		}
		if want := nl.Type.RequiredNature(); want != "" && want != group.Nature {
			return errs.Invalid("type", "%s ledger needs a %s group, %s is %s", nl.Type, want, group.Code, group.Nature)
		}

		code, err := svc.resolveCode(ctx, group.Code, nl.Code, nl.BranchID)
		if err != nil {
			return err
		}

		l := model.Ledger{
			Code:           code,
			Name:           nl.Name,
			Type:           nl.Type,
			AccountGroupID: group.ID,
			BranchID:       nl.BranchID,
			OpeningBalance: nl.OpeningBalance,
			Balance:        nl.OpeningBalance,
			IsActive:       true,
		}
		if err := tx.Create(&l).Error; err != nil {
			return fmt.Errorf("creating ledger %s: %w", l.Code, err)
		}
		if err := svc.balances.Propagate(ctx, group.ID); err != nil {
			return err
		}
		if err := auditlog.Append(tx, auditlog.Entry{
			BranchID: l.BranchID,
			Actor:    nl.Actor,
			Action:   auditlog.ActionLedgerCreated,
			Details:  fmt.Sprintf("%s %s opening %s", l.Code, l.Name, l.OpeningBalance),
		}); err != nil {
			return err
		}
		created = &l
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.lg.Info("ledger created", "code", created.Code, "name", created.Name, "branch", created.BranchID)
	return created, nil
}

// resolveCode allocates a code when requested is empty, otherwise checks
// that requested is a free direct child of parentCode.
func (s *Service) resolveCode(ctx context.Context, parentCode, requested string, branchID uint) (string, error) {
	if requested == "" {
		return s.AllocateChildCode(ctx, parentCode, branchID)
	}
	if _, ok := id.ChildSegment(parentCode, requested); !ok {
		return "", errs.Invalid("code", "%q is not a direct child of %q", requested, parentCode)
	}

	var n int64
	if err := s.db.WithContext(ctx).Model(&model.AccountGroup{}).
		Where("branch_id = ? AND code = ?", branchID, requested).Count(&n).Error; err != nil {
		return "", fmt.Errorf("checking code %s: %w", requested, err)
	}
	if n == 0 {
		if err := s.db.WithContext(ctx).Model(&model.Ledger{}).
			Where("branch_id = ? AND code = ?", branchID, requested).Count(&n).Error; err != nil {
			return "", fmt.Errorf("checking code %s: %w", requested, err)
		}
	}
	if n > 0 {
		return "", errs.Invalid("code", "%s is already in use", requested)
	}
	return requested, nil
}

// lockGroup loads a group by code and takes a row lock where the store
// supports one, so concurrent creates under one parent serialize.
func (s *Service) lockGroup(ctx context.Context, branchID uint, code string) (*model.AccountGroup, error) {
	var g model.AccountGroup
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("branch_id = ? AND code = ?", branchID, code).
		First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("account group", code)
	}
	if err != nil {
		return nil, fmt.Errorf("loading group %s: %w", code, err)
	}
	return &g, nil
}

// GetGroup returns a group by id.
func (s *Service) GetGroup(ctx context.Context, groupID uint) (*model.AccountGroup, error) {
	var g model.AccountGroup
	err := s.db.WithContext(ctx).First(&g, groupID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("account group", groupID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading group %d: %w", groupID, err)
	}
	return &g, nil
}

// GroupByCode returns a group by its code within a branch.
func (s *Service) GroupByCode(ctx context.Context, branchID uint, code string) (*model.AccountGroup, error) {
	var g model.AccountGroup
	err := s.db.WithContext(ctx).Where("branch_id = ? AND code = ?", branchID, code).First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("account group", code)
	}
	if err != nil {
		return nil, fmt.Errorf("loading group %s: %w", code, err)
	}
	return &g, nil
}

// GetLedger returns a ledger by id.
func (s *Service) GetLedger(ctx context.Context, ledgerID uint) (*model.Ledger, error) {
	var l model.Ledger
	err := s.db.WithContext(ctx).First(&l, ledgerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("ledger", ledgerID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading ledger %d: %w", ledgerID, err)
	}
	return &l, nil
}

// LedgerByCode returns a ledger by its code within a branch.
func (s *Service) LedgerByCode(ctx context.Context, branchID uint, code string) (*model.Ledger, error) {
	var l model.Ledger
	err := s.db.WithContext(ctx).Where("branch_id = ? AND code = ?", branchID, code).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("ledger", code)
	}
	if err != nil {
		return nil, fmt.Errorf("loading ledger %s: %w", code, err)
	}
	return &l, nil
}

// LedgerWithNature loads an active ledger together with its group's nature.
// Inactive ledgers are reported as not found.
func (s *Service) LedgerWithNature(ctx context.Context, ledgerID uint) (*model.LedgerWithNature, error) {
	l, err := s.GetLedger(ctx, ledgerID)
	if err != nil {
		return nil, err
	}
	if !l.IsActive {
		return nil, errs.NotFound("ledger", ledgerID)
	}
	g, err := s.GetGroup(ctx, l.AccountGroupID)
	if err != nil {
		return nil, err
	}
	return &model.LedgerWithNature{Ledger: *l, Nature: g.Nature}, nil
}

// Groups returns every group of a branch ordered by code.
func (s *Service) Groups(ctx context.Context, branchID uint) ([]model.AccountGroup, error) {
	var groups []model.AccountGroup
	if err := s.db.WithContext(ctx).Where("branch_id = ?", branchID).Order("code").Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}
	return groups, nil
}

// Ledgers returns every ledger of a branch ordered by code.
func (s *Service) Ledgers(ctx context.Context, branchID uint) ([]model.Ledger, error) {
	var ledgers []model.Ledger
	if err := s.db.WithContext(ctx).Where("branch_id = ?", branchID).Order("code").Find(&ledgers).Error; err != nil {
		return nil, fmt.Errorf("listing ledgers: %w", err)
	}
	return ledgers, nil
}

// Children returns the active direct child groups and ledgers of a group.
func (s *Service) Children(ctx context.Context, groupID uint) ([]model.AccountGroup, []model.Ledger, error) {
	db := s.db.WithContext(ctx)

	var groups []model.AccountGroup
	if err := db.Where("parent_id = ? AND is_active = ?", groupID, true).Order("code").Find(&groups).Error; err != nil {
		return nil, nil, fmt.Errorf("listing child groups of %d: %w", groupID, err)
	}
	var ledgers []model.Ledger
	if err := db.Where("account_group_id = ? AND is_active = ?", groupID, true).Order("code").Find(&ledgers).Error; err != nil {
		return nil, nil, fmt.Errorf("listing ledgers of %d: %w", groupID, err)
	}
	return groups, ledgers, nil
}

// SubtreeLedgers returns the active ledgers under the given groups,
// including those of descendant groups.
func (s *Service) SubtreeLedgers(ctx context.Context, groupIDs []uint) ([]model.Ledger, error) {
	seen := make(map[uint]bool)
	queue := append([]uint(nil), groupIDs...)
	var out []model.Ledger

	for len(queue) > 0 {
		gid := queue[0]
		queue = queue[1:]
		if seen[gid] {
			continue
		}
		seen[gid] = true

		groups, ledgers, err := s.Children(ctx, gid)
		if err != nil {
			return nil, err
		}
		out = append(out, ledgers...)
		for _, g := range groups {
			queue = append(queue, g.ID)
		}
	}
	return out, nil
}

// Deactivate marks a group inactive. A group with active children is never
// deactivated. The parent chain is recomputed without it.
func (s *Service) Deactivate(ctx context.Context, groupID uint, actor string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		svc := s.WithTx(tx)

		g, err := svc.GetGroup(ctx, groupID)
		if err != nil {
			return err
		}
		groups, ledgers, err := svc.Children(ctx, groupID)
		if err != nil {
			return err
		}
		if len(groups)+len(ledgers) > 0 {
			return errs.Invalid("group", "%s has %d active children", g.Code, len(groups)+len(ledgers))
		}

		if err := tx.Model(&model.AccountGroup{}).Where("id = ?", groupID).Update("is_active", false).Error; err != nil {
			return fmt.Errorf("deactivating group %s: %w", g.Code, err)
		}
		if g.ParentID != nil {
			if err := svc.balances.Propagate(ctx, *g.ParentID); err != nil {
				return err
			}
		}
		return auditlog.Append(tx, auditlog.Entry{
			BranchID: g.BranchID,
			Actor:    actor,
			Action:   auditlog.ActionGroupDeactivated,
			Details:  g.Code,
		})
	})
}
