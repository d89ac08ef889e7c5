package accounts

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/cleared-dev/branchledger/internal/id"
	"github.com/cleared-dev/branchledger/internal/model"
)

// ImportChart creates the groups and ledgers of rows in a branch. Rows are
// created parents first regardless of file order, all in one transaction.
// An empty code is allocated under the row's parent.
func (s *Service) ImportChart(ctx context.Context, branchID uint, rows []ChartRow, actor string) (int, error) {
	ordered := append([]ChartRow(nil), rows...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return rowDepth(ordered[i]) < rowDepth(ordered[j])
	})

	created := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		svc := s.WithTx(tx)
		for _, row := range ordered {
			switch row.Kind {
			case KindGroup:
				if _, err := svc.CreateGroup(ctx, NewGroup{
					BranchID:   branchID,
					ParentCode: row.ParentCode,
					Code:       row.Code,
					Name:       row.Name,
					Nature:     row.Nature,
					Type:       row.Type,
					Actor:      actor,
				}); err != nil {
					return fmt.Errorf("group %s %q: %w", row.Code, row.Name, err)
				}
			case KindLedger:
				lt, err := model.ParseLedgerType(row.Type)
				if err != nil {
					return fmt.Errorf("ledger %s %q: %w", row.Code, row.Name, err)
				}
				if _, err := svc.CreateLedger(ctx, NewLedger{
					BranchID:       branchID,
					GroupCode:      row.ParentCode,
					Code:           row.Code,
					Name:           row.Name,
					Type:           lt,
					OpeningBalance: row.OpeningBalance,
					Actor:          actor,
				}); err != nil {
					return fmt.Errorf("ledger %s %q: %w", row.Code, row.Name, err)
				}
			default:
				return fmt.Errorf("row %s: unknown kind %q", row.Code, row.Kind)
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.lg.Info("chart imported", "branch", branchID, "records", created)
	return created, nil
}

// rowDepth orders rows so that parents precede children. Rows without a
// code sit just below their parent.
func rowDepth(row ChartRow) int {
	if row.Code != "" {
		return id.Depth(row.Code)
	}
	return id.Depth(row.ParentCode) + 1
}

// ExportChart returns a branch's chart as CSV rows, groups and ledgers
// interleaved in code order.
func (s *Service) ExportChart(ctx context.Context, branchID uint) ([]ChartRow, error) {
	groups, err := s.Groups(ctx, branchID)
	if err != nil {
		return nil, err
	}
	ledgers, err := s.Ledgers(ctx, branchID)
	if err != nil {
		return nil, err
	}

	codeByID := make(map[uint]string, len(groups))
	for _, g := range groups {
		codeByID[g.ID] = g.Code
	}

	rows := make([]ChartRow, 0, len(groups)+len(ledgers))
	for _, g := range groups {
		if !g.IsActive {
			continue
		}
		row := ChartRow{Code: g.Code, Name: g.Name, Kind: KindGroup, Nature: g.Nature, Type: g.Type}
		if g.ParentID != nil {
			row.ParentCode = codeByID[*g.ParentID]
		}
		rows = append(rows, row)
	}
	for _, l := range ledgers {
		if !l.IsActive {
			continue
		}
		rows = append(rows, ChartRow{
			Code:           l.Code,
			Name:           l.Name,
			Kind:           KindLedger,
			Type:           string(l.Type),
			ParentCode:     codeByID[l.AccountGroupID],
			OpeningBalance: l.OpeningBalance,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return id.Less(rows[i].Code, rows[j].Code)
	})
	return rows, nil
}
