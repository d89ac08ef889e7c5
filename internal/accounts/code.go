package accounts

import (
	"context"
	"fmt"
	"sort"

	"github.com/cleared-dev/branchledger/internal/id"
	"github.com/cleared-dev/branchledger/internal/model"
)

// AllocateChildCode returns the first free direct-child code under parentCode
// in a branch. Ledgers and groups share the code space. An empty parentCode
// allocates a root group code.
//
// The scan is read-only; callers create the record in the same transaction.
func (s *Service) AllocateChildCode(ctx context.Context, parentCode string, branchID uint) (string, error) {
	codes, err := s.siblingCodes(ctx, parentCode, branchID)
	if err != nil {
		return "", err
	}

	used := make([]int, 0, len(codes))
	for _, c := range codes {
		if n, ok := id.ChildSegment(parentCode, c); ok {
			used = append(used, n)
		}
	}
	return id.JoinCode(parentCode, firstGap(used)), nil
}

func (s *Service) siblingCodes(ctx context.Context, parentCode string, branchID uint) ([]string, error) {
	db := s.db.WithContext(ctx)

	var groupCodes, ledgerCodes []string
	if parentCode == "" {
		if err := db.Model(&model.AccountGroup{}).
			Where("branch_id = ? AND parent_id IS NULL", branchID).
			Pluck("code", &groupCodes).Error; err != nil {
			return nil, fmt.Errorf("scanning root codes: %w", err)
		}
		return groupCodes, nil
	}

	pattern := parentCode + id.CodeSeparator + "%"
	if err := db.Model(&model.AccountGroup{}).
		Where("branch_id = ? AND code LIKE ?", branchID, pattern).
		Pluck("code", &groupCodes).Error; err != nil {
		return nil, fmt.Errorf("scanning group codes under %s: %w", parentCode, err)
	}
	if err := db.Model(&model.Ledger{}).
		Where("branch_id = ? AND code LIKE ?", branchID, pattern).
		Pluck("code", &ledgerCodes).Error; err != nil {
		return nil, fmt.Errorf("scanning ledger codes under %s: %w", parentCode, err)
	}
	return append(groupCodes, ledgerCodes...), nil
}

// firstGap returns the smallest positive integer missing from used.
func firstGap(used []int) int {
	sort.Ints(used)
	n := 1
	for _, u := range used {
		if u == n {
			n++
		} else if u > n {
			break
		}
	}
	return n
}
