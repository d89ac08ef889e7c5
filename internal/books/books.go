// Package books manages the voucher books that number vouchers and the
// financial years whose journal books receive postings.
package books

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cleared-dev/branchledger/internal/errs"
	"github.com/cleared-dev/branchledger/internal/logging"
	"github.com/cleared-dev/branchledger/internal/model"
)

// Service manages voucher books, financial years and journal books.
type Service struct {
	db *gorm.DB
	lg logging.Logger
}

// NewService creates a books Service.
func NewService(db *gorm.DB, lg logging.Logger) *Service {
	return &Service{db: db, lg: lg}
}

// WithTx returns a copy of the service bound to tx.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{db: tx, lg: s.lg}
}

// CreateVoucherBook opens a voucher book. A branch has at most one active
// book per voucher type.
func (s *Service) CreateVoucherBook(ctx context.Context, branchID uint, vt model.VoucherType, name, prefix string) (*model.VoucherBook, error) {
	if !vt.Valid() {
		return nil, errs.Invalid("type", "unknown voucher type %q", vt)
	}
	if strings.TrimSpace(name) == "" {
		name = defaultBookName(vt)
	}

	key := fmt.Sprintf("%d:%s", branchID, vt)
	book := model.VoucherBook{BranchID: branchID, Type: vt, Name: name, Prefix: prefix, IsActive: true, ActiveKey: &key}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.VoucherBook{}).
			Where("branch_id = ? AND type = ? AND is_active = ?", branchID, vt, true).
			Count(&n).Error; err != nil {
			return fmt.Errorf("checking voucher books: %w", err)
		}
		if n > 0 {
			return errs.Invalid("type", "branch %d already has an active %s book", branchID, vt)
		}
		if err := tx.Create(&book).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errs.Invalid("type", "branch %d already has an active %s book", branchID, vt)
			}
			return fmt.Errorf("creating voucher book: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.lg.Info("voucher book created", "branch", branchID, "type", string(vt), "name", name)
	return &book, nil
}

func defaultBookName(vt model.VoucherType) string {
	words := strings.Split(strings.ToLower(string(vt)), "_")
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ") + " Book"
}

// ActiveVoucherBook returns the active book for a branch and voucher type.
func (s *Service) ActiveVoucherBook(ctx context.Context, branchID uint, vt model.VoucherType) (*model.VoucherBook, error) {
	return s.activeVoucherBook(s.db.WithContext(ctx), branchID, vt)
}

// LockVoucherBook is ActiveVoucherBook with a row lock held until the
// surrounding transaction ends. Voucher numbering happens under this lock.
func (s *Service) LockVoucherBook(ctx context.Context, branchID uint, vt model.VoucherType) (*model.VoucherBook, error) {
	return s.activeVoucherBook(s.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), branchID, vt)
}

func (s *Service) activeVoucherBook(q *gorm.DB, branchID uint, vt model.VoucherType) (*model.VoucherBook, error) {
	var book model.VoucherBook
	err := q.Where("branch_id = ? AND type = ? AND is_active = ?", branchID, vt, true).
		Order("id").
		First(&book).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("voucher book", fmt.Sprintf("branch %d type %s", branchID, vt))
	}
	if err != nil {
		return nil, fmt.Errorf("loading voucher book: %w", err)
	}
	return &book, nil
}

// VoucherBooks lists a branch's books.
func (s *Service) VoucherBooks(ctx context.Context, branchID uint) ([]model.VoucherBook, error) {
	var out []model.VoucherBook
	if err := s.db.WithContext(ctx).Where("branch_id = ?", branchID).Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing voucher books: %w", err)
	}
	return out, nil
}

// CreateFinancialYear records a year and opens its journal book. Years of
// one branch never overlap.
func (s *Service) CreateFinancialYear(ctx context.Context, branchID uint, start, end time.Time) (*model.FinancialYear, error) {
	start, end = Day(start), Day(end)
	if end.Before(start) {
		return nil, errs.Invalid("endDate", "%s is before start %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	fy := model.FinancialYear{BranchID: branchID, StartDate: start, EndDate: end, IsActive: true}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.FinancialYear{}).
			Where("branch_id = ? AND is_active = ? AND start_date <= ? AND end_date >= ?", branchID, true, end, start).
			Count(&n).Error; err != nil {
			return fmt.Errorf("checking financial years: %w", err)
		}
		if n > 0 {
			return errs.Invalid("startDate", "financial year overlaps an existing year of branch %d", branchID)
		}
		if err := tx.Create(&fy).Error; err != nil {
			return fmt.Errorf("creating financial year: %w", err)
		}
		jb := model.JournalBook{BranchID: branchID, FinancialYearID: fy.ID}
		if err := tx.Create(&jb).Error; err != nil {
			return fmt.Errorf("creating journal book: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.lg.Info("financial year created", "branch", branchID, "start", start.Format("2006-01-02"), "end", end.Format("2006-01-02"))
	return &fy, nil
}

// FinancialYears lists a branch's years, oldest first.
func (s *Service) FinancialYears(ctx context.Context, branchID uint) ([]model.FinancialYear, error) {
	var out []model.FinancialYear
	if err := s.db.WithContext(ctx).Where("branch_id = ?", branchID).Order("start_date").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing financial years: %w", err)
	}
	return out, nil
}

// JournalBookFor returns the journal book of the active financial year
// containing date.
func (s *Service) JournalBookFor(ctx context.Context, branchID uint, date time.Time) (*model.JournalBook, error) {
	date = Day(date)

	var fy model.FinancialYear
	err := s.db.WithContext(ctx).
		Where("branch_id = ? AND is_active = ? AND start_date <= ? AND end_date >= ?", branchID, true, date, date).
		First(&fy).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("financial year", fmt.Sprintf("branch %d date %s", branchID, date.Format("2006-01-02")))
	}
	if err != nil {
		return nil, fmt.Errorf("loading financial year: %w", err)
	}

	var jb model.JournalBook
	err = s.db.WithContext(ctx).Where("financial_year_id = ?", fy.ID).First(&jb).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("journal book", fmt.Sprintf("financial year %d", fy.ID))
	}
	if err != nil {
		return nil, fmt.Errorf("loading journal book: %w", err)
	}
	return &jb, nil
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// YearBounds returns the financial year containing date for a year that
// starts on yearStart ("MM-DD").
func YearBounds(yearStart string, date time.Time) (time.Time, time.Time, error) {
	md, err := time.Parse("01-02", yearStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing year start %q: %w", yearStart, err)
	}

	date = Day(date)
	start := time.Date(date.Year(), md.Month(), md.Day(), 0, 0, 0, 0, time.UTC)
	if date.Before(start) {
		start = start.AddDate(-1, 0, 0)
	}
	end := start.AddDate(1, 0, -1)
	return start, end, nil
}
