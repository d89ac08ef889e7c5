// Package posting turns validated vouchers into journal entries, ledger
// balance changes and group recomputation, all in one transaction.
package posting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cleared-dev/branchledger/internal/accounts"
	"github.com/cleared-dev/branchledger/internal/auditlog"
	"github.com/cleared-dev/branchledger/internal/balance"
	"github.com/cleared-dev/branchledger/internal/books"
	"github.com/cleared-dev/branchledger/internal/errs"
	"github.com/cleared-dev/branchledger/internal/id"
	"github.com/cleared-dev/branchledger/internal/journal"
	"github.com/cleared-dev/branchledger/internal/logging"
	"github.com/cleared-dev/branchledger/internal/metrics"
	"github.com/cleared-dev/branchledger/internal/model"
	"github.com/cleared-dev/branchledger/internal/nature"
)

// Engine posts vouchers.
//
// Postings of one branch serialize on an in-process mutex. Across
// processes the voucher book, touched ledgers and their ancestor groups
// are row-locked inside the posting transaction.
type Engine struct {
	db       *gorm.DB
	lg       logging.Logger
	metrics  *metrics.Metrics
	validate *validator.Validate

	accounts *accounts.Service
	books    *books.Service
	journal  *journal.Service
	balances *balance.Engine

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

// NewEngine creates an Engine.
func NewEngine(db *gorm.DB, lg logging.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		db:       db,
		lg:       lg,
		metrics:  m,
		validate: newValidator(),
		accounts: accounts.NewService(db, lg),
		books:    books.NewService(db, lg),
		journal:  journal.NewService(db, lg),
		balances: balance.New(db, lg),
		locks:    make(map[uint]*sync.Mutex),
	}
}

func (e *Engine) branchLock(branchID uint) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.locks[branchID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[branchID] = l
	}
	return l
}

// PostVoucher validates req and posts it. On any error nothing is written
// and no voucher number is consumed.
func (e *Engine) PostVoucher(ctx context.Context, actor string, req PostVoucherRequest) (*model.Voucher, error) {
	lg := e.lg.With("branch", req.BranchID).With("type", string(req.Type))

	req.Date = books.Day(req.Date)
	if err := e.Validate(req); err != nil {
		e.fail(lg, err)
		return nil, err
	}

	lock := e.branchLock(req.BranchID)
	lock.Lock()
	defer lock.Unlock()

	var (
		posted  *model.Voucher
		entries int
	)
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		posted, entries, err = e.post(ctx, tx, actor, req)
		return err
	})
	if err != nil {
		e.fail(lg, err)
		return nil, err
	}

	e.metrics.VouchersPosted.WithLabelValues(string(req.Type)).Inc()
	e.metrics.JournalEntries.Add(float64(entries))
	lg.Info("voucher posted", "number", posted.VoucherNumber, "id", posted.ID, "total", posted.TotalAmount.String(), "lines", len(posted.Entries))
	return posted, nil
}

func (e *Engine) fail(lg logging.Logger, err error) {
	kind := errs.Kind(err)
	e.metrics.PostingFailures.WithLabelValues(kind).Inc()
	lg.Error("voucher posting failed", "kind", kind, "error", err)
}

// resolvedLine is a request line with both legs classified.
type resolvedLine struct {
	LineRequest
	primary      model.LedgerWithNature
	opposite     model.LedgerWithNature
	primarySide  model.EntryType
	oppositeSide model.EntryType
}

func (e *Engine) post(ctx context.Context, tx *gorm.DB, actor string, req PostVoucherRequest) (*model.Voucher, int, error) {
	bookSvc := e.books.WithTx(tx)
	acctSvc := e.accounts.WithTx(tx)
	jrnl := e.journal.WithTx(tx)
	bal := e.balances.WithTx(tx)

	book, err := bookSvc.LockVoucherBook(ctx, req.BranchID, req.Type)
	if err != nil {
		return nil, 0, err
	}
	number, err := e.nextNumber(ctx, tx, book.ID)
	if err != nil {
		return nil, 0, err
	}
	jb, err := bookSvc.JournalBookFor(ctx, req.BranchID, req.Date)
	if err != nil {
		return nil, 0, err
	}

	lines, groupIDs, err := e.resolveLines(ctx, tx, acctSvc, req)
	if err != nil {
		return nil, 0, err
	}
	if err := bal.LockChains(ctx, groupIDs); err != nil {
		return nil, 0, err
	}

	v := model.Voucher{
		VoucherNumber: number,
		Date:          req.Date,
		Type:          req.Type,
		VoucherBookID: book.ID,
		BranchID:      req.BranchID,
		TotalAmount:   req.TotalAmount,
		Narration:     req.Narration,
		Reference:     req.Reference,
		Actor:         actor,
		IsActive:      true,
	}
	for _, l := range lines {
		v.Entries = append(v.Entries, model.VoucherEntry{
			LedgerID:        l.LedgerID,
			VoucherLedgerID: l.VoucherLedgerID,
			Amount:          l.Amount,
			Type:            l.primarySide,
			Narration:       l.Narration,
		})
	}
	if err := tx.Create(&v).Error; err != nil {
		return nil, 0, fmt.Errorf("creating voucher: %w", err)
	}

	written := 0
	for _, l := range lines {
		narration := l.Narration
		if narration == "" {
			narration = req.Narration
		}
		legs := []struct {
			ledger model.LedgerWithNature
			side   model.EntryType
		}{
			{l.primary, l.primarySide},
			{l.opposite, l.oppositeSide},
		}
		for _, leg := range legs {
			if _, err := jrnl.Post(ctx, journal.PostParams{
				JournalBookID: jb.ID,
				VoucherID:     v.ID,
				Date:          req.Date,
				LedgerID:      leg.ledger.ID,
				Side:          leg.side,
				Amount:        l.Amount,
				Narration:     narration,
			}); err != nil {
				return nil, 0, err
			}
			if _, err := bal.ApplyEntry(ctx, leg.ledger.ID, leg.ledger.Nature, leg.side, l.Amount); err != nil {
				return nil, 0, err
			}
			written++
		}
	}

	start := time.Now()
	if err := bal.PropagateAll(ctx, groupIDs); err != nil {
		return nil, 0, err
	}
	e.metrics.ObservePropagation(start)

	rows, err := jrnl.EntriesForVoucher(ctx, v.ID)
	if err != nil {
		return nil, 0, err
	}
	if violations := journal.CheckVoucher(rows, req.Date, req.TotalAmount); len(violations) > 0 {
		debit, credit := journal.Totals(rows)
		return nil, 0, &errs.ConsistencyError{
			Subject:  fmt.Sprintf("voucher %s journal (%s)", number, joinViolations(violations)),
			Expected: fmt.Sprintf("debit = credit = %s", req.TotalAmount),
			Actual:   fmt.Sprintf("debit %s credit %s", debit, credit),
		}
	}

	if err := auditlog.Append(tx, auditlog.Entry{
		BranchID:      req.BranchID,
		Actor:         actor,
		Action:        auditlog.ActionVoucherPosted,
		Details:       fmt.Sprintf("%s %s lines=%d", req.Type, req.TotalAmount, len(lines)),
		VoucherID:     &v.ID,
		VoucherNumber: number,
	}); err != nil {
		return nil, 0, err
	}
	return &v, written, nil
}

// nextNumber returns the number after the book's most recent voucher.
func (e *Engine) nextNumber(ctx context.Context, tx *gorm.DB, bookID uint) (string, error) {
	var last model.Voucher
	err := tx.WithContext(ctx).Where("voucher_book_id = ?", bookID).Order("id DESC").First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return id.FirstVoucherNumber, nil
	}
	if err != nil {
		return "", fmt.Errorf("loading last voucher of book %d: %w", bookID, err)
	}

	next, err := id.NextVoucherNumber(last.VoucherNumber)
	if err != nil {
		return "", &errs.ConsistencyError{Subject: fmt.Sprintf("voucher book %d numbering", bookID), Expected: "numeric voucher number", Actual: last.VoucherNumber}
	}
	return next, nil
}

// resolveLines loads both ledgers of every line, locks them and classifies
// the legs. It returns the distinct groups of all touched ledgers.
func (e *Engine) resolveLines(ctx context.Context, tx *gorm.DB, acctSvc *accounts.Service, req PostVoucherRequest) ([]resolvedLine, []uint, error) {
	ledgerIDs := make(map[uint]bool)
	for _, l := range req.Lines {
		ledgerIDs[l.LedgerID] = true
		ledgerIDs[l.VoucherLedgerID] = true
	}
	ordered := make([]uint, 0, len(ledgerIDs))
	for lid := range ledgerIDs {
		ordered = append(ordered, lid)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })
	if err := lockLedgers(ctx, tx, ordered); err != nil {
		return nil, nil, err
	}

	cache := make(map[uint]model.LedgerWithNature, len(ordered))
	load := func(field string, ledgerID uint) (model.LedgerWithNature, error) {
		if ln, ok := cache[ledgerID]; ok {
			return ln, nil
		}
		ln, err := acctSvc.LedgerWithNature(ctx, ledgerID)
		if err != nil {
			return model.LedgerWithNature{}, err
		}
		if ln.BranchID != req.BranchID {
			return model.LedgerWithNature{}, errs.Invalid(field, "ledger %d belongs to branch %d", ledgerID, ln.BranchID)
		}
		cache[ledgerID] = *ln
		return *ln, nil
	}

	var (
		lines    []resolvedLine
		groupIDs []uint
		seen     = make(map[uint]bool)
	)
	for i, l := range req.Lines {
		primary, err := load(fmt.Sprintf("lines[%d].ledgerId", i), l.LedgerID)
		if err != nil {
			return nil, nil, err
		}
		opposite, err := load(fmt.Sprintf("lines[%d].voucherLedgerId", i), l.VoucherLedgerID)
		if err != nil {
			return nil, nil, err
		}
		pSide, oSide, err := nature.Legs(req.Type, primary.Nature, opposite.Nature)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		lines = append(lines, resolvedLine{
			LineRequest:  l,
			primary:      primary,
			opposite:     opposite,
			primarySide:  pSide,
			oppositeSide: oSide,
		})
		for _, gid := range []uint{primary.AccountGroupID, opposite.AccountGroupID} {
			if !seen[gid] {
				seen[gid] = true
				groupIDs = append(groupIDs, gid)
			}
		}
	}
	return lines, groupIDs, nil
}

func lockLedgers(ctx context.Context, tx *gorm.DB, ids []uint) error {
	var locked []model.Ledger
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Find(&locked).Error; err != nil {
		return fmt.Errorf("locking ledgers: %w", err)
	}
	return nil
}

func joinViolations(vs []journal.Violation) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.Error()
	}
	return strings.Join(parts, "; ")
}

// UpdateNarration edits the narration and reference of a posted voucher
// and its journal rows. Amounts, sides and balances are untouched.
func (e *Engine) UpdateNarration(ctx context.Context, actor string, voucherID uint, narration, reference string) (*model.Voucher, error) {
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var v model.Voucher
		if err := tx.First(&v, voucherID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NotFound("voucher", voucherID)
			}
			return fmt.Errorf("loading voucher %d: %w", voucherID, err)
		}

		if err := tx.Model(&model.Voucher{}).Where("id = ?", voucherID).
			Updates(map[string]any{"narration": narration, "reference": reference}).Error; err != nil {
			return fmt.Errorf("updating voucher %d: %w", voucherID, err)
		}
		if err := tx.Model(&model.JournalEntry{}).Where("voucher_id = ?", voucherID).
			Update("narration", narration).Error; err != nil {
			return fmt.Errorf("updating journal narration of voucher %d: %w", voucherID, err)
		}
		return auditlog.Append(tx, auditlog.Entry{
			BranchID:      v.BranchID,
			Actor:         actor,
			Action:        auditlog.ActionNarrationEdited,
			Details:       fmt.Sprintf("%q -> %q", v.Narration, narration),
			VoucherID:     &v.ID,
			VoucherNumber: v.VoucherNumber,
		})
	})
	if err != nil {
		return nil, err
	}

	e.lg.Info("voucher narration updated", "id", voucherID)
	return e.GetVoucher(ctx, voucherID)
}

// GetVoucher loads a voucher with its lines.
func (e *Engine) GetVoucher(ctx context.Context, voucherID uint) (*model.Voucher, error) {
	var v model.Voucher
	err := e.db.WithContext(ctx).Preload("Entries").First(&v, voucherID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("voucher", voucherID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading voucher %d: %w", voucherID, err)
	}
	return &v, nil
}

// VoucherByNumber finds a voucher by its number within the branch's active
// book for vt.
func (e *Engine) VoucherByNumber(ctx context.Context, branchID uint, vt model.VoucherType, number string) (*model.Voucher, error) {
	book, err := e.books.ActiveVoucherBook(ctx, branchID, vt)
	if err != nil {
		return nil, err
	}

	var v model.Voucher
	err = e.db.WithContext(ctx).Preload("Entries").
		Where("voucher_book_id = ? AND voucher_number = ?", book.ID, number).
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("voucher", fmt.Sprintf("%s %s", vt, number))
	}
	if err != nil {
		return nil, fmt.Errorf("loading voucher %s %s: %w", vt, number, err)
	}
	return &v, nil
}
