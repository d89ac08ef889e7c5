// Package importer reads voucher files dropped into a project's import/
// directory and posts them.
package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/branchledger/internal/accounts"
	"github.com/cleared-dev/branchledger/internal/errs"
	"github.com/cleared-dev/branchledger/internal/logging"
	"github.com/cleared-dev/branchledger/internal/model"
	"github.com/cleared-dev/branchledger/internal/posting"
)

// VoucherRow is one voucher line read from a file. Rows sharing Ref form
// one voucher.
type VoucherRow struct {
	Ref               string
	Date              time.Time
	Type              model.VoucherType
	LedgerCode        string
	VoucherLedgerCode string
	Amount            decimal.Decimal
	Narration         string
}

// Parser converts a file into voucher rows.
type Parser interface {
	Parse(r io.Reader) ([]VoucherRow, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// FileInfo describes a CSV file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&VoucherParser{})
	r.Register(&ChaseParser{})
	return r
}

// importDir is the subdirectory for import CSVs.
const importDir = "import"

// processedDir is the subdirectory for processed CSVs.
const processedDir = "import/processed"

// Scan returns CSV files in <projectDir>/import/.
func Scan(projectDir string) ([]FileInfo, error) {
	dir := filepath.Join(projectDir, importDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from import/ to import/processed/.
func MarkProcessed(projectDir, fileName string) error {
	src := filepath.Join(projectDir, importDir, fileName)
	dstDir := filepath.Join(projectDir, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}

// Options controls how rows become vouchers. Rows that leave LedgerCode
// empty use ExpenseLedger for payments and IncomeLedger otherwise; an empty
// VoucherLedgerCode uses BankLedger.
type Options struct {
	BranchID      uint
	Actor         string
	ExpenseLedger string
	IncomeLedger  string
	BankLedger    string
}

func (o Options) counterpart(vt model.VoucherType) string {
	if vt == model.VoucherPayment {
		return o.ExpenseLedger
	}
	return o.IncomeLedger
}

// Failure is a voucher that could not be posted.
type Failure struct {
	Ref string
	Err error
}

// Result reports what an import posted and what it skipped.
type Result struct {
	Posted   []*model.Voucher
	Failures []Failure
}

// Importer posts parsed rows through the posting engine.
type Importer struct {
	accounts *accounts.Service
	engine   *posting.Engine
	lg       logging.Logger
}

// New creates an Importer.
func New(accts *accounts.Service, engine *posting.Engine, lg logging.Logger) *Importer {
	return &Importer{accounts: accts, engine: engine, lg: lg}
}

// Import groups rows by Ref in file order and posts each group as one
// voucher. A failing voucher is recorded and the rest still post.
func (im *Importer) Import(ctx context.Context, rows []VoucherRow, opts Options) *Result {
	res := &Result{}
	for _, group := range groupByRef(rows) {
		ref := group[0].Ref
		req, err := im.buildRequest(ctx, group, opts)
		if err == nil {
			var v *model.Voucher
			v, err = im.engine.PostVoucher(ctx, opts.Actor, *req)
			if err == nil {
				res.Posted = append(res.Posted, v)
				continue
			}
		}
		im.lg.Warn("voucher not imported", "ref", ref, "error", err)
		res.Failures = append(res.Failures, Failure{Ref: ref, Err: err})
	}
	return res
}

func groupByRef(rows []VoucherRow) [][]VoucherRow {
	index := make(map[string]int)
	var groups [][]VoucherRow
	for _, row := range rows {
		i, ok := index[row.Ref]
		if !ok {
			i = len(groups)
			index[row.Ref] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], row)
	}
	return groups
}

func (im *Importer) buildRequest(ctx context.Context, group []VoucherRow, opts Options) (*posting.PostVoucherRequest, error) {
	first := group[0]
	req := &posting.PostVoucherRequest{
		BranchID:    opts.BranchID,
		Date:        first.Date,
		Type:        first.Type,
		TotalAmount: decimal.Zero,
		Narration:   first.Narration,
		Reference:   first.Ref,
	}

	for i, row := range group {
		if !row.Date.Equal(first.Date) {
			return nil, errs.Invalid("date", "row %d of %s has date %s, voucher date is %s", i+1, row.Ref,
				row.Date.Format("2006-01-02"), first.Date.Format("2006-01-02"))
		}
		if row.Type != first.Type {
			return nil, errs.Invalid("type", "row %d of %s has type %s, voucher type is %s", i+1, row.Ref, row.Type, first.Type)
		}

		primary, err := im.ledgerID(ctx, opts.BranchID, fallback(row.LedgerCode, opts.counterpart(row.Type)))
		if err != nil {
			return nil, err
		}
		opposite, err := im.ledgerID(ctx, opts.BranchID, fallback(row.VoucherLedgerCode, opts.BankLedger))
		if err != nil {
			return nil, err
		}

		req.Lines = append(req.Lines, posting.LineRequest{
			LedgerID:        primary,
			VoucherLedgerID: opposite,
			Amount:          row.Amount,
			Narration:       row.Narration,
		})
		req.TotalAmount = req.TotalAmount.Add(row.Amount)
	}
	return req, nil
}

func (im *Importer) ledgerID(ctx context.Context, branchID uint, code string) (uint, error) {
	if code == "" {
		return 0, errs.Invalid("ledger_code", "is required")
	}
	l, err := im.accounts.LedgerByCode(ctx, branchID, code)
	if err != nil {
		return 0, err
	}
	return l.ID, nil
}

func fallback(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
