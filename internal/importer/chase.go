package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/branchledger/internal/model"
)

// ChaseParser parses Chase bank checking CSV exports. Withdrawals become
// PAYMENT rows and deposits RECEIPT rows; ledger codes are left empty for
// Options to fill in.
type ChaseParser struct{}

const (
	chaseDateFormat = "01/02/2006"
	chaseNumFields  = 7
	chaseColDate    = 1
	chaseColDesc    = 2
	chaseColAmount  = 3
)

// Format returns the parser name.
func (p *ChaseParser) Format() string { return "chase" }

// Parse reads a Chase CSV and returns one voucher row per transaction.
func (p *ChaseParser) Parse(r io.Reader) ([]VoucherRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = chaseNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading chase CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var rows []VoucherRow
	seen := make(map[string]int)
	for i, rec := range records[1:] {
		row, err := parseChaseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		seen[row.Ref]++
		if n := seen[row.Ref]; n > 1 {
			row.Ref = fmt.Sprintf("%s_%d", row.Ref, n)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseChaseRow(rec []string) (VoucherRow, error) {
	date, err := time.Parse(chaseDateFormat, rec[chaseColDate])
	if err != nil {
		return VoucherRow{}, fmt.Errorf("parsing date %q: %w", rec[chaseColDate], err)
	}

	amount, err := decimal.NewFromString(rec[chaseColAmount])
	if err != nil {
		return VoucherRow{}, fmt.Errorf("parsing amount %q: %w", rec[chaseColAmount], err)
	}
	if amount.IsZero() {
		return VoucherRow{}, errors.New("zero amount")
	}

	vt := model.VoucherReceipt
	if amount.IsNegative() {
		vt = model.VoucherPayment
	}

	desc := rec[chaseColDesc]
	return VoucherRow{
		Ref:       makeChaseRef(date, desc),
		Date:      date,
		Type:      vt,
		Amount:    amount.Abs(),
		Narration: desc,
	}, nil
}

// makeChaseRef creates a reference like chase_20250103_GITHUB.
func makeChaseRef(date time.Time, desc string) string {
	prefix := strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, desc)
	if len(prefix) > 10 {
		prefix = prefix[:10]
	}
	return fmt.Sprintf("chase_%s_%s", date.Format("20060102"), prefix)
}
