package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/branchledger/internal/model"
)

// VoucherParser reads the native voucher CSV format:
//
//	ref,date,type,ledger_code,voucher_ledger_code,amount,narration
type VoucherParser struct{}

const (
	voucherDateFormat  = "2006-01-02"
	voucherNumFields   = 7
	voucherColRef      = 0
	voucherColDate     = 1
	voucherColType     = 2
	voucherColLedger   = 3
	voucherColOpposite = 4
	voucherColAmount   = 5
	voucherColNarrate  = 6
)

// Format returns the parser name.
func (p *VoucherParser) Format() string { return "vouchers" }

// Parse reads a voucher CSV with a header row.
func (p *VoucherParser) Parse(r io.Reader) ([]VoucherRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = voucherNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading voucher CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	var rows []VoucherRow
	for i, rec := range records[1:] {
		row, err := parseVoucherRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseVoucherRow(rec []string) (VoucherRow, error) {
	if rec[voucherColRef] == "" {
		return VoucherRow{}, errors.New("ref is empty")
	}
	date, err := time.Parse(voucherDateFormat, rec[voucherColDate])
	if err != nil {
		return VoucherRow{}, fmt.Errorf("parsing date %q: %w", rec[voucherColDate], err)
	}
	vt, err := model.ParseVoucherType(rec[voucherColType])
	if err != nil {
		return VoucherRow{}, err
	}
	amount, err := decimal.NewFromString(rec[voucherColAmount])
	if err != nil {
		return VoucherRow{}, fmt.Errorf("parsing amount %q: %w", rec[voucherColAmount], err)
	}

	return VoucherRow{
		Ref:               rec[voucherColRef],
		Date:              date,
		Type:              vt,
		LedgerCode:        rec[voucherColLedger],
		VoucherLedgerCode: rec[voucherColOpposite],
		Amount:            amount,
		Narration:         rec[voucherColNarrate],
	}, nil
}
