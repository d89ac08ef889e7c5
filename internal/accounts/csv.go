package accounts

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/branchledger/internal/model"
)

// Row kinds in a chart file.
const (
	KindGroup  = "group"
	KindLedger = "ledger"
)

// ChartRow is one line of a chart-of-accounts CSV file.
type ChartRow struct {
	Code           string
	Name           string
	Kind           string
	Nature         model.Nature
	Type           string
	ParentCode     string
	OpeningBalance decimal.Decimal
}

const (
	numFields     = 7
	colCode       = 0
	colName       = 1
	colKind       = 2
	colNature     = 3
	colType       = 4
	colParentCode = 5
	colOpening    = 6
)

var header = []string{"code", "name", "kind", "nature", "type", "parent_code", "opening_balance"}

// ReadChart reads a chart CSV. The first row is the header.
func ReadChart(r io.Reader) ([]ChartRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading chart CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var rows []ChartRow
	for i, rec := range records[1:] {
		row, err := UnmarshalChartRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteChart writes a chart CSV with a header.
func WriteChart(w io.Writer, rows []ChartRow) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, row := range rows {
		if err := cw.Write(MarshalChartRow(row)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalChartRow converts a ChartRow to a CSV record.
func MarshalChartRow(row ChartRow) []string {
	rec := make([]string, numFields)
	rec[colCode] = row.Code
	rec[colName] = row.Name
	rec[colKind] = row.Kind
	rec[colNature] = string(row.Nature)
	rec[colType] = row.Type
	rec[colParentCode] = row.ParentCode
	if row.Kind == KindLedger {
		rec[colOpening] = row.OpeningBalance.String()
	}
	return rec
}

// UnmarshalChartRow converts a CSV record to a ChartRow.
func UnmarshalChartRow(rec []string) (ChartRow, error) {
	if len(rec) != numFields {
		return ChartRow{}, fmt.Errorf("expected %d fields, got %d", numFields, len(rec))
	}

	row := ChartRow{
		Code:           rec[colCode],
		Name:           rec[colName],
		Kind:           rec[colKind],
		Type:           rec[colType],
		ParentCode:     rec[colParentCode],
		OpeningBalance: decimal.Zero,
	}

	switch row.Kind {
	case KindGroup, KindLedger:
	default:
		return ChartRow{}, fmt.Errorf("unknown kind %q", row.Kind)
	}
	if row.Kind == KindLedger && row.ParentCode == "" {
		return ChartRow{}, fmt.Errorf("ledger %s has no parent_code", row.Code)
	}

	if rec[colNature] != "" {
		n, err := model.ParseNature(rec[colNature])
		if err != nil {
			return ChartRow{}, err
		}
		row.Nature = n
	}

	if rec[colOpening] != "" {
		amt, err := decimal.NewFromString(rec[colOpening])
		if err != nil {
			return ChartRow{}, fmt.Errorf("parsing opening_balance %q: %w", rec[colOpening], err)
		}
		row.OpeningBalance = amt
	}
	return row, nil
}
