package journal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/branchledger/internal/model"
)

// Header is the CSV header of a ledger statement export.
const Header = "entry_id,date,voucher_id,debit,credit,pre_balance,post_balance,narration"

// DateFormat is the date layout used in CSV files and on the command line.
const DateFormat = "2006-01-02"

const (
	numFields  = 8
	colEntryID = 0
	colDate    = 1
	colVoucher = 2
	colDebit   = 3
	colCredit  = 4
	colPre     = 5
	colPost    = 6
	colNarrate = 7
)

// WriteStatementCSV writes statement lines with a header.
func WriteStatementCSV(w io.Writer, lines []StatementLine) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, line := range lines {
		if err := cw.Write(MarshalLine(line)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadStatementCSV reads a statement export back into lines.
func ReadStatementCSV(r io.Reader) ([]StatementLine, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading statement CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var lines []StatementLine
	for i, rec := range records[1:] {
		line, err := UnmarshalLine(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// MarshalLine converts a StatementLine to a CSV row. The amount goes in
// the debit or credit column by side.
func MarshalLine(line StatementLine) []string {
	row := make([]string, numFields)
	row[colEntryID] = strconv.FormatUint(uint64(line.EntryID), 10)
	row[colDate] = line.Date.Format(DateFormat)
	row[colVoucher] = strconv.FormatUint(uint64(line.VoucherID), 10)
	if line.Type == model.Debit {
		row[colDebit] = line.Amount.StringFixed(2)
	} else {
		row[colCredit] = line.Amount.StringFixed(2)
	}
	row[colPre] = line.PreBalance.StringFixed(2)
	row[colPost] = line.PostBalance.StringFixed(2)
	row[colNarrate] = line.Narration
	return row
}

// UnmarshalLine converts a CSV row to a StatementLine.
func UnmarshalLine(record []string) (StatementLine, error) {
	if len(record) != numFields {
		return StatementLine{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	entryID, err := strconv.ParseUint(record[colEntryID], 10, 64)
	if err != nil {
		return StatementLine{}, fmt.Errorf("parsing entry_id %q: %w", record[colEntryID], err)
	}
	date, err := time.Parse(DateFormat, record[colDate])
	if err != nil {
		return StatementLine{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}
	voucherID, err := strconv.ParseUint(record[colVoucher], 10, 64)
	if err != nil {
		return StatementLine{}, fmt.Errorf("parsing voucher_id %q: %w", record[colVoucher], err)
	}

	line := StatementLine{
		EntryID:   uint(entryID),
		Date:      date,
		VoucherID: uint(voucherID),
		Narration: record[colNarrate],
	}

	switch {
	case record[colDebit] != "" && record[colCredit] == "":
		line.Type = model.Debit
		line.Amount, err = decimal.NewFromString(record[colDebit])
	case record[colCredit] != "" && record[colDebit] == "":
		line.Type = model.Credit
		line.Amount, err = decimal.NewFromString(record[colCredit])
	default:
		return StatementLine{}, errors.New("row must have exactly one of debit or credit")
	}
	if err != nil {
		return StatementLine{}, fmt.Errorf("parsing amount: %w", err)
	}

	if line.PreBalance, err = decimal.NewFromString(record[colPre]); err != nil {
		return StatementLine{}, fmt.Errorf("parsing pre_balance %q: %w", record[colPre], err)
	}
	if line.PostBalance, err = decimal.NewFromString(record[colPost]); err != nil {
		return StatementLine{}, fmt.Errorf("parsing post_balance %q: %w", record[colPost], err)
	}
	return line, nil
}
