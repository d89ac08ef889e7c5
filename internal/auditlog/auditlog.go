// Package auditlog records who posted what. Entries are written in the same
// transaction as the posting they describe.
package auditlog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Actions recorded by the engine.
const (
	ActionVoucherPosted    = "voucher_posted"
	ActionNarrationEdited  = "narration_edited"
	ActionGroupCreated     = "group_created"
	ActionLedgerCreated    = "ledger_created"
	ActionBranchRebuilt    = "branch_rebuilt"
	ActionGroupDeactivated = "group_deactivated"
)

// Entry is one row in the audit log.
type Entry struct {
	ID            uint      `gorm:"primaryKey"`
	Timestamp     time.Time `gorm:"column:timestamp;not null;index"`
	BranchID      uint      `gorm:"column:branch_id;not null;index"`
	Actor         string    `gorm:"column:actor;not null"`
	Action        string    `gorm:"column:action;not null"`
	Details       string    `gorm:"column:details"`
	VoucherID     *uint     `gorm:"column:voucher_id;index"`
	VoucherNumber string    `gorm:"column:voucher_number"`
}

func (Entry) TableName() string {
	return "audit_log"
}

// Header is the CSV header used by WriteCSV.
const Header = "timestamp,branch_id,actor,action,details,voucher_id,voucher_number"

const (
	numFields        = 7
	colTimestamp     = 0
	colBranch        = 1
	colActor         = 2
	colAction        = 3
	colDetails       = 4
	colVoucherID     = 5
	colVoucherNumber = 6
)

// Append writes entries using db, which is normally an open transaction.
func Append(db *gorm.DB, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	for i := range entries {
		if entries[i].Timestamp.IsZero() {
			entries[i].Timestamp = time.Now().UTC()
		}
	}
	if err := db.Create(&entries).Error; err != nil {
		return fmt.Errorf("appending audit log: %w", err)
	}
	return nil
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	BranchID uint
	Actor    string
	Action   string
}

// List returns entries oldest first.
func List(ctx context.Context, db *gorm.DB, f Filter) ([]Entry, error) {
	q := db.WithContext(ctx).Model(&Entry{})
	if f.BranchID != 0 {
		q = q.Where("branch_id = ?", f.BranchID)
	}
	if f.Actor != "" {
		q = q.Where("actor = ?", f.Actor)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}

	var entries []Entry
	if err := q.Order("timestamp, id").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("listing audit log: %w", err)
	}
	return entries, nil
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colBranch] = strconv.FormatUint(uint64(e.BranchID), 10)
	row[colActor] = e.Actor
	row[colAction] = e.Action
	row[colDetails] = e.Details
	if e.VoucherID != nil {
		row[colVoucherID] = strconv.FormatUint(uint64(*e.VoucherID), 10)
	}
	row[colVoucherNumber] = e.VoucherNumber
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}
	branch, err := strconv.ParseUint(record[colBranch], 10, 0)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing branch_id %q: %w", record[colBranch], err)
	}

	e := Entry{
		Timestamp:     ts,
		BranchID:      uint(branch),
		Actor:         record[colActor],
		Action:        record[colAction],
		Details:       record[colDetails],
		VoucherNumber: record[colVoucherNumber],
	}
	if record[colVoucherID] != "" {
		id, err := strconv.ParseUint(record[colVoucherID], 10, 0)
		if err != nil {
			return Entry{}, fmt.Errorf("parsing voucher_id %q: %w", record[colVoucherID], err)
		}
		vid := uint(id)
		e.VoucherID = &vid
	}
	return e, nil
}

// WriteCSV writes entries with a header row.
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads entries written by WriteCSV.
func ReadCSV(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit log CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
