package journal

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/branchledger/internal/model"
)

// Violation describes one way a voucher's journal rows fail to balance.
type Violation struct {
	EntryID     uint
	Description string
}

func (v Violation) Error() string {
	if v.EntryID == 0 {
		return v.Description
	}
	return fmt.Sprintf("entry %d: %s", v.EntryID, v.Description)
}

// Totals sums the debit and credit rows of entries.
func Totals(entries []model.JournalEntry) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, je := range entries {
		switch je.Type {
		case model.Debit:
			debit = debit.Add(je.Amount)
		case model.Credit:
			credit = credit.Add(je.Amount)
		}
	}
	return debit, credit
}

// CheckVoucher verifies the rows written for one voucher: every row is a
// positive debit or credit on the voucher's date, and debits, credits and
// total agree exactly.
func CheckVoucher(entries []model.JournalEntry, date time.Time, total decimal.Decimal) []Violation {
	var out []Violation

	if len(entries) == 0 {
		return []Violation{{Description: "voucher has no journal entries"}}
	}

	for _, je := range entries {
		if je.Type != model.Debit && je.Type != model.Credit {
			out = append(out, Violation{EntryID: je.ID, Description: fmt.Sprintf("unknown side %q", je.Type)})
		}
		if !je.Amount.IsPositive() {
			out = append(out, Violation{EntryID: je.ID, Description: fmt.Sprintf("amount %s is not positive", je.Amount)})
		}
		if !je.Date.Equal(date) {
			out = append(out, Violation{EntryID: je.ID, Description: fmt.Sprintf("date %s differs from voucher date %s", je.Date.Format(DateFormat), date.Format(DateFormat))})
		}
	}

	debit, credit := Totals(entries)
	if !debit.Equal(credit) {
		out = append(out, Violation{Description: fmt.Sprintf("debits (%s) != credits (%s)", debit, credit)})
	}
	if !debit.Equal(total) {
		out = append(out, Violation{Description: fmt.Sprintf("debits (%s) != total (%s)", debit, total)})
	}
	return out
}
