package journal

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/branchledger/internal/model"
)

func TestStatementCSVRoundTrip(t *testing.T) {
	lines := []StatementLine{
		{EntryID: 3, Date: date(2024, 5, 1), VoucherID: 2, Type: model.Credit, Amount: dec("50"),
			PreBalance: dec("100"), PostBalance: dec("150"), Narration: "loan drawn, tranche 1"},
		{EntryID: 7, Date: date(2024, 5, 9), VoucherID: 4, Type: model.Debit, Amount: dec("20.5"),
			PreBalance: dec("150"), PostBalance: dec("129.5")},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteStatementCSV(&buf, lines))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, Header+"\n"))
	assert.Contains(t, out, `3,2024-05-01,2,,50.00,100.00,150.00,"loan drawn, tranche 1"`)
	assert.Contains(t, out, "7,2024-05-09,4,20.50,,150.00,129.50,")

	got, err := ReadStatementCSV(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.Credit, got[0].Type)
	assert.Equal(t, "50", got[0].Amount.String())
	assert.Equal(t, "loan drawn, tranche 1", got[0].Narration)
	assert.Equal(t, model.Debit, got[1].Type)
	assert.True(t, got[1].PostBalance.Equal(dec("129.5")))
	assert.True(t, got[1].Date.Equal(date(2024, 5, 9)))
}

func TestReadStatementCSVEmpty(t *testing.T) {
	got, err := ReadStatementCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ReadStatementCSV(strings.NewReader(Header + "\n"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUnmarshalLineErrors(t *testing.T) {
	tests := []struct {
		name   string
		record []string
		want   string
	}{
		{"short", []string{"1", "2024-05-01"}, "expected 8 fields"},
		{"bad id", []string{"x", "2024-05-01", "1", "1", "", "0", "1", ""}, "entry_id"},
		{"bad date", []string{"1", "05/01/2024", "1", "1", "", "0", "1", ""}, "date"},
		{"both sides", []string{"1", "2024-05-01", "1", "1", "1", "0", "0", ""}, "exactly one"},
		{"no side", []string{"1", "2024-05-01", "1", "", "", "0", "0", ""}, "exactly one"},
		{"bad amount", []string{"1", "2024-05-01", "1", "ten", "", "0", "0", ""}, "amount"},
		{"bad pre", []string{"1", "2024-05-01", "1", "1", "", "?", "0", ""}, "pre_balance"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalLine(tt.record)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
