package auditlog_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/branchledger/internal/auditlog"
	"github.com/cleared-dev/branchledger/internal/store/storetest"
)

func TestAppendAndList(t *testing.T) {
	db := storetest.NewDB(t)
	ctx := context.Background()

	vid := uint(9)
	require.NoError(t, auditlog.Append(db,
		auditlog.Entry{BranchID: 1, Actor: "alice", Action: auditlog.ActionVoucherPosted, VoucherID: &vid, VoucherNumber: "1"},
		auditlog.Entry{BranchID: 2, Actor: "bob", Action: auditlog.ActionLedgerCreated, Details: "Cash"},
	))

	all, err := auditlog.List(ctx, db, auditlog.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.False(t, all[0].Timestamp.IsZero(), "timestamp should default to now")

	branch1, err := auditlog.List(ctx, db, auditlog.Filter{BranchID: 1})
	require.NoError(t, err)
	require.Len(t, branch1, 1)
	assert.Equal(t, "alice", branch1[0].Actor)
	require.NotNil(t, branch1[0].VoucherID)
	assert.Equal(t, uint(9), *branch1[0].VoucherID)

	byAction, err := auditlog.List(ctx, db, auditlog.Filter{Action: auditlog.ActionLedgerCreated})
	require.NoError(t, err)
	require.Len(t, byAction, 1)
	assert.Equal(t, "bob", byAction[0].Actor)
}

func TestAppendNothing(t *testing.T) {
	db := storetest.NewDB(t)
	require.NoError(t, auditlog.Append(db))
}

func TestCSVRoundTrip(t *testing.T) {
	vid := uint(3)
	ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	entries := []auditlog.Entry{
		{Timestamp: ts, BranchID: 1, Actor: "alice", Action: auditlog.ActionVoucherPosted, Details: "PAYMENT 500", VoucherID: &vid, VoucherNumber: "12"},
		{Timestamp: ts, BranchID: 1, Actor: "alice", Action: auditlog.ActionGroupCreated, Details: "1.4 Stock, in hand"},
	}

	var buf bytes.Buffer
	require.NoError(t, auditlog.WriteCSV(&buf, entries))

	got, err := auditlog.ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, entries[0].Details, got[0].Details)
	require.NotNil(t, got[0].VoucherID)
	assert.Equal(t, vid, *got[0].VoucherID)
	assert.Nil(t, got[1].VoucherID)
	assert.Equal(t, "1.4 Stock, in hand", got[1].Details)
	assert.True(t, ts.Equal(got[1].Timestamp))
}

func TestUnmarshalEntryBadRow(t *testing.T) {
	_, err := auditlog.UnmarshalEntry([]string{"x"})
	require.Error(t, err)

	_, err = auditlog.UnmarshalEntry([]string{"nope", "1", "a", "b", "c", "", ""})
	require.Error(t, err)
}
