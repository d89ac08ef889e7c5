package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextVoucherNumber(t *testing.T) {
	tests := []struct {
		last string
		want string
	}{
		{"", "1"},
		{"1", "2"},
		{"41", "42"},
		{"PV-0041", "42"},
		{" 9 ", "10"},
	}
	for _, tt := range tests {
		got, err := NextVoucherNumber(tt.last)
		require.NoError(t, err, "NextVoucherNumber(%q)", tt.last)
		assert.Equal(t, tt.want, got, "NextVoucherNumber(%q)", tt.last)
	}
}

func TestNextVoucherNumberInvalid(t *testing.T) {
	_, err := NextVoucherNumber("LEGACY")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no numeric part")
}

func TestJoinCode(t *testing.T) {
	assert.Equal(t, "3", JoinCode("", 3))
	assert.Equal(t, "1.2.4", JoinCode("1.2", 4))
}

func TestParentCodeAndDepth(t *testing.T) {
	assert.Equal(t, "1.2", ParentCode("1.2.3"))
	assert.Equal(t, "", ParentCode("1"))
	assert.Equal(t, 0, Depth(""))
	assert.Equal(t, 1, Depth("4"))
	assert.Equal(t, 3, Depth("1.2.3"))
}

func TestChildSegment(t *testing.T) {
	tests := []struct {
		parent string
		code   string
		want   int
		ok     bool
	}{
		{"1", "1.3", 3, true},
		{"1", "1.3.1", 0, false},
		{"1", "11.3", 0, false},
		{"1", "1.x", 0, false},
		{"1", "1", 0, false},
		{"", "7", 7, true},
		{"", "7.1", 0, false},
		{"1.2", "1.2.10", 10, true},
	}
	for _, tt := range tests {
		got, ok := ChildSegment(tt.parent, tt.code)
		assert.Equal(t, tt.ok, ok, "ChildSegment(%q, %q)", tt.parent, tt.code)
		assert.Equal(t, tt.want, got, "ChildSegment(%q, %q)", tt.parent, tt.code)
	}
}

func TestLess(t *testing.T) {
	assert.True(t, Less("1.2", "1.10"))
	assert.True(t, Less("1", "1.1"))
	assert.True(t, Less("1.9.9", "2"))
	assert.False(t, Less("2", "1.5"))
	assert.False(t, Less("1.1", "1.1"))
}
