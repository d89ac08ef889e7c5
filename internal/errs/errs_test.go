package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{Invalid("amount", "must be positive"), "validation"},
		{fmt.Errorf("posting: %w", NotFound("voucher book", "1/PAYMENT")), "not_found"},
		{&ClassificationError{VoucherType: "CONTRA", Primary: "Income", Opposite: "Assets"}, "classification"},
		{fmt.Errorf("walk: %w", ErrCycle), "consistency"},
		{errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.err), "Kind(%v)", tt.err)
	}
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "validation: lines[0].amount: must be > 0", Invalid("lines[0].amount", "must be > 0").Error())
	assert.Equal(t, "validation: no lines", (&ValidationError{Reason: "no lines"}).Error())
	assert.Equal(t, "ledger not found: 42", NotFound("ledger", 42).Error())
}

func TestErrorsAsThroughWrap(t *testing.T) {
	err := fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", Invalid("date", "required")))
	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, "date", ve.Field)
}
