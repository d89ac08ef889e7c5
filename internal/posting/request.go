package posting

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/branchledger/internal/errs"
	"github.com/cleared-dev/branchledger/internal/model"
)

// PostVoucherRequest is a voucher submitted for posting.
type PostVoucherRequest struct {
	BranchID    uint              `json:"branchId" validate:"required"`
	Date        time.Time         `json:"date" validate:"required"`
	Type        model.VoucherType `json:"type" validate:"required,voucher_type"`
	TotalAmount decimal.Decimal   `json:"totalAmount"`
	Narration   string            `json:"narration"`
	Reference   string            `json:"reference"`
	Lines       []LineRequest     `json:"lines" validate:"required,min=1,dive"`
}

// LineRequest is one voucher line. LedgerID is the primary ledger whose
// side the resolver decides; VoucherLedgerID takes the other side.
type LineRequest struct {
	LedgerID        uint            `json:"ledgerId" validate:"required"`
	VoucherLedgerID uint            `json:"voucherLedgerId" validate:"required,nefield=LedgerID"`
	Amount          decimal.Decimal `json:"amount" validate:"decimal_gt0"`
	Narration       string          `json:"narration"`
}

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	validate.RegisterCustomTypeFunc(func(v reflect.Value) any {
		if d, ok := v.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	if err := validate.RegisterValidation("decimal_gt0", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && d.IsPositive()
	}); err != nil {
		panic(fmt.Sprintf("failed to register decimal_gt0 validation: %v", err))
	}
	if err := validate.RegisterValidation("voucher_type", func(fl validator.FieldLevel) bool {
		return model.VoucherType(fl.Field().String()).Valid()
	}); err != nil {
		panic(fmt.Sprintf("failed to register voucher_type validation: %v", err))
	}
	return validate
}

// Validate checks a request before anything is written. The first failing
// field is reported as an *errs.ValidationError.
func (e *Engine) Validate(req PostVoucherRequest) error {
	if err := e.validate.Struct(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return errs.Invalid("", "%v", err)
	}

	sum := decimal.Zero
	for _, l := range req.Lines {
		sum = sum.Add(l.Amount)
	}
	if !sum.Equal(req.TotalAmount) {
		return errs.Invalid("totalAmount", "%s does not equal the sum of line amounts %s", req.TotalAmount, sum)
	}
	return nil
}

func fieldError(fe validator.FieldError) *errs.ValidationError {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return errs.Invalid(field, "is required")
	case "min":
		return errs.Invalid(field, "needs at least %s item(s)", fe.Param())
	case "decimal_gt0":
		return errs.Invalid(field, "must be greater than zero")
	case "voucher_type":
		return errs.Invalid(field, "unknown voucher type %q", fe.Value())
	case "nefield":
		return errs.Invalid(field, "must differ from %s", fe.Param())
	default:
		return errs.Invalid(field, "failed %s", fe.Tag())
	}
}
