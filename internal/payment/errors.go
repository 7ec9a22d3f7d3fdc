package payment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"ms-paycom/internal/models"
)

var (
	ErrInvalidState         = errors.New("invalid payment state")
	ErrInvalidRefundAmount  = errors.New("invalid refund amount")
	ErrInvalidCaptureAmount = errors.New("invalid capture amount")
	ErrInvalidCard          = errors.New("invalid card details")
	ErrInvalidAmount        = errors.New("invalid payment amount")
	ErrPaymentLocked        = errors.New("payment is locked by another operation")
)

// InvalidStateError means the caller asked for an operation the payment's
// current state does not allow. It is a contract violation and is never
// swallowed.
type InvalidStateError struct {
	Operation string
	State     models.PaymentState
	Allowed   []models.PaymentState
}

func (e *InvalidStateError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = string(s)
	}
	return fmt.Sprintf("cannot %s payment in state %q (allowed: %s)", e.Operation, e.State, strings.Join(allowed, ", "))
}

func (e *InvalidStateError) Is(target error) bool { return target == ErrInvalidState }

type InvalidRefundAmountError struct {
	Requested  decimal.Decimal
	Refundable decimal.Decimal
}

func (e *InvalidRefundAmountError) Error() string {
	return fmt.Sprintf("refund amount %s must be greater than 0 and at most %s", e.Requested.StringFixed(2), e.Refundable.StringFixed(2))
}

func (e *InvalidRefundAmountError) Is(target error) bool { return target == ErrInvalidRefundAmount }

type InvalidCaptureAmountError struct {
	Requested  decimal.Decimal
	Authorized decimal.Decimal
}

func (e *InvalidCaptureAmountError) Error() string {
	return fmt.Sprintf("capture amount %s must be greater than 0 and at most %s", e.Requested.StringFixed(2), e.Authorized.StringFixed(2))
}

func (e *InvalidCaptureAmountError) Is(target error) bool { return target == ErrInvalidCaptureAmount }

// InvalidCardError lists the card fields that failed validation.
type InvalidCardError struct {
	Fields []string
}

func (e *InvalidCardError) Error() string {
	return "invalid card details: " + strings.Join(e.Fields, ", ")
}

func (e *InvalidCardError) Is(target error) bool { return target == ErrInvalidCard }
