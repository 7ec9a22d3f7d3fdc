package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type PaymentState string

const (
	StateNew                 PaymentState = "new"
	StateAuthorization       PaymentState = "authorization"
	StateCompleted           PaymentState = "completed"
	StateAuthorizationVoided PaymentState = "authorization_voided"
	StatePartiallyRefunded   PaymentState = "partially_refunded"
	StateRefunded            PaymentState = "refunded"
)

// IsTerminal reports whether no further operation is legal from s.
func (s PaymentState) IsTerminal() bool {
	return s == StateRefunded || s == StateAuthorizationVoided
}

type Payment struct {
	bun.BaseModel `bun:"table:payments"`

	PaymentID       string          `json:"payment_id" bun:"payment_id,pk"`
	OrderID         string          `json:"order_id" bun:"order_id,notnull"`
	PaymentMethodID string          `json:"payment_method_id,omitempty" bun:"payment_method_id,nullzero"`
	Amount          decimal.Decimal `json:"amount" bun:"amount,type:numeric(12,2),notnull"`
	Currency        string          `json:"currency" bun:"currency,notnull"`
	State           PaymentState    `json:"state" bun:"state,notnull"`
	RemoteID        string          `json:"remote_id,omitempty" bun:"remote_id,nullzero"`
	RefundedAmount  decimal.Decimal `json:"refunded_amount" bun:"refunded_amount,type:numeric(12,2),notnull"`
	CreatedAt       time.Time       `json:"created_at" bun:"created_at,notnull"`
	UpdatedAt       time.Time       `json:"updated_at" bun:"updated_at,notnull"`
}

// RefundableAmount is what is left to refund on a captured payment.
func (p *Payment) RefundableAmount() decimal.Decimal {
	return p.Amount.Sub(p.RefundedAmount)
}

func (p *Payment) IsTerminal() bool {
	return p.State.IsTerminal()
}

// PaymentMethod is a truncated card reference. Only the last four digits of
// the card number are kept.
type PaymentMethod struct {
	bun.BaseModel `bun:"table:payment_methods"`

	PaymentMethodID string    `json:"payment_method_id" bun:"payment_method_id,pk"`
	CardType        string    `json:"card_type" bun:"card_type,notnull"`
	Last4Digits     string    `json:"last4_digits" bun:"last4_digits,notnull"`
	ExpMonth        int       `json:"exp_month" bun:"exp_month,notnull"`
	ExpYear         int       `json:"exp_year" bun:"exp_year,notnull"`
	RemoteID        string    `json:"remote_id" bun:"remote_id,notnull"`
	Reusable        bool      `json:"reusable" bun:"reusable,notnull"`
	ExpiresAt       time.Time `json:"expires_at" bun:"expires_at,notnull"`
	CreatedAt       time.Time `json:"created_at" bun:"created_at,notnull"`
}

// CardDetails is card input as entered by the customer. It is never stored.
type CardDetails struct {
	Type         string `json:"type" validate:"required"`
	Number       string `json:"number" validate:"required,numeric,min=12,max=19"`
	ExpMonth     int    `json:"expiration_month" validate:"required,min=1,max=12"`
	ExpYear      int    `json:"expiration_year" validate:"required,min=2000,max=2099"`
	SecurityCode string `json:"security_code" validate:"required,numeric,min=3,max=4"`
}

// String never prints the full number or the security code.
func (c CardDetails) String() string {
	last4 := c.Number
	if len(last4) > 4 {
		last4 = last4[len(last4)-4:]
	}
	return c.Type + " ending " + last4
}

type CreatePaymentRequest struct {
	OrderID  string          `json:"order_id" validate:"required"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency,omitempty" validate:"omitempty,len=3"`
}

type AuthorizeRequest struct {
	Card        CardDetails `json:"card"`
	AutoCapture bool        `json:"auto_capture"`
}

// AmountRequest is the body of capture and refund. A missing amount means the
// default for the operation.
type AmountRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
}
