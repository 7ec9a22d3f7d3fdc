package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentEventType string

const (
	EventAuthorized        PaymentEventType = "payment.authorized"
	EventCaptured          PaymentEventType = "payment.captured"
	EventVoided            PaymentEventType = "payment.voided"
	EventRefunded          PaymentEventType = "payment.refunded"
	EventPartiallyRefunded PaymentEventType = "payment.partially_refunded"
	EventFailed            PaymentEventType = "payment.failed"
)

type PaymentEvent struct {
	Type      PaymentEventType `json:"type"`
	PaymentID string           `json:"payment_id"`
	OrderID   string           `json:"order_id"`
	Operation string           `json:"operation"`
	State     PaymentState     `json:"state"`
	Amount    decimal.Decimal  `json:"amount"`
	Error     string           `json:"error,omitempty"`
	Payment   *Payment         `json:"payment,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

type CommandOperation string

const (
	CommandCapture CommandOperation = "capture"
	CommandVoid    CommandOperation = "void"
	CommandRefund  CommandOperation = "refund"
)

// PaymentCommand is an operation requested by another service over Kafka.
type PaymentCommand struct {
	Operation CommandOperation `json:"operation"`
	PaymentID string           `json:"payment_id"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
}
