package paycom

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// TransactionType is the protocol "type" field.
type TransactionType string

const (
	TypeAuth   TransactionType = "auth"
	TypeSale   TransactionType = "sale"
	TypeVoid   TransactionType = "void"
	TypeRefund TransactionType = "refound"
)

// Credentials identify the merchant to the gateway. Read-only after startup.
type Credentials struct {
	Username    string
	Key         string
	KeyID       string
	ProcessorID string
}

// Card is the transient card data sent with auth. It is never stored.
type Card struct {
	Number       string
	ExpMonth     int
	ExpYear      int
	SecurityCode string
}

// Transaction holds everything a field builder may need.
type Transaction struct {
	Type          TransactionType
	OrderID       string
	Amount        decimal.Decimal
	TransactionID string
	Card          *Card
	ExpMonth      int
	ExpYear       int
	Time          int64
}

type fieldBuilder func(p *Params, tx Transaction) error

var builders = map[TransactionType]fieldBuilder{
	TypeAuth:   buildAuth,
	TypeSale:   buildSale,
	TypeVoid:   buildVoid,
	TypeRefund: buildRefund,
}

// NewRequest builds the signed request for tx. The common header fields come
// first, then the builder for tx.Type adds its own.
func (c Credentials) NewRequest(tx Transaction) (*Params, error) {
	build, ok := builders[tx.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported transaction type %q", tx.Type)
	}

	amount := FormatAmount(tx.Amount)
	timestamp := strconv.FormatInt(tx.Time, 10)
	signed := map[string]string{
		FieldOrderID: tx.OrderID,
		FieldAmount:  amount,
		FieldTime:    timestamp,
	}

	p := NewParams().
		Set(FieldUsername, c.Username).
		Set(FieldType, string(tx.Type)).
		Set(FieldKeyID, c.KeyID).
		Set(FieldHash, SignFields(RequestHashFields, func(k string) string { return signed[k] }, c.Key)).
		Set(FieldTime, timestamp)

	if err := build(p, tx); err != nil {
		return nil, err
	}
	p.Set(FieldProcessorID, c.ProcessorID)
	return p, nil
}

func buildAuth(p *Params, tx Transaction) error {
	if tx.Card == nil {
		return fmt.Errorf("auth requires card details")
	}
	p.Set(FieldCCNumber, tx.Card.Number).
		Set(FieldCCExp, FormatExpiry(tx.Card.ExpMonth, tx.Card.ExpYear)).
		Set(FieldAmount, FormatAmount(tx.Amount)).
		Set(FieldOrderID, tx.OrderID).
		Set(FieldCVV, tx.Card.SecurityCode)
	return nil
}

func buildSale(p *Params, tx Transaction) error {
	if tx.TransactionID == "" {
		return fmt.Errorf("sale requires a transaction id")
	}
	p.Set(FieldTransactionID, tx.TransactionID).
		Set(FieldAmount, FormatAmount(tx.Amount)).
		Set(FieldCCNumber, tx.TransactionID)
	return nil
}

func buildVoid(p *Params, tx Transaction) error {
	if tx.TransactionID == "" {
		return fmt.Errorf("void requires a transaction id")
	}
	p.Set(FieldTransactionID, tx.TransactionID).
		Set(FieldCCNumber, tx.TransactionID)
	return nil
}

func buildRefund(p *Params, tx Transaction) error {
	if tx.TransactionID == "" {
		return fmt.Errorf("refund requires a transaction id")
	}
	p.Set(FieldTransactionID, tx.TransactionID).
		Set(FieldAmount, FormatAmount(tx.Amount)).
		Set(FieldOrderID, tx.OrderID)
	if tx.ExpMonth > 0 && tx.ExpYear > 0 {
		p.Set(FieldCCExp, FormatExpiry(tx.ExpMonth, tx.ExpYear))
	}
	return nil
}

// FormatAmount renders an amount the way the gateway signs it: two decimals.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatExpiry renders MMYY.
func FormatExpiry(month, year int) string {
	return fmt.Sprintf("%02d%02d", month, year%100)
}
