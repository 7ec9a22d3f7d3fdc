package payment

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"ms-paycom/internal/logger"
	"ms-paycom/internal/models"
	"ms-paycom/internal/paycom"
	"ms-paycom/internal/payment/storage"
	"ms-paycom/internal/utils"
)

// Transport posts a signed request and returns the decoded reply.
// *paycom.Client implements it.
type Transport interface {
	Post(ctx context.Context, params *paycom.Params) (paycom.Response, error)
}

// Store is the persistence the machine writes through.
type Store interface {
	SavePayment(ctx context.Context, p *models.Payment) error
	GetPaymentMethod(ctx context.Context, id string) (*models.PaymentMethod, error)
	CreatePaymentMethod(ctx context.Context, m *models.PaymentMethod) error
	DeletePaymentMethod(ctx context.Context, id string) error
}

// Machine moves a payment through
// new -> authorization -> completed -> partially_refunded/refunded, or
// authorization -> authorization_voided, one gateway exchange per step.
//
// Machine is not synchronized. Callers must serialize operations on the same
// payment.
type Machine struct {
	transport Transport
	store     Store
	clock     utils.Clock
	creds     paycom.Credentials
	validate  *validator.Validate
	log       *logger.Logger
}

func NewMachine(transport Transport, store Store, clock utils.Clock, creds paycom.Credentials, log *logger.Logger) *Machine {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return &Machine{
		transport: transport,
		store:     store,
		clock:     clock,
		creds:     creds,
		validate:  v,
		log:       log,
	}
}

// Authorize reserves p.Amount on the card. With autoCapture it captures the
// full amount right after; an error from that capture leaves p authorized.
func (m *Machine) Authorize(ctx context.Context, p *models.Payment, card models.CardDetails, autoCapture bool) error {
	if err := assertState(p, "authorize", models.StateNew); err != nil {
		return err
	}
	if err := m.ValidateCard(card); err != nil {
		return err
	}

	resp, err := m.exchange(ctx, paycom.Transaction{
		Type:    paycom.TypeAuth,
		OrderID: p.OrderID,
		Amount:  p.Amount,
		Card: &paycom.Card{
			Number:       card.Number,
			ExpMonth:     card.ExpMonth,
			ExpYear:      card.ExpYear,
			SecurityCode: card.SecurityCode,
		},
	})
	if err != nil {
		return err
	}
	remoteID := resp.Get(paycom.FieldTransactionID)
	if remoteID == "" {
		return &paycom.InvalidResponseError{Reason: "transaction id not found"}
	}

	err = m.commit(ctx, p, func(next *models.Payment) {
		next.State = models.StateAuthorization
		next.RemoteID = remoteID
	})
	if err != nil {
		return err
	}
	m.log.LogPayment("AUTHORIZE", p.PaymentID, fmt.Sprintf("authorized %s %s (remote %s)", p.Amount.StringFixed(2), p.Currency, remoteID))

	if autoCapture {
		return m.Capture(ctx, p, nil)
	}
	return nil
}

// Capture charges amount, or the full authorized amount when nil.
func (m *Machine) Capture(ctx context.Context, p *models.Payment, amount *decimal.Decimal) error {
	if err := assertState(p, "capture", models.StateAuthorization); err != nil {
		return err
	}
	amt := p.Amount
	if amount != nil {
		amt = *amount
	}
	if !amt.IsPositive() || !wholeCents(amt) || amt.GreaterThan(p.Amount) {
		return &InvalidCaptureAmountError{Requested: amt, Authorized: p.Amount}
	}

	_, err := m.exchange(ctx, paycom.Transaction{
		Type:          paycom.TypeSale,
		OrderID:       p.OrderID,
		Amount:        amt,
		TransactionID: p.RemoteID,
	})
	if err != nil {
		return err
	}

	err = m.commit(ctx, p, func(next *models.Payment) {
		next.State = models.StateCompleted
		next.Amount = amt
	})
	if err != nil {
		return err
	}
	m.log.LogPayment("CAPTURE", p.PaymentID, "captured "+amt.StringFixed(2))
	return nil
}

// Void cancels an authorization that was never captured.
func (m *Machine) Void(ctx context.Context, p *models.Payment) error {
	if err := assertState(p, "void", models.StateAuthorization); err != nil {
		return err
	}

	_, err := m.exchange(ctx, paycom.Transaction{
		Type:          paycom.TypeVoid,
		OrderID:       p.OrderID,
		Amount:        p.Amount,
		TransactionID: p.RemoteID,
	})
	if err != nil {
		return err
	}

	err = m.commit(ctx, p, func(next *models.Payment) {
		next.State = models.StateAuthorizationVoided
	})
	if err != nil {
		return err
	}
	m.log.LogPayment("VOID", p.PaymentID, "authorization voided")
	return nil
}

// Refund returns amount, or everything still refundable when nil. A fully
// refunded payment has nothing refundable left, so any further refund is an
// amount error.
func (m *Machine) Refund(ctx context.Context, p *models.Payment, amount *decimal.Decimal) error {
	refundable := p.RefundableAmount()
	amt := refundable
	if amount != nil {
		amt = *amount
	}

	if p.State == models.StateRefunded {
		return &InvalidRefundAmountError{Requested: amt, Refundable: decimal.Zero}
	}
	if err := assertState(p, "refund", models.StateCompleted, models.StatePartiallyRefunded); err != nil {
		return err
	}
	if !amt.IsPositive() || !wholeCents(amt) || amt.GreaterThan(refundable) {
		return &InvalidRefundAmountError{Requested: amt, Refundable: refundable}
	}

	tx := paycom.Transaction{
		Type:          paycom.TypeRefund,
		OrderID:       p.OrderID,
		Amount:        amt,
		TransactionID: p.RemoteID,
	}
	if p.PaymentMethodID != "" {
		method, err := m.store.GetPaymentMethod(ctx, p.PaymentMethodID)
		switch {
		case err == nil:
			tx.ExpMonth, tx.ExpYear = method.ExpMonth, method.ExpYear
		case !errors.Is(err, storage.ErrNotFound):
			return fmt.Errorf("load payment method %s: %w", p.PaymentMethodID, err)
		}
	}

	if _, err := m.exchange(ctx, tx); err != nil {
		return err
	}

	err := m.commit(ctx, p, func(next *models.Payment) {
		next.RefundedAmount = p.RefundedAmount.Add(amt)
		if next.RefundedAmount.GreaterThanOrEqual(p.Amount) {
			next.State = models.StateRefunded
		} else {
			next.State = models.StatePartiallyRefunded
		}
	})
	if err != nil {
		return err
	}
	m.log.LogPayment("REFUND", p.PaymentID, fmt.Sprintf("refunded %s, total %s of %s", amt.StringFixed(2), p.RefundedAmount.StringFixed(2), p.Amount.StringFixed(2)))
	return nil
}

// CreatePaymentMethod fills method from card and stores it. The gateway has
// no tokenization call, so the method is single use with remote id "-1".
func (m *Machine) CreatePaymentMethod(ctx context.Context, method *models.PaymentMethod, card models.CardDetails) error {
	if err := m.ValidateCard(card); err != nil {
		return err
	}

	next := *method
	if next.PaymentMethodID == "" {
		next.PaymentMethodID = utils.GeneratePaymentMethodID()
	}
	next.CardType = card.Type
	next.Last4Digits = card.Number[len(card.Number)-4:]
	next.ExpMonth = card.ExpMonth
	next.ExpYear = card.ExpYear
	next.ExpiresAt = utils.FirstOfNextMonth(card.ExpMonth, card.ExpYear, m.clock.Now().Location())
	next.RemoteID = "-1"
	next.Reusable = false
	next.CreatedAt = m.clock.Now()

	if err := m.store.CreatePaymentMethod(ctx, &next); err != nil {
		return fmt.Errorf("save payment method: %w", err)
	}
	*method = next
	m.log.Debug("PAYMENT", fmt.Sprintf("created payment method %s for %s", method.PaymentMethodID, card))
	return nil
}

func (m *Machine) DeletePaymentMethod(ctx context.Context, method *models.PaymentMethod) error {
	if err := m.store.DeletePaymentMethod(ctx, method.PaymentMethodID); err != nil {
		return fmt.Errorf("delete payment method %s: %w", method.PaymentMethodID, err)
	}
	return nil
}

// ValidateCard checks the required card fields and rejects expired cards.
func (m *Machine) ValidateCard(card models.CardDetails) error {
	if err := m.validate.Struct(card); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate card: %w", err)
		}
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		return &InvalidCardError{Fields: fields}
	}
	now := m.clock.Now()
	if !utils.FirstOfNextMonth(card.ExpMonth, card.ExpYear, now.Location()).After(now) {
		return &InvalidCardError{Fields: []string{"expiration"}}
	}
	return nil
}

// exchange signs tx with the current time, posts it and validates the reply.
// Nothing is mutated here.
func (m *Machine) exchange(ctx context.Context, tx paycom.Transaction) (paycom.Response, error) {
	tx.Time = m.clock.Now().Unix()
	params, err := m.creds.NewRequest(tx)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", tx.Type, err)
	}
	m.log.Debug("GATEWAY", fmt.Sprintf("sending %s: %v", tx.Type, params.Redacted()))

	resp, err := m.transport.Post(ctx, params)
	if err != nil {
		return nil, err
	}
	if err := paycom.Validate(resp, m.creds.Key); err != nil {
		return nil, err
	}
	return resp, nil
}

// commit applies mutate to a copy of p, persists the copy and only then
// copies it back, so a failed save leaves p as it was.
func (m *Machine) commit(ctx context.Context, p *models.Payment, mutate func(next *models.Payment)) error {
	next := *p
	mutate(&next)
	next.UpdatedAt = m.clock.Now()
	if err := m.store.SavePayment(ctx, &next); err != nil {
		return fmt.Errorf("save payment %s: %w", p.PaymentID, err)
	}
	*p = next
	return nil
}

// wholeCents reports whether d survives two-decimal formatting unchanged,
// so the amount recorded is the amount the gateway moves.
func wholeCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

func assertState(p *models.Payment, operation string, allowed ...models.PaymentState) error {
	for _, s := range allowed {
		if p.State == s {
			return nil
		}
	}
	return &InvalidStateError{Operation: operation, State: p.State, Allowed: allowed}
}
