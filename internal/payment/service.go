package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"ms-paycom/internal/logger"
	"ms-paycom/internal/models"
	"ms-paycom/internal/paycom"
	"ms-paycom/internal/utils"
)

type Repository interface {
	Store
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	ListPaymentsByOrder(ctx context.Context, orderID string) ([]*models.Payment, error)
}

type PaymentLock interface {
	Acquire(ctx context.Context, paymentID string) (string, bool, error)
	Release(ctx context.Context, paymentID, token string) error
}

type EventPublisher interface {
	PublishPaymentEvent(event models.PaymentEvent) error
}

// Service runs machine operations under a per-payment lock and publishes the
// outcome. None of its gateway calls are retried: sale and refound carry no
// dedup key, so a retry after a timeout can charge or refund twice.
type Service struct {
	Repo      Repository
	Machine   *Machine
	Lock      PaymentLock
	Publisher EventPublisher
	Clock     utils.Clock
	Currency  string
	Logger    *logger.Logger
}

func NewService(repo Repository, machine *Machine, lock PaymentLock, publisher EventPublisher, clock utils.Clock, currency string, log *logger.Logger) *Service {
	if currency == "" {
		currency = "USD"
	}
	return &Service{
		Repo:      repo,
		Machine:   machine,
		Lock:      lock,
		Publisher: publisher,
		Clock:     clock,
		Currency:  currency,
		Logger:    log,
	}
}

func (s *Service) CreatePayment(ctx context.Context, req models.CreatePaymentRequest) (*models.Payment, error) {
	if req.OrderID == "" {
		return nil, fmt.Errorf("%w: order_id is required", ErrInvalidAmount)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than 0", ErrInvalidAmount)
	}
	currency := req.Currency
	if currency == "" {
		currency = s.Currency
	}

	now := s.Clock.Now()
	p := &models.Payment{
		PaymentID:      utils.GeneratePaymentID(),
		OrderID:        req.OrderID,
		Amount:         req.Amount.Round(2),
		Currency:       currency,
		State:          models.StateNew,
		RefundedAmount: decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.Repo.CreatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	s.Logger.LogPayment("CREATE", p.PaymentID, fmt.Sprintf("order %s amount %s %s", p.OrderID, p.Amount.StringFixed(2), p.Currency))
	return p, nil
}

func (s *Service) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	return s.Repo.GetPayment(ctx, id)
}

func (s *Service) ListPaymentsByOrder(ctx context.Context, orderID string) ([]*models.Payment, error) {
	return s.Repo.ListPaymentsByOrder(ctx, orderID)
}

// Authorize stores a single-use payment method for card, links it to the
// payment and authorizes. The method is removed again if authorization fails.
func (s *Service) Authorize(ctx context.Context, id string, card models.CardDetails, autoCapture bool) (*models.Payment, error) {
	return s.run(ctx, id, "authorize", func(p *models.Payment) error {
		if p.State != models.StateNew {
			return assertState(p, "authorize", models.StateNew)
		}

		method := &models.PaymentMethod{}
		if err := s.Machine.CreatePaymentMethod(ctx, method, card); err != nil {
			return err
		}

		linked := *p
		linked.PaymentMethodID = method.PaymentMethodID
		if err := s.Machine.Authorize(ctx, &linked, card, autoCapture); err != nil {
			if linked.State == models.StateNew {
				if derr := s.Machine.DeletePaymentMethod(ctx, method); derr != nil {
					s.Logger.Error("PAYMENT", fmt.Sprintf("orphaned payment method %s for payment %s, remove it manually: %v", method.PaymentMethodID, p.PaymentID, derr))
				}
				return err
			}
			// Authorized but the automatic capture failed.
			*p = linked
			return err
		}
		*p = linked
		return nil
	})
}

func (s *Service) Capture(ctx context.Context, id string, amount *decimal.Decimal) (*models.Payment, error) {
	return s.run(ctx, id, "capture", func(p *models.Payment) error {
		return s.Machine.Capture(ctx, p, amount)
	})
}

func (s *Service) Void(ctx context.Context, id string) (*models.Payment, error) {
	return s.run(ctx, id, "void", func(p *models.Payment) error {
		return s.Machine.Void(ctx, p)
	})
}

func (s *Service) Refund(ctx context.Context, id string, amount *decimal.Decimal) (*models.Payment, error) {
	return s.run(ctx, id, "refund", func(p *models.Payment) error {
		return s.Machine.Refund(ctx, p, amount)
	})
}

func (s *Service) DeletePaymentMethod(ctx context.Context, id string) error {
	method, err := s.Repo.GetPaymentMethod(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Machine.DeletePaymentMethod(ctx, method); err != nil {
		return err
	}
	s.Logger.LogPayment("DELETE_METHOD", id, "payment method deleted")
	return nil
}

// HandleCommand dispatches a command received from another service.
func (s *Service) HandleCommand(ctx context.Context, cmd models.PaymentCommand) error {
	var err error
	switch cmd.Operation {
	case models.CommandCapture:
		_, err = s.Capture(ctx, cmd.PaymentID, cmd.Amount)
	case models.CommandVoid:
		_, err = s.Void(ctx, cmd.PaymentID)
	case models.CommandRefund:
		_, err = s.Refund(ctx, cmd.PaymentID, cmd.Amount)
	default:
		return fmt.Errorf("unknown command operation %q", cmd.Operation)
	}
	return err
}

// run locks the payment, loads it, applies op, releases the lock and then
// publishes the result. On error the returned payment is nil.
func (s *Service) run(ctx context.Context, id, operation string, op func(p *models.Payment) error) (*models.Payment, error) {
	token, ok, err := s.Lock.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPaymentLocked
	}

	var changed bool
	p, err := s.Repo.GetPayment(ctx, id)
	if err == nil {
		before := p.State
		err = op(p)
		changed = p.State != before
	}

	if rerr := s.Lock.Release(context.WithoutCancel(ctx), id, token); rerr != nil {
		s.Logger.Error("LOCK", fmt.Sprintf("failed to release lock for payment %s: %v", id, rerr))
	}

	// An auto-capture failure still leaves a committed authorization.
	if err == nil || changed {
		s.publish(operation, p, nil)
	}
	if err != nil {
		if isGatewayError(err) {
			s.publish(operation, p, err)
		}
		return nil, err
	}
	return p, nil
}

func (s *Service) publish(operation string, p *models.Payment, opErr error) {
	if s.Publisher == nil || p == nil {
		return
	}
	event := models.PaymentEvent{
		Type:      eventType(p.State, opErr),
		PaymentID: p.PaymentID,
		OrderID:   p.OrderID,
		Operation: operation,
		State:     p.State,
		Amount:    p.Amount,
		Payment:   p,
		Timestamp: s.Clock.Now(),
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}
	if err := s.Publisher.PublishPaymentEvent(event); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish %s event for payment %s: %v", event.Type, p.PaymentID, err))
	}
}

func eventType(state models.PaymentState, opErr error) models.PaymentEventType {
	if opErr != nil {
		return models.EventFailed
	}
	switch state {
	case models.StateAuthorization:
		return models.EventAuthorized
	case models.StateCompleted:
		return models.EventCaptured
	case models.StateAuthorizationVoided:
		return models.EventVoided
	case models.StatePartiallyRefunded:
		return models.EventPartiallyRefunded
	case models.StateRefunded:
		return models.EventRefunded
	}
	return models.EventFailed
}

func isGatewayError(err error) bool {
	return errors.Is(err, paycom.ErrTransport) ||
		errors.Is(err, paycom.ErrInvalidResponse) ||
		errors.Is(err, paycom.ErrDeclined) ||
		errors.Is(err, paycom.ErrAuthentication)
}
