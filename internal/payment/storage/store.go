package storage

import (
	"context"
	"errors"

	"ms-paycom/internal/models"
)

var ErrNotFound = errors.New("record not found")

type Store interface {
	// Payment operations
	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	ListPaymentsByOrder(ctx context.Context, orderID string) ([]*models.Payment, error)
	SavePayment(ctx context.Context, payment *models.Payment) error

	// Payment method operations
	CreatePaymentMethod(ctx context.Context, method *models.PaymentMethod) error
	GetPaymentMethod(ctx context.Context, id string) (*models.PaymentMethod, error)
	DeletePaymentMethod(ctx context.Context, id string) error

	// Health and maintenance
	Close() error
	HealthCheck(ctx context.Context) error
}
