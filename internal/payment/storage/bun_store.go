package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-paycom/internal/config"
	"ms-paycom/internal/logger"
	"ms-paycom/internal/models"
)

// BunStore keeps payments and payment methods in any bun-supported database.
type BunStore struct {
	db  *bun.DB
	log *logger.Logger
}

func NewBunStore(db *bun.DB, log *logger.Logger) *BunStore {
	return &BunStore{db: db, log: log}
}

// OpenPostgres connects to PostgreSQL, retrying a few times while the
// database comes up.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	const maxRetries = 5

	var sqldb *sql.DB
	var err error
	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err == nil {
			err = sqldb.PingContext(ctx)
		}
		if err == nil {
			break
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to postgres after %d attempts: %w", maxRetries, err)
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.LogDatabase("CONNECT", "postgresql", "PostgreSQL connection established")
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// CreateSchema creates the tables from the models. Production schemas come
// from the SQL migrations; this is for tests and local runs.
func (s *BunStore) CreateSchema(ctx context.Context) error {
	for _, model := range []interface{}{(*models.Payment)(nil), (*models.PaymentMethod)(nil)} {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	_, err := s.db.NewCreateIndex().
		Model((*models.Payment)(nil)).
		Index("idx_payments_order_id").
		IfNotExists().
		Column("order_id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	s.log.LogDatabase("MIGRATE", "payments", "schema ready")
	return nil
}

func (s *BunStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	s.log.LogDatabase("INSERT", "payments", fmt.Sprintf("Saving payment %s", payment.PaymentID))
	if _, err := s.db.NewInsert().Model(payment).Exec(ctx); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *BunStore) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.NewSelect().
		Model(&payment).
		Where("payment_id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "payment", id)
	}
	return &payment, nil
}

func (s *BunStore) ListPaymentsByOrder(ctx context.Context, orderID string) ([]*models.Payment, error) {
	var payments []*models.Payment
	err := s.db.NewSelect().
		Model(&payments).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payments for order %s: %w", orderID, err)
	}
	return payments, nil
}

// SavePayment writes the fields the state machine owns.
func (s *BunStore) SavePayment(ctx context.Context, payment *models.Payment) error {
	res, err := s.db.NewUpdate().
		Model(payment).
		Column("state", "amount", "refunded_amount", "remote_id", "payment_method_id", "updated_at").
		Where("payment_id = ?", payment.PaymentID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("payment %s: %w", payment.PaymentID, ErrNotFound)
	}
	s.log.LogDatabase("UPDATE", "payments", fmt.Sprintf("payment %s now %s", payment.PaymentID, payment.State))
	return nil
}

func (s *BunStore) CreatePaymentMethod(ctx context.Context, method *models.PaymentMethod) error {
	s.log.LogDatabase("INSERT", "payment_methods", fmt.Sprintf("Saving payment method %s", method.PaymentMethodID))
	if _, err := s.db.NewInsert().Model(method).Exec(ctx); err != nil {
		return fmt.Errorf("insert payment method: %w", err)
	}
	return nil
}

func (s *BunStore) GetPaymentMethod(ctx context.Context, id string) (*models.PaymentMethod, error) {
	var method models.PaymentMethod
	err := s.db.NewSelect().
		Model(&method).
		Where("payment_method_id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "payment method", id)
	}
	return &method, nil
}

func (s *BunStore) DeletePaymentMethod(ctx context.Context, id string) error {
	res, err := s.db.NewDelete().
		Model((*models.PaymentMethod)(nil)).
		Where("payment_method_id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete payment method: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("payment method %s: %w", id, ErrNotFound)
	}
	s.log.LogDatabase("DELETE", "payment_methods", "deleted "+id)
	return nil
}

func (s *BunStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *BunStore) Close() error {
	return s.db.Close()
}

func notFound(err error, kind, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return fmt.Errorf("get %s %s: %w", kind, id, err)
}
