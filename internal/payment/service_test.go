package payment

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-paycom/internal/logger"
	"ms-paycom/internal/models"
	"ms-paycom/internal/paycom"
	"ms-paycom/internal/paycom/paycomtest"
	paymentredis "ms-paycom/internal/payment/redis"
	"ms-paycom/internal/payment/storage"
	"ms-paycom/internal/utils"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishPaymentEvent(event models.PaymentEvent) error {
	args := m.Called(event)
	return args.Error(0)
}

type serviceFixture struct {
	service   *Service
	gateway   *paycomtest.Gateway
	store     *storage.BunStore
	locker    *paymentredis.Locker
	publisher *MockPublisher
}

func setupService(t *testing.T) *serviceFixture {
	t.Helper()
	log := logger.NewLoggerTo(io.Discard)

	sqldb, err := sql.Open(sqliteshim.ShimName, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	store := storage.NewBunStore(bun.NewDB(sqldb, sqlitedialect.New()), log)
	require.NoError(t, store.CreateSchema(context.Background()))
	t.Cleanup(func() { store.Close() })

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	locker := paymentredis.NewLocker(client, 0, log)

	gateway := paycomtest.NewGateway(testKey)
	clock := utils.NewFixedClock(testNow)
	machine := NewMachine(gateway, store, clock, testCreds, log)
	publisher := &MockPublisher{}

	return &serviceFixture{
		service:   NewService(store, machine, locker, publisher, clock, "USD", log),
		gateway:   gateway,
		store:     store,
		locker:    locker,
		publisher: publisher,
	}
}

func eventOfType(eventType models.PaymentEventType) interface{} {
	return mock.MatchedBy(func(e models.PaymentEvent) bool { return e.Type == eventType })
}

func TestServiceCreatePayment(t *testing.T) {
	f := setupService(t)

	p, err := f.service.CreatePayment(context.Background(), models.CreatePaymentRequest{
		OrderID: "order-1",
		Amount:  decimal.RequireFromString("19.999"),
	})
	require.NoError(t, err)

	assert.Equal(t, models.StateNew, p.State)
	assert.Equal(t, "USD", p.Currency)
	assert.Equal(t, "20.00", p.Amount.StringFixed(2))

	stored, err := f.service.GetPayment(context.Background(), p.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, "order-1", stored.OrderID)

	list, err := f.service.ListPaymentsByOrder(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestServiceCreatePaymentRejectsBadInput(t *testing.T) {
	f := setupService(t)

	_, err := f.service.CreatePayment(context.Background(), models.CreatePaymentRequest{OrderID: "o", Amount: decimal.Zero})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.service.CreatePayment(context.Background(), models.CreatePaymentRequest{Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestServiceAuthorizeWithAutoCapture(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	f.publisher.On("PublishPaymentEvent", eventOfType(models.EventCaptured)).Return(nil).Once()

	created, err := f.service.CreatePayment(ctx, models.CreatePaymentRequest{OrderID: "order-1", Amount: decimal.NewFromInt(50)})
	require.NoError(t, err)

	p, err := f.service.Authorize(ctx, created.PaymentID, validCard, true)
	require.NoError(t, err)

	assert.Equal(t, models.StateCompleted, p.State)
	assert.Equal(t, []string{"auth", "sale"}, f.gateway.Types())
	assert.NotEmpty(t, p.PaymentMethodID)

	stored, err := f.store.GetPayment(ctx, p.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, stored.State)
	assert.Equal(t, p.RemoteID, stored.RemoteID)
	assert.Equal(t, p.PaymentMethodID, stored.PaymentMethodID)

	method, err := f.store.GetPaymentMethod(ctx, p.PaymentMethodID)
	require.NoError(t, err)
	assert.Equal(t, "1111", method.Last4Digits)

	locked, err := f.locker.IsLocked(ctx, p.PaymentID)
	require.NoError(t, err)
	assert.False(t, locked)
	f.publisher.AssertExpectations(t)
}

func TestServiceAuthorizeDeclineRemovesMethod(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	f.publisher.On("PublishPaymentEvent", eventOfType(models.EventFailed)).Return(nil).Once()
	f.gateway.Enqueue(paycomtest.Decline("200"))

	created, err := f.service.CreatePayment(ctx, models.CreatePaymentRequest{OrderID: "order-1", Amount: decimal.NewFromInt(50)})
	require.NoError(t, err)

	p, err := f.service.Authorize(ctx, created.PaymentID, validCard, false)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, paycom.ErrDeclined)

	stored, err := f.store.GetPayment(ctx, created.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, models.StateNew, stored.State)
	assert.Empty(t, stored.PaymentMethodID)
	f.publisher.AssertExpectations(t)
}

type deleteFailingStore struct {
	*storage.BunStore
}

func (deleteFailingStore) DeletePaymentMethod(context.Context, string) error {
	return errors.New("connection reset")
}

func TestServiceAuthorizeLogsOrphanedMethod(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	var buf bytes.Buffer
	log := logger.NewLoggerTo(&buf)
	f.service.Logger = log
	f.service.Machine = NewMachine(f.gateway, deleteFailingStore{f.store}, utils.NewFixedClock(testNow), testCreds, log)
	f.publisher.On("PublishPaymentEvent", eventOfType(models.EventFailed)).Return(nil).Once()
	f.gateway.Enqueue(paycomtest.Decline("200"))

	created, err := f.service.CreatePayment(ctx, models.CreatePaymentRequest{OrderID: "order-1", Amount: decimal.NewFromInt(50)})
	require.NoError(t, err)

	_, err = f.service.Authorize(ctx, created.PaymentID, validCard, false)
	assert.ErrorIs(t, err, paycom.ErrDeclined)

	out := buf.String()
	assert.Contains(t, out, "ERROR [PAYMENT   ] orphaned payment method pm_")
	assert.Contains(t, out, "for payment "+created.PaymentID)
}

func TestServiceRejectsLockedPayment(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	created, err := f.service.CreatePayment(ctx, models.CreatePaymentRequest{OrderID: "order-1", Amount: decimal.NewFromInt(50)})
	require.NoError(t, err)

	_, ok, err := f.locker.Acquire(ctx, created.PaymentID)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.service.Authorize(ctx, created.PaymentID, validCard, false)
	assert.ErrorIs(t, err, ErrPaymentLocked)
	assert.Empty(t, f.gateway.Requests())
}

func TestServiceInvalidStateIsNotPublished(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	created, err := f.service.CreatePayment(ctx, models.CreatePaymentRequest{OrderID: "order-1", Amount: decimal.NewFromInt(50)})
	require.NoError(t, err)

	_, err = f.service.Void(ctx, created.PaymentID)
	assert.ErrorIs(t, err, ErrInvalidState)
	f.publisher.AssertNotCalled(t, "PublishPaymentEvent", mock.Anything)

	locked, err := f.locker.IsLocked(ctx, created.PaymentID)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestServiceRefundFlowPublishesEvents(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	f.publisher.On("PublishPaymentEvent", eventOfType(models.EventAuthorized)).Return(nil).Once()
	f.publisher.On("PublishPaymentEvent", eventOfType(models.EventCaptured)).Return(nil).Once()
	f.publisher.On("PublishPaymentEvent", eventOfType(models.EventPartiallyRefunded)).Return(nil).Once()
	f.publisher.On("PublishPaymentEvent", eventOfType(models.EventRefunded)).Return(assert.AnError).Once()

	created, err := f.service.CreatePayment(ctx, models.CreatePaymentRequest{OrderID: "order-1", Amount: decimal.NewFromInt(100)})
	require.NoError(t, err)

	_, err = f.service.Authorize(ctx, created.PaymentID, validCard, false)
	require.NoError(t, err)
	_, err = f.service.Capture(ctx, created.PaymentID, nil)
	require.NoError(t, err)

	p, err := f.service.Refund(ctx, created.PaymentID, dec("40"))
	require.NoError(t, err)
	assert.Equal(t, models.StatePartiallyRefunded, p.State)

	// A publish failure is logged, not returned.
	p, err = f.service.Refund(ctx, created.PaymentID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StateRefunded, p.State)
	assert.True(t, p.RefundedAmount.Equal(decimal.NewFromInt(100)))

	assert.Equal(t, []string{"auth", "sale", "refound", "refound"}, f.gateway.Types())
	assert.Equal(t, "1230", f.gateway.Requests()[2]["ccexp"])
	f.publisher.AssertExpectations(t)
}

func TestServiceHandleCommand(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	f.publisher.On("PublishPaymentEvent", mock.Anything).Return(nil)

	created, err := f.service.CreatePayment(ctx, models.CreatePaymentRequest{OrderID: "order-1", Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	_, err = f.service.Authorize(ctx, created.PaymentID, validCard, false)
	require.NoError(t, err)

	require.NoError(t, f.service.HandleCommand(ctx, models.PaymentCommand{Operation: models.CommandVoid, PaymentID: created.PaymentID}))

	stored, err := f.store.GetPayment(ctx, created.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, models.StateAuthorizationVoided, stored.State)

	assert.Error(t, f.service.HandleCommand(ctx, models.PaymentCommand{Operation: "settle", PaymentID: created.PaymentID}))
}

func TestServiceDeletePaymentMethod(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	f.publisher.On("PublishPaymentEvent", mock.Anything).Return(nil)

	created, err := f.service.CreatePayment(ctx, models.CreatePaymentRequest{OrderID: "order-1", Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	p, err := f.service.Authorize(ctx, created.PaymentID, validCard, false)
	require.NoError(t, err)

	require.NoError(t, f.service.DeletePaymentMethod(ctx, p.PaymentMethodID))
	assert.ErrorIs(t, f.service.DeletePaymentMethod(ctx, p.PaymentMethodID), storage.ErrNotFound)
}

func TestServiceUnknownPayment(t *testing.T) {
	f := setupService(t)

	_, err := f.service.Capture(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
