package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"ms-paycom/internal/auth"
	"ms-paycom/internal/logger"
	"ms-paycom/internal/models"
	"ms-paycom/internal/utils"
)

type PaymentService interface {
	CreatePayment(ctx context.Context, req models.CreatePaymentRequest) (*models.Payment, error)
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	ListPaymentsByOrder(ctx context.Context, orderID string) ([]*models.Payment, error)
	Authorize(ctx context.Context, id string, card models.CardDetails, autoCapture bool) (*models.Payment, error)
	Capture(ctx context.Context, id string, amount *decimal.Decimal) (*models.Payment, error)
	Void(ctx context.Context, id string) (*models.Payment, error)
	Refund(ctx context.Context, id string, amount *decimal.Decimal) (*models.Payment, error)
	DeletePaymentMethod(ctx context.Context, id string) error
}

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type Handler struct {
	Service PaymentService
	Health  HealthChecker
	Logger  *logger.Logger
}

func NewHandler(service PaymentService, health HealthChecker, log *logger.Logger) *Handler {
	return &Handler{Service: service, Health: health, Logger: log}
}

// RegisterRoutes mounts the payment routes. Callers wrap r with the auth
// middleware first.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/payments", func(r chi.Router) {
		r.Post("/", h.CreatePayment)
		r.Get("/", h.ListPayments)
		r.Get("/{paymentId}", h.GetPayment)
		r.Post("/{paymentId}/authorize", h.Authorize)
		r.Post("/{paymentId}/capture", h.Capture)
		r.Post("/{paymentId}/void", h.Void)
		r.Post("/{paymentId}/refund", h.Refund)
	})
	r.Delete("/payment-methods/{methodId}", h.DeletePaymentMethod)
}

func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req models.CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("CreatePayment: invalid body: %v", err))
		h.respond(w, r, start, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	p, err := h.Service.CreatePayment(r.Context(), req)
	if err != nil {
		h.fail(w, r, start, err)
		return
	}
	h.respond(w, r, start, http.StatusCreated, utils.SuccessResponse("Payment created", p))
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	p, err := h.Service.GetPayment(r.Context(), chi.URLParam(r, "paymentId"))
	if err != nil {
		h.fail(w, r, start, err)
		return
	}
	h.respond(w, r, start, http.StatusOK, utils.SuccessResponse("Payment retrieved", p))
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	orderID := r.URL.Query().Get("order_id")
	if orderID == "" {
		h.respond(w, r, start, http.StatusBadRequest, utils.ErrorResponse("Invalid request", "order_id query parameter is required"))
		return
	}

	payments, err := h.Service.ListPaymentsByOrder(r.Context(), orderID)
	if err != nil {
		h.fail(w, r, start, err)
		return
	}
	h.respond(w, r, start, http.StatusOK, utils.SuccessResponse("Payments retrieved", payments))
}

func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	paymentID := chi.URLParam(r, "paymentId")

	var req models.AuthorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("Authorize: invalid body for payment %s: %v", paymentID, err))
		h.respond(w, r, start, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("Authorize: payment=%s card=%s auto_capture=%t user=%s", paymentID, req.Card, req.AutoCapture, auth.UserID(r.Context())))

	p, err := h.Service.Authorize(r.Context(), paymentID, req.Card, req.AutoCapture)
	if err != nil {
		h.fail(w, r, start, err)
		return
	}
	h.respond(w, r, start, http.StatusOK, utils.SuccessResponse("Payment authorized", p))
}

func (h *Handler) Capture(w http.ResponseWriter, r *http.Request) {
	h.amountOperation(w, r, "Payment captured", h.Service.Capture)
}

func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	h.amountOperation(w, r, "Payment refunded", h.Service.Refund)
}

func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	p, err := h.Service.Void(r.Context(), chi.URLParam(r, "paymentId"))
	if err != nil {
		h.fail(w, r, start, err)
		return
	}
	h.respond(w, r, start, http.StatusOK, utils.SuccessResponse("Payment voided", p))
}

func (h *Handler) DeletePaymentMethod(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	methodID := chi.URLParam(r, "methodId")
	if err := h.Service.DeletePaymentMethod(r.Context(), methodID); err != nil {
		h.fail(w, r, start, err)
		return
	}
	h.respond(w, r, start, http.StatusOK, utils.SuccessResponse("Payment method deleted", map[string]string{"payment_method_id": methodID}))
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.Health != nil {
		if err := h.Health.HealthCheck(r.Context()); err != nil {
			h.Logger.Error("HEALTH", fmt.Sprintf("Database health check failed: %v", err))
			h.respond(w, r, start, http.StatusServiceUnavailable, utils.ErrorResponse("Service unhealthy", "database unavailable"))
			return
		}
	}
	h.respond(w, r, start, http.StatusOK, utils.SuccessResponse("Service healthy", map[string]string{"status": "ok"}))
}

// amountOperation handles capture and refund, whose body carries an optional
// amount. An empty body means the default amount.
func (h *Handler) amountOperation(w http.ResponseWriter, r *http.Request, message string,
	op func(ctx context.Context, id string, amount *decimal.Decimal) (*models.Payment, error)) {
	start := time.Now()
	paymentID := chi.URLParam(r, "paymentId")

	var req models.AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.Logger.Warn("API", fmt.Sprintf("invalid amount body for payment %s: %v", paymentID, err))
		h.respond(w, r, start, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	p, err := op(r.Context(), paymentID, req.Amount)
	if err != nil {
		h.fail(w, r, start, err)
		return
	}
	h.respond(w, r, start, http.StatusOK, utils.SuccessResponse(message, p))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, start time.Time, err error) {
	status, public := classify(err)
	switch {
	case status >= http.StatusInternalServerError:
		h.Logger.Error("API", fmt.Sprintf("%s %s failed: %v", r.Method, r.URL.Path, err))
	case status == http.StatusPaymentRequired:
		h.Logger.Warn("PAYMENT", fmt.Sprintf("%s %s declined: %v", r.Method, r.URL.Path, err))
	default:
		h.Logger.Warn("API", fmt.Sprintf("%s %s rejected: %v", r.Method, r.URL.Path, err))
	}
	h.respond(w, r, start, status, utils.ErrorResponse(public, http.StatusText(status)))
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, start time.Time, status int, resp utils.APIResponse) {
	if err := utils.WriteJSON(w, status, resp); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
	h.Logger.LogAPI(r.Method, r.URL.Path, status, time.Since(start))
}
