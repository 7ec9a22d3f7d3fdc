package api

import (
	"errors"
	"net/http"

	"ms-paycom/internal/paycom"
	"ms-paycom/internal/payment"
	"ms-paycom/internal/payment/storage"
)

const (
	declineMessage    = "We encountered an error processing your payment method. Please verify your details and try again."
	unexpectedMessage = "We encountered an unexpected error processing your payment method. Please try again later."
)

// classify maps a service error to a status code and the message safe to
// show the caller. Gateway detail never leaves the logs.
func classify(err error) (int, string) {
	var cardErr *payment.InvalidCardError
	switch {
	case errors.As(err, &cardErr):
		return http.StatusBadRequest, cardErr.Error()
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "Resource not found"
	case errors.Is(err, payment.ErrPaymentLocked):
		return http.StatusLocked, "Payment is being processed, try again shortly"
	case errors.Is(err, payment.ErrInvalidState):
		return http.StatusConflict, err.Error()
	case errors.Is(err, payment.ErrInvalidRefundAmount),
		errors.Is(err, payment.ErrInvalidCaptureAmount),
		errors.Is(err, payment.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, err.Error()
	case paycom.IsBusinessError(err):
		return http.StatusPaymentRequired, declineMessage
	case errors.Is(err, paycom.ErrTransport), errors.Is(err, paycom.ErrInvalidResponse):
		return http.StatusBadGateway, unexpectedMessage
	}
	return http.StatusInternalServerError, "Internal server error"
}
