package utils

import (
	"github.com/google/uuid"
)

// GeneratePaymentID returns a new payment identifier.
func GeneratePaymentID() string {
	return "pay_" + uuid.NewString()
}

// GeneratePaymentMethodID returns a new payment method identifier.
func GeneratePaymentMethodID() string {
	return "pm_" + uuid.NewString()
}

// GenerateUUID creates a random UUID v4
func GenerateUUID() string {
	return uuid.NewString()
}
