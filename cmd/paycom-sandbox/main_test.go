package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ms-paycom/internal/paycom"
	"ms-paycom/internal/paycom/paycomtest"
)

func TestEnvOr(t *testing.T) {
	t.Setenv("PAYCOM_SANDBOX_TEST_KEY", "")
	assert.Equal(t, "sandbox-key", envOr("PAYCOM_SANDBOX_TEST_KEY", "sandbox-key"))

	t.Setenv("PAYCOM_SANDBOX_TEST_KEY", "merchant-key")
	assert.Equal(t, "merchant-key", envOr("PAYCOM_SANDBOX_TEST_KEY", "sandbox-key"))
}

func TestRouteByCardSuffix(t *testing.T) {
	g := paycomtest.NewGateway("k")
	cases := map[string]string{
		"4111111111111111": paycom.ResponseApproved,
		"4000000000000002": paycom.ResponseDeclined,
		"4000000000000119": paycom.ResponseError,
	}
	for card, want := range cases {
		resp := route(g, map[string]string{paycom.FieldCCNumber: card, paycom.FieldAmount: "1.00"})
		assert.Equal(t, want, resp[paycom.FieldResponse], card)
	}
}
