package paycom_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-paycom/internal/paycom"
)

const testKey = "shared-secret"

func approvedResponse() paycom.Response {
	resp := paycom.Response{
		"response":      "1",
		"responsetext":  "SUCCESS",
		"response_code": "100",
		"orderid":       "order-1",
		"amount":        "50.00",
		"transactionid": "123456",
		"avsresponse":   "",
		"cvvresponse":   "",
		"time":          "1700000000",
	}
	resp["hash"] = paycom.SignResponse(resp, testKey)
	return resp
}

func TestValidateApproved(t *testing.T) {
	assert.NoError(t, paycom.Validate(approvedResponse(), testKey))
}

func TestValidateDetectsTampering(t *testing.T) {
	for _, field := range []string{"orderid", "amount", "transactionid", "time"} {
		t.Run(field, func(t *testing.T) {
			resp := approvedResponse()
			resp[field] = resp[field] + "0"

			err := paycom.Validate(resp, testKey)
			require.Error(t, err)
			assert.ErrorIs(t, err, paycom.ErrInvalidResponse)
		})
	}
}

func TestValidateWrongKey(t *testing.T) {
	err := paycom.Validate(approvedResponse(), "other-key")
	assert.ErrorIs(t, err, paycom.ErrInvalidResponse)
}

func TestValidateMissingHash(t *testing.T) {
	resp := approvedResponse()
	delete(resp, "hash")
	assert.ErrorIs(t, paycom.Validate(resp, testKey), paycom.ErrInvalidResponse)
}

func TestValidateDeclineIgnoresResponseCode(t *testing.T) {
	for _, code := range []string{"100", "200", ""} {
		resp := approvedResponse()
		resp["response"] = "2"
		resp["response_code"] = code

		err := paycom.Validate(resp, testKey)

		var decline *paycom.DeclineError
		require.True(t, errors.As(err, &decline), "code %q: %v", code, err)
		assert.ErrorIs(t, err, paycom.ErrDeclined)
		assert.True(t, paycom.IsBusinessError(err))
	}
}

func TestValidateSystemError(t *testing.T) {
	resp := approvedResponse()
	resp["response"] = "3"

	err := paycom.Validate(resp, testKey)

	var authErr *paycom.AuthenticationError
	require.True(t, errors.As(err, &authErr))
	assert.True(t, paycom.IsBusinessError(err))
}

func TestValidateUnknownResponseValue(t *testing.T) {
	for _, flag := range []string{"0", "4", ""} {
		t.Run("response="+flag, func(t *testing.T) {
			resp := approvedResponse()
			resp["response"] = flag
			resp["hash"] = paycom.SignResponse(resp, testKey)

			err := paycom.Validate(resp, testKey)
			assert.ErrorIs(t, err, paycom.ErrInvalidResponse)
			assert.False(t, paycom.IsBusinessError(err))
		})
	}
}

func TestValidateMissingResponse(t *testing.T) {
	resp := approvedResponse()
	delete(resp, "response")

	err := paycom.Validate(resp, testKey)
	assert.ErrorIs(t, err, paycom.ErrInvalidResponse)
	assert.False(t, paycom.IsBusinessError(err))
}

func TestValidateAVSAndCVV(t *testing.T) {
	for _, field := range []string{"avsresponse", "cvvresponse"} {
		t.Run(field, func(t *testing.T) {
			resp := approvedResponse()
			resp[field] = "N"
			resp["hash"] = paycom.SignResponse(resp, testKey)

			err := paycom.Validate(resp, testKey)

			var decline *paycom.DeclineError
			require.True(t, errors.As(err, &decline))
			assert.Equal(t, "N", decline.Code)
		})
	}
}

func TestValidateResponseCode(t *testing.T) {
	t.Run("not success", func(t *testing.T) {
		resp := approvedResponse()
		resp["response_code"] = "220"

		err := paycom.Validate(resp, testKey)

		var decline *paycom.DeclineError
		require.True(t, errors.As(err, &decline))
		assert.Equal(t, "220", decline.Code)
	})

	t.Run("missing", func(t *testing.T) {
		resp := approvedResponse()
		delete(resp, "response_code")
		assert.ErrorIs(t, paycom.Validate(resp, testKey), paycom.ErrInvalidResponse)
	})
}
