package paycom

import "fmt"

const (
	ResponseApproved = "1"
	ResponseDeclined = "2"
	ResponseError    = "3"

	ResponseCodeSuccess = "100"
)

// Validate checks a decoded response against the protocol rules, in order:
// response flag, AVS/CVV, response_code, and finally the fingerprint. Any
// failure means the payment must not be touched.
func Validate(resp Response, secret string) error {
	flag, ok := resp[FieldResponse]
	if !ok {
		return &InvalidResponseError{Reason: "response value not found"}
	}
	switch flag {
	case ResponseDeclined:
		return &DeclineError{Reason: "denied transaction"}
	case ResponseError:
		return &AuthenticationError{Reason: "data error in the transaction or system error"}
	case ResponseApproved:
	default:
		return &InvalidResponseError{Reason: fmt.Sprintf("unknown response value %q", flag)}
	}

	if code := resp[FieldAVSResponse]; code != "" {
		return &DeclineError{Reason: "AVS response error", Code: code}
	}
	if code := resp[FieldCVVResponse]; code != "" {
		return &DeclineError{Reason: "CVV response error", Code: code}
	}

	code, ok := resp[FieldResponseCode]
	if !ok {
		return &InvalidResponseError{Reason: "response code value not found"}
	}
	if code != ResponseCodeSuccess {
		return &DeclineError{Reason: "denied transaction", Code: code}
	}

	if !Verify(ResponseHashFields.Values(resp.Get), secret, resp[FieldHash]) {
		return &InvalidResponseError{Reason: "hash cannot be verified"}
	}
	return nil
}

// SignResponse computes the fingerprint a genuine gateway would attach to
// resp. Used by the gateway simulator and tests.
func SignResponse(resp Response, secret string) string {
	return SignFields(ResponseHashFields, resp.Get, secret)
}
