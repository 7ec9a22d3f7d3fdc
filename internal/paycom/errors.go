package paycom

import (
	"errors"
	"fmt"
)

var (
	ErrTransport       = errors.New("paycom transport error")
	ErrInvalidResponse = errors.New("paycom invalid response")
	ErrDeclined        = errors.New("paycom transaction declined")
	ErrAuthentication  = errors.New("paycom authentication error")
)

// TransportError means no gateway opinion is available: the request never
// completed or came back with a non-2xx status.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("paycom transport error: %s returned status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("paycom transport error: %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// InvalidResponseError means the response was malformed or could not be
// verified against the shared key.
type InvalidResponseError struct {
	Reason string
	Err    error
}

func (e *InvalidResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("paycom invalid response: %s: %v", e.Reason, e.Err)
	}
	return "paycom invalid response: " + e.Reason
}

func (e *InvalidResponseError) Unwrap() error { return e.Err }

func (e *InvalidResponseError) Is(target error) bool { return target == ErrInvalidResponse }

// DeclineError is an explicit refusal by the gateway. Code carries the
// response_code, AVS or CVV code when one was returned.
type DeclineError struct {
	Reason string
	Code   string
}

func (e *DeclineError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("paycom declined: %s (code %s)", e.Reason, e.Code)
	}
	return "paycom declined: " + e.Reason
}

func (e *DeclineError) Is(target error) bool { return target == ErrDeclined }

// AuthenticationError is a credential or system level rejection (response=3).
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return "paycom authentication error: " + e.Reason
}

func (e *AuthenticationError) Is(target error) bool { return target == ErrAuthentication }

// IsBusinessError reports whether err is a gateway decision that can be shown
// to the customer in generic form.
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrDeclined) || errors.Is(err, ErrAuthentication)
}
