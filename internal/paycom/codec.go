package paycom

import (
	"errors"
	"net/url"
	"strings"
)

// Protocol field names.
const (
	FieldUsername      = "username"
	FieldType          = "type"
	FieldKeyID         = "key_id"
	FieldHash          = "hash"
	FieldTime          = "time"
	FieldCCNumber      = "ccnumber"
	FieldCCExp         = "ccexp"
	FieldAmount        = "amount"
	FieldOrderID       = "orderid"
	FieldCVV           = "cvv"
	FieldTransactionID = "transactionid"
	FieldProcessorID   = "processor_id"

	FieldResponse     = "response"
	FieldResponseCode = "response_code"
	FieldResponseText = "responsetext"
	FieldAVSResponse  = "avsresponse"
	FieldCVVResponse  = "cvvresponse"
)

const ContentTypeForm = "application/x-www-form-urlencoded"

var errEmptyBody = errors.New("empty response body")
var errNoPairs = errors.New("no key=value pairs in response body")

// Params is an ordered set of request fields. Setting an existing key keeps
// its original position.
type Params struct {
	keys   []string
	values map[string]string
}

func NewParams() *Params {
	return &Params{values: make(map[string]string)}
}

func (p *Params) Set(key, value string) *Params {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
	return p
}

func (p *Params) Get(key string) string {
	return p.values[key]
}

func (p *Params) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

// Keys returns the field names in insertion order.
func (p *Params) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

func (p *Params) Len() int { return len(p.keys) }

// Redacted returns a copy of the fields safe for logging.
func (p *Params) Redacted() map[string]string {
	out := make(map[string]string, len(p.keys))
	for _, k := range p.keys {
		v := p.values[k]
		switch k {
		case FieldCCNumber:
			v = MaskPAN(v)
		case FieldCVV, FieldHash:
			v = "***"
		}
		out[k] = v
	}
	return out
}

// Response is the decoded gateway reply.
type Response map[string]string

func (r Response) Get(key string) string { return r[key] }

func (r Response) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// EncodeRequest renders params as a form body, keys in insertion order.
func EncodeRequest(params *Params) []byte {
	var b strings.Builder
	for i, k := range params.keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params.values[k]))
	}
	return []byte(b.String())
}

// DecodeResponse parses the gateway body: one leading sentinel byte followed
// by "&"-joined key=value pairs. Individual malformed pairs are tolerated.
func DecodeResponse(body []byte) (Response, error) {
	if len(body) == 0 {
		return nil, &InvalidResponseError{Reason: "cannot decode", Err: errEmptyBody}
	}

	out := make(Response)
	for _, segment := range strings.Split(string(body[1:]), "&") {
		if segment == "" {
			continue
		}
		key, value, _ := strings.Cut(segment, "=")
		key = unescape(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		out[key] = unescape(value)
	}

	if len(out) == 0 {
		return nil, &InvalidResponseError{Reason: "cannot decode", Err: errNoPairs}
	}
	return out, nil
}

func unescape(s string) string {
	if v, err := url.QueryUnescape(s); err == nil {
		return v
	}
	return s
}

// MaskPAN keeps only the last four digits of a card number.
func MaskPAN(pan string) string {
	if len(pan) <= 4 {
		return strings.Repeat("*", len(pan))
	}
	return strings.Repeat("*", len(pan)-4) + pan[len(pan)-4:]
}
