package paycom

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

const hashSeparator = "|"

// FieldOrder is a fixed, named sequence of protocol fields that make up a
// fingerprint. The shared key is always appended last.
type FieldOrder struct {
	Version string
	Fields  []string
}

var (
	// RequestHashFields signs every outbound request.
	RequestHashFields = FieldOrder{
		Version: "request.v1",
		Fields:  []string{FieldOrderID, FieldAmount, FieldTime},
	}

	// ResponseHashFields verifies every inbound response.
	ResponseHashFields = FieldOrder{
		Version: "response.v1",
		Fields: []string{
			FieldOrderID,
			FieldAmount,
			FieldResponse,
			FieldTransactionID,
			FieldAVSResponse,
			FieldCVVResponse,
			FieldTime,
		},
	}
)

// Sign joins values and the secret with "|" in the given order and returns
// the lowercase hex MD5 digest.
func Sign(values []string, secret string) string {
	parts := make([]string, 0, len(values)+1)
	parts = append(parts, values...)
	parts = append(parts, secret)
	sum := md5.Sum([]byte(strings.Join(parts, hashSeparator)))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the fingerprint and compares it with candidate.
func Verify(values []string, secret, candidate string) bool {
	expected := Sign(values, secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(candidate))) == 1
}

// Values picks the fields of the order out of lookup. Missing fields
// stringify as empty.
func (o FieldOrder) Values(lookup func(string) string) []string {
	values := make([]string, len(o.Fields))
	for i, name := range o.Fields {
		values[i] = lookup(name)
	}
	return values
}

// SignFields signs the named fields of lookup in order.
func SignFields(order FieldOrder, lookup func(string) string, secret string) string {
	return Sign(order.Values(lookup), secret)
}
