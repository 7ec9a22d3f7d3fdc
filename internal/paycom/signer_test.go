package paycom_test

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"ms-paycom/internal/paycom"
)

func TestSignMatchesPipeJoinedMD5(t *testing.T) {
	sum := md5.Sum([]byte("order-1|50.00|1700000000|secret"))
	want := hex.EncodeToString(sum[:])

	got := paycom.Sign([]string{"order-1", "50.00", "1700000000"}, "secret")
	assert.Equal(t, want, got)
	assert.Len(t, got, 32)
}

func TestSignIsDeterministic(t *testing.T) {
	values := []string{"a", "b", "c"}
	assert.Equal(t, paycom.Sign(values, "k"), paycom.Sign(values, "k"))
}

func TestVerify(t *testing.T) {
	values := []string{"order-1", "50.00", "1", "123", "", "", "1700000000"}
	hash := paycom.Sign(values, "secret")

	assert.True(t, paycom.Verify(values, "secret", hash))

	t.Run("uppercase candidate", func(t *testing.T) {
		assert.True(t, paycom.Verify(values, "secret", strings.ToUpper(hash)))
	})

	t.Run("any changed field fails", func(t *testing.T) {
		for i := range values {
			changed := append([]string(nil), values...)
			changed[i] = changed[i] + "x"
			assert.False(t, paycom.Verify(changed, "secret", hash), "field %d", i)
		}
	})

	t.Run("reordered fields fail", func(t *testing.T) {
		swapped := append([]string(nil), values...)
		swapped[0], swapped[1] = swapped[1], swapped[0]
		assert.False(t, paycom.Verify(swapped, "secret", hash))
	})

	t.Run("wrong secret fails", func(t *testing.T) {
		assert.False(t, paycom.Verify(values, "other", hash))
	})

	t.Run("empty candidate fails", func(t *testing.T) {
		assert.False(t, paycom.Verify(values, "secret", ""))
	})
}

func TestFieldOrderValuesUsesEmptyForMissing(t *testing.T) {
	fields := map[string]string{"orderid": "o1", "time": "10"}
	values := paycom.RequestHashFields.Values(func(k string) string { return fields[k] })
	assert.Equal(t, []string{"o1", "", "10"}, values)
}
