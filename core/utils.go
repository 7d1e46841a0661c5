package core

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

const (
	digits       = "0123456789"
	alphanumeric = "abcdefghijkmnpqrstuvwxyzACDEFGHJKLMNPQRSTUVWXYZ23456789" // ambiguous chars left out
)

// RandomCode returns a fixed-length numeric code; crypto/rand backed.
func RandomCode(length int) string {
	return randomFrom(digits, length)
}

// RandomString returns a fixed-length alphanumeric string; crypto/rand backed.
func RandomString(length int) string {
	return randomFrom(alphanumeric, length)
}

func randomFrom(alphabet string, length int) string {
	var sb strings.Builder
	sb.Grow(length)
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err) // crypto/rand failure is not recoverable
		}
		sb.WriteByte(alphabet[n.Int64()])
	}
	return sb.String()
}
