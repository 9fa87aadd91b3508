package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const digits = 6

var max = big.NewInt(1000000) // exclusive upper bound: codes span 000000-999999

// New generates a 6-digit numeric one-time code, uniformly distributed
// and zero-padded, from crypto/rand.
func New() (string, error) {
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}
