package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// GenerateCode returns a random numeric code of the given length from a
// cryptographically secure source. Leading zeros are preserved, so the
// result is a string, never an integer.
func GenerateCode(length int) (string, error) {
	if length < 4 || length > 10 {
		return "", fmt.Errorf("unsupported code length: %d", length)
	}

	max := big.NewInt(1)
	for i := 0; i < length; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to draw random code: %w", err)
	}

	return fmt.Sprintf("%0*d", length, n), nil
}
