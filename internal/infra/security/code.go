package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// GenerateNumericCode produces a random code of the given number of decimal
// digits, zero-padded. Digits must be between 4 and 10.
func GenerateNumericCode(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", fmt.Errorf("security: code length %d out of range", digits)
	}

	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("security: generate code: %w", err)
	}

	return fmt.Sprintf("%0*d", digits, n), nil
}
