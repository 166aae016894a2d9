package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// GenerateCode returns a random six digit one-time code in [100000, 999999].
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", 100000+n.Int64()), nil
}
