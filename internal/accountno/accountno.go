// Package accountno issues member account numbers: nine random digits
// followed by a Luhn check digit.
package accountno

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/ShiraazMoollatjie/goluhn"
)

const prefixLength = 9

func Generate() (string, error) {
	prefix := make([]byte, prefixLength)
	for i := range prefix {
		lower, span := int64(0), int64(10)
		if i == 0 {
			lower, span = 1, 9
		}
		n, err := rand.Int(rand.Reader, big.NewInt(span))
		if err != nil {
			return "", fmt.Errorf("generate account number: %w", err)
		}
		prefix[i] = byte('0' + lower + n.Int64())
	}
	_, number, err := goluhn.Calculate(string(prefix))
	if err != nil {
		return "", fmt.Errorf("calculate check digit: %w", err)
	}
	return number, nil
}
