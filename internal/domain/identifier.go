package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	// AccountNumberPrefix is the fixed routing prefix shared by all wallet accounts.
	AccountNumberPrefix = "2200"
	// AccountNumberSuffixDigits is the width of the random numeric suffix.
	AccountNumberSuffixDigits = 16
)

var suffixSpace = new(big.Int).Exp(big.NewInt(10), big.NewInt(AccountNumberSuffixDigits), nil)

// GenerateAccountNumber produces a candidate public account number: the fixed
// prefix followed by a zero-padded random 16-digit suffix. Uniqueness is not
// checked here; the accounts table enforces it with a unique index and the
// caller retries on collision.
func GenerateAccountNumber() (string, error) {
	n, err := rand.Int(rand.Reader, suffixSpace)
	if err != nil {
		return "", fmt.Errorf("read random suffix: %w", err)
	}
	return fmt.Sprintf("%s%0*d", AccountNumberPrefix, AccountNumberSuffixDigits, n), nil
}
