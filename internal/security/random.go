package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// RandomOTPCode returns a cryptographically random 6-digit numeric code.
func RandomOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("security: otp code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// RandomToken returns a hex-encoded token built from n random bytes.
func RandomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("security: random token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
