package security

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("security: hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether the plaintext password matches the hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// DummyHash is a valid bcrypt hash of a random string. Credential checks for
// unknown emails compare against it so that lookups take the same time as a
// real mismatch.
const DummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Password policy bounds.
const (
	PasswordMinLength = 10
	PasswordMaxLength = 128
)

// commonPasswords is a short denylist of passwords rejected outright.
var commonPasswords = map[string]struct{}{
	"password":      {},
	"password1":     {},
	"password123":   {},
	"123456":        {},
	"12345678":      {},
	"123456789":     {},
	"1234567890":    {},
	"qwerty":        {},
	"qwerty123":     {},
	"qwertyuiop":    {},
	"letmein":       {},
	"iloveyou":      {},
	"admin":         {},
	"administrator": {},
	"welcome":       {},
	"welcome1":      {},
	"changeme":      {},
	"passw0rd":      {},
	"p@ssw0rd":      {},
	"secret":        {},
	"dragon":        {},
	"monkey":        {},
	"sunshine":      {},
	"princess":      {},
	"football":      {},
	"baseball":      {},
	"abc123":        {},
	"trustno1":      {},
}

// ValidatePassword enforces the password policy: length bounds, no email or
// username fragments, and a common-password denylist. The returned error
// message is safe to show to the caller.
func ValidatePassword(password, email, username string) error {
	if len(password) < PasswordMinLength {
		return fmt.Errorf("password must be at least %d characters", PasswordMinLength)
	}
	if len(password) > PasswordMaxLength {
		return fmt.Errorf("password must be at most %d characters", PasswordMaxLength)
	}

	lower := strings.ToLower(password)
	if _, ok := commonPasswords[lower]; ok {
		return fmt.Errorf("password is too common")
	}

	for _, fragment := range identityFragments(email, username) {
		if strings.Contains(lower, fragment) {
			return fmt.Errorf("password must not contain your email or username")
		}
	}
	return nil
}

// identityFragments extracts lowercase fragments of the user's identity that
// must not appear in a password. Fragments shorter than 4 characters are
// skipped to avoid rejecting passwords over incidental substrings.
func identityFragments(email, username string) []string {
	var fragments []string
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if len(s) >= 4 {
			fragments = append(fragments, s)
		}
	}

	add(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if at := strings.IndexByte(email, '@'); at > 0 {
		add(email[:at])
	} else {
		add(email)
	}
	return fragments
}
