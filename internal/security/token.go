package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTypeRefresh marks refresh tokens in the token_type claim. Access
// tokens omit the claim.
const TokenTypeRefresh = "refresh"

// Token parse failures, distinguished so callers can report expiry.
var (
	ErrTokenInvalid = errors.New("security: token invalid")
	ErrTokenExpired = errors.New("security: token expired")
)

// RoleClaim is one (system, role) entry embedded in an access token.
type RoleClaim struct {
	System string `json:"system"` // System slug.
	Role   string `json:"role"`   // Role name within that system.
}

// Claims is the claim set carried by issued tokens. Access tokens carry the
// full set; refresh tokens carry identity and token_type but no roles.
type Claims struct {
	Email     string      `json:"email"`
	Username  string      `json:"username"`
	UserID    uint64      `json:"user_id"`
	Roles     []RoleClaim `json:"roles,omitempty"`
	TokenType string      `json:"token_type,omitempty"`
	Epoch     int64       `json:"epoch,omitempty"`
	jwt.RegisteredClaims
}

// IsRefresh reports whether the claims belong to a refresh token.
func (c *Claims) IsRefresh() bool {
	return c != nil && c.TokenType == TokenTypeRefresh
}

// SignToken signs the claims with HS256, stamping exp/iat from now and ttl.
func SignToken(secret string, claims Claims, ttl time.Duration, now time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", fmt.Errorf("security: empty signing secret")
	}
	claims.Subject = claims.Email
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("security: sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates signature and expiry and returns the claims.
func ParseToken(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
