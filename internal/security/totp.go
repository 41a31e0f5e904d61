package security

import (
	"fmt"

	"github.com/pquerna/otp/totp"
)

// TOTPIssuer is the issuer name shown in authenticator apps.
const TOTPIssuer = "StackPass Identity"

// GenerateTOTPSecret creates a new authenticator-app secret for the account.
// It returns the base32 secret and the otpauth:// provisioning URL.
func GenerateTOTPSecret(account string) (secret, url string, err error) {
	key, errGenerate := totp.Generate(totp.GenerateOpts{
		Issuer:      TOTPIssuer,
		AccountName: account,
	})
	if errGenerate != nil {
		return "", "", fmt.Errorf("security: generate totp secret: %w", errGenerate)
	}
	return key.Secret(), key.URL(), nil
}

// ValidateTOTP reports whether the code is valid for the secret right now.
func ValidateTOTP(secret, code string) bool {
	if secret == "" || code == "" {
		return false
	}
	return totp.Validate(code, secret)
}
