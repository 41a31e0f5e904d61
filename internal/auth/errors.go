package auth

import "errors"

// Failure taxonomy for the authentication core. Handlers map these to HTTP
// statuses; enumeration-sensitive paths collapse detail before replying.
var (
	// ErrInvalidCredentials covers wrong email and wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked rejects logins during the lockout window. Wrapped
	// errors carry the remaining lockout duration.
	ErrAccountLocked = errors.New("account locked")
	// ErrOTPRequired means the account has 2FA enabled and no code was
	// supplied; a fresh code has been dispatched.
	ErrOTPRequired = errors.New("one-time code required")
	// ErrOTPInvalid means the supplied code does not match.
	ErrOTPInvalid = errors.New("one-time code invalid")
	// ErrOTPExpired means no usable code exists: expired, already used, or
	// over the attempt cap.
	ErrOTPExpired = errors.New("one-time code expired")
	// ErrPendingApproval blocks token issuance for accounts awaiting
	// approval.
	ErrPendingApproval = errors.New("account pending approval")
	// ErrRejected blocks token issuance for rejected accounts.
	ErrRejected = errors.New("account rejected")
	// ErrTokenInvalid covers bad signatures, malformed tokens, and consumed
	// reset tokens.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired covers tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrAccessDenied means a role or ownership check failed.
	ErrAccessDenied = errors.New("access denied")
)

// ValidationError reports a field-level validation failure with a message
// safe to show to the caller.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}
