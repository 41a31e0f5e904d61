// Package notifier defines the fire-and-forget delivery contract for
// security notifications. Delivery failures are the notifier's problem;
// callers never block or retry on it.
package notifier

import "context"

// Notifier delivers account notifications out of band. Implementations must
// not return errors to callers; a failed delivery is logged and dropped.
type Notifier interface {
	// OTPCode delivers a one-time login code over the given channel.
	OTPCode(ctx context.Context, email, channel, code string)
	// PasswordReset delivers a password reset link containing the token.
	PasswordReset(ctx context.Context, email, token string)
	// AccountLocked tells the user their account was locked.
	AccountLocked(ctx context.Context, email string)
	// AccountUnlocked tells the user their account lock expired.
	AccountUnlocked(ctx context.Context, email string)
	// SuspiciousActivity warns the user about repeated failed logins.
	SuspiciousActivity(ctx context.Context, email string)
}
