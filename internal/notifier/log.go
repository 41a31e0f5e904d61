package notifier

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// LogNotifier records notification events without delivering anything. It is
// the default when no mail transport is configured. Codes and tokens are
// never written to the log.
type LogNotifier struct{}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// OTPCode logs that a code was issued; the code itself is omitted.
func (n *LogNotifier) OTPCode(_ context.Context, email, channel, _ string) {
	log.WithFields(log.Fields{"email": email, "channel": channel}).Info("otp code issued")
}

// PasswordReset logs that a reset link was issued; the token is omitted.
func (n *LogNotifier) PasswordReset(_ context.Context, email, _ string) {
	log.WithField("email", email).Info("password reset link issued")
}

// AccountLocked logs a lockout notification.
func (n *LogNotifier) AccountLocked(_ context.Context, email string) {
	log.WithField("email", email).Warn("account locked notification")
}

// AccountUnlocked logs an unlock notification.
func (n *LogNotifier) AccountUnlocked(_ context.Context, email string) {
	log.WithField("email", email).Info("account unlocked notification")
}

// SuspiciousActivity logs a suspicious-activity notification.
func (n *LogNotifier) SuspiciousActivity(_ context.Context, email string) {
	log.WithField("email", email).Warn("suspicious activity notification")
}
