package models

import "time"

// Delivery channels for one-time codes.
const (
	OTPChannelEmail = "email"
	OTPChannelSMS   = "sms"
)

// OTPMaxAttempts is how many verification attempts a single code allows.
const OTPMaxAttempts = 3

// OTPRecord is a single-use login code delivered out of band. At most one
// unused record per user and channel is valid at a time.
type OTPRecord struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID  uint64 `gorm:"not null;index"`     // Owning user.
	Code    string `gorm:"type:text;not null"` // The 6-digit code.
	Channel string `gorm:"type:text;not null"` // Delivery channel (email/sms).

	ExpiresAt   time.Time ``                              // Hard expiry regardless of attempts.
	IsUsed      bool      `gorm:"not null;default:false"` // Consumed or invalidated.
	Attempts    int       `gorm:"not null;default:0"`     // Verification attempts consumed so far.
	MaxAttempts int       `gorm:"not null"`               // Attempt budget for this code.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
