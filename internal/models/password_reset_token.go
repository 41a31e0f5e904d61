package models

import "time"

// PasswordResetToken is a single-use token mailed to a user who forgot
// their password. Issuing a new token invalidates all prior unused ones.
type PasswordResetToken struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`                 // Owning user.
	Token  string `gorm:"type:text;not null;uniqueIndex"` // Random opaque token (hex).

	ExpiresAt time.Time ``                              // Hard expiry.
	IsUsed    bool      `gorm:"not null;default:false"` // Consumed or invalidated.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
