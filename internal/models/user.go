package models

import (
	"time"

	"gorm.io/datatypes"
)

// User account status values gating login for approval-gated systems.
const (
	UserStatusPending  = "pending"
	UserStatusApproved = "approved"
	UserStatusRejected = "rejected"
)

// User represents an end-user account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Email    string `gorm:"type:text;not null;uniqueIndex"` // Normalized (lowercase) email address.
	Username string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	FailedAttempts   int        `gorm:"not null;default:0"`     // Consecutive failed login attempts.
	IsLocked         bool       `gorm:"not null;default:false"` // Whether the account is locked out.
	LockoutStartedAt *time.Time ``                              // When the current lockout began; nil unless IsLocked.

	OTPEnabled bool   `gorm:"not null;default:false"` // Whether login requires a one-time code.
	TOTPSecret string `gorm:"type:text"`              // Confirmed authenticator-app secret, empty if unenrolled.

	IsSuperuser bool   `gorm:"not null;default:false"`                // Bypasses all system-scoped checks.
	Status      string `gorm:"type:text;not null;default:'approved'"` // pending/approved/rejected approval state.
	Active      bool   `gorm:"not null"`                              // Whether the user can sign in at all.

	Profile datatypes.JSON `gorm:"type:jsonb"` // Free-form profile attributes (department, phone, ...).

	Assignments []UserSystemRole `gorm:"foreignKey:UserID"` // Related role assignments.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
