package models

import "time"

// UserSystemRole grants a user one role within one system. The triple is
// unique; re-granting reactivates the existing row.
type UserSystemRole struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID   uint64 `gorm:"not null;uniqueIndex:idx_usr_user_system_role"` // Grantee.
	SystemID uint64 `gorm:"not null;uniqueIndex:idx_usr_user_system_role"` // System the grant applies to.
	RoleID   uint64 `gorm:"not null;uniqueIndex:idx_usr_user_system_role"` // Granted role.

	IsActive   bool      `gorm:"not null;default:true"` // Inactive grants are ignored everywhere.
	AssignedAt time.Time `gorm:"not null"`              // When the grant was (last) made.

	System *System `gorm:"foreignKey:SystemID"` // Related system record.
	Role   *Role   `gorm:"foreignKey:RoleID"`   // Related role record.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
