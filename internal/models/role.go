package models

import "time"

// RoleAdmin is the protected per-system role that grants management rights
// over the owning system.
const RoleAdmin = "Admin"

// Role is a named permission level scoped to one system.
type Role struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	SystemID uint64 `gorm:"not null;uniqueIndex:idx_roles_system_name"`           // Owning system.
	Name     string `gorm:"type:text;not null;uniqueIndex:idx_roles_system_name"` // Role name, unique per system.

	IsDefault bool `gorm:"not null;default:false"` // Created with the system; protected from rename and deletion.

	System *System `gorm:"foreignKey:SystemID"` // Owning system record.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
