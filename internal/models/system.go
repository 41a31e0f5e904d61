package models

import "time"

// System is a tenant application registered with the identity service.
type System struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Slug string `gorm:"type:text;not null;uniqueIndex"` // Stable machine name carried in token claims; immutable.
	Name string `gorm:"type:text;not null"`             // Human-readable display name.

	Roles []Role `gorm:"foreignKey:SystemID"` // Roles defined within this system.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
