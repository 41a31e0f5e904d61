package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/stackpass/identity/internal/models"
	"gorm.io/gorm"
)

// Migrate runs database migrations and seeds protected roles.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite, DialectPostgres, "":
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.System{},
		&models.Role{},
		&models.User{},
		&models.UserSystemRole{},
		&models.OTPRecord{},
		&models.PasswordResetToken{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	if errSeed := ensureDefaultAdminRoles(conn); errSeed != nil {
		return errSeed
	}
	return nil
}

// ensureDefaultAdminRoles backfills the protected Admin role for any system
// created before the invariant was enforced transactionally.
func ensureDefaultAdminRoles(conn *gorm.DB) error {
	var systems []models.System
	if errFind := conn.Find(&systems).Error; errFind != nil {
		return fmt.Errorf("db: list systems: %w", errFind)
	}
	for _, system := range systems {
		var role models.Role
		errFind := conn.Where("system_id = ? AND name = ?", system.ID, models.RoleAdmin).First(&role).Error
		if errFind == nil {
			continue
		}
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return fmt.Errorf("db: find admin role: %w", errFind)
		}
		now := time.Now().UTC()
		role = models.Role{
			SystemID:  system.ID,
			Name:      models.RoleAdmin,
			IsDefault: true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if errCreate := conn.Create(&role).Error; errCreate != nil {
			return fmt.Errorf("db: seed admin role: %w", errCreate)
		}
	}
	return nil
}
