package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/stackpass/identity/internal/auth"
	"github.com/stackpass/identity/internal/config"
	"github.com/stackpass/identity/internal/models"
	"github.com/stackpass/identity/internal/security"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// HasSuperuser reports whether at least one superuser account exists.
func HasSuperuser(conn *gorm.DB) (bool, error) {
	if conn == nil {
		return false, fmt.Errorf("nil db")
	}
	if !conn.Migrator().HasTable(&models.User{}) {
		return false, nil
	}
	var count int64
	if errCount := conn.Model(&models.User{}).
		Where("is_superuser = ?", true).
		Count(&count).Error; errCount != nil {
		return false, errCount
	}
	return count > 0, nil
}

// EnsureBootstrapSuperuser creates the first superuser from the bootstrap
// config when no superuser exists yet. It is a no-op once one does, so the
// credentials can stay in the environment across restarts.
func EnsureBootstrapSuperuser(conn *gorm.DB, cfg config.BootstrapConfig) error {
	exists, errCheck := HasSuperuser(conn)
	if errCheck != nil {
		return errCheck
	}
	if exists {
		return nil
	}

	email := auth.NormalizeEmail(cfg.Email)
	if email == "" || strings.TrimSpace(cfg.Password) == "" {
		log.Warnf("no superuser exists and no bootstrap credentials configured (set %s and %s)",
			config.EnvBootstrapEmail, config.EnvBootstrapPassword)
		return nil
	}

	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		if at := strings.IndexByte(email, '@'); at > 0 {
			username = email[:at]
		} else {
			username = email
		}
	}

	hash, errHash := security.HashPassword(cfg.Password)
	if errHash != nil {
		return fmt.Errorf("hash bootstrap password: %w", errHash)
	}

	now := time.Now().UTC()
	user := models.User{
		Email:       email,
		Username:    username,
		Password:    hash,
		IsSuperuser: true,
		Status:      models.UserStatusApproved,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		return fmt.Errorf("create bootstrap superuser: %w", errCreate)
	}
	log.WithField("email", email).Info("bootstrap superuser created")
	return nil
}
