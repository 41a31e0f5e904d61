package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stackpass/identity/internal/models"
	"github.com/stackpass/identity/internal/security"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Password reset parameters.
const (
	// ResetTokenTTL is how long a reset token stays valid.
	ResetTokenTTL = time.Hour
	// resetTokenBytes sizes the random token (hex-encoded to 64 chars).
	resetTokenBytes = 32
)

// RequestPasswordReset issues a reset token for the email if it belongs to
// an active account. It always reports success to the caller; whether the
// email exists is only visible in the server log.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = NormalizeEmail(email)

	var user models.User
	if errFind := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			log.WithField("email", email).Info("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("auth: find user for reset: %w", errFind)
	}
	if !user.Active {
		log.WithField("email", email).Info("password reset requested for inactive account")
		return nil
	}

	token, errToken := security.RandomToken(resetTokenBytes)
	if errToken != nil {
		return errToken
	}

	now := s.now().UTC()
	record := models.PasswordResetToken{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: now.Add(ResetTokenTTL),
		CreatedAt: now,
	}

	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errInvalidate := tx.Model(&models.PasswordResetToken{}).
			Where("user_id = ? AND is_used = ?", user.ID, false).
			Update("is_used", true).Error; errInvalidate != nil {
			return fmt.Errorf("auth: invalidate prior reset tokens: %w", errInvalidate)
		}
		if errCreate := tx.Create(&record).Error; errCreate != nil {
			return fmt.Errorf("auth: create reset token: %w", errCreate)
		}
		return nil
	})
	if errTx != nil {
		return errTx
	}

	s.notifier.PasswordReset(ctx, user.Email, token)
	return nil
}

// ResetPassword consumes a reset token and sets a new password. The token
// must exist, be unused, and be unexpired; the new password must pass
// policy. Outstanding OTP codes are invalidated and the revocation epoch is
// bumped so credentials minted before the reset stop verifying where a
// denylist is configured.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	now := s.now().UTC()

	var userID uint64
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.PasswordResetToken
		if errFind := tx.Where("token = ?", token).First(&record).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrTokenInvalid
			}
			return fmt.Errorf("auth: find reset token: %w", errFind)
		}
		if record.IsUsed || now.After(record.ExpiresAt) {
			return ErrTokenInvalid
		}

		var user models.User
		if errUser := tx.First(&user, record.UserID).Error; errUser != nil {
			return fmt.Errorf("auth: load user for reset: %w", errUser)
		}

		if errPolicy := security.ValidatePassword(newPassword, user.Email, user.Username); errPolicy != nil {
			return &ValidationError{Field: "password", Message: errPolicy.Error()}
		}

		hash, errHash := security.HashPassword(newPassword)
		if errHash != nil {
			return errHash
		}

		if errSave := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
			"password":   hash,
			"updated_at": now,
		}).Error; errSave != nil {
			return fmt.Errorf("auth: set password: %w", errSave)
		}
		if errUse := tx.Model(&models.PasswordResetToken{}).Where("id = ?", record.ID).
			Update("is_used", true).Error; errUse != nil {
			return fmt.Errorf("auth: mark reset token used: %w", errUse)
		}
		if errOTP := tx.Model(&models.OTPRecord{}).
			Where("user_id = ? AND is_used = ?", user.ID, false).
			Update("is_used", true).Error; errOTP != nil {
			return fmt.Errorf("auth: invalidate otp codes: %w", errOTP)
		}

		userID = user.ID
		return nil
	})
	if errTx != nil {
		return errTx
	}

	s.Revoke(ctx, userID)
	return nil
}
