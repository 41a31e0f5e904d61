package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stackpass/identity/internal/db"
	"github.com/stackpass/identity/internal/models"
	"github.com/stackpass/identity/internal/security"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OTPTTL is how long an issued code stays valid.
const OTPTTL = 5 * time.Minute

// IssueOTP invalidates all prior unused codes for the user+channel and
// persists a fresh 6-digit code, then hands it to the notifier. The
// invalidate-then-create sequence is one transaction so two valid codes can
// never be outstanding.
func (s *Service) IssueOTP(ctx context.Context, user *models.User, channel string) (*models.OTPRecord, error) {
	if channel == "" {
		channel = models.OTPChannelEmail
	}
	code, errCode := security.RandomOTPCode()
	if errCode != nil {
		return nil, errCode
	}

	now := s.now().UTC()
	record := models.OTPRecord{
		UserID:      user.ID,
		Code:        code,
		Channel:     channel,
		ExpiresAt:   now.Add(OTPTTL),
		MaxAttempts: models.OTPMaxAttempts,
		CreatedAt:   now,
	}

	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errInvalidate := tx.Model(&models.OTPRecord{}).
			Where("user_id = ? AND channel = ? AND is_used = ?", user.ID, channel, false).
			Update("is_used", true).Error; errInvalidate != nil {
			return fmt.Errorf("auth: invalidate prior otp codes: %w", errInvalidate)
		}
		if errCreate := tx.Create(&record).Error; errCreate != nil {
			return fmt.Errorf("auth: create otp record: %w", errCreate)
		}
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}

	s.notifier.OTPCode(ctx, user.Email, channel, code)
	return &record, nil
}

// VerifyOTP checks a code against the user's most recent valid record. An
// attempt is consumed before the comparison, even when the code mismatches;
// that is the rate limit on guessing. On success the record is marked used.
// The verdict is carried outside the closure so a rejected guess still
// commits its consumed attempt.
func (s *Service) VerifyOTP(ctx context.Context, userID uint64, code string) error {
	now := s.now().UTC()

	var verdict error
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.OTPRecord
		q := tx.Where("user_id = ? AND is_used = ? AND expires_at > ?", userID, false, now).
			Order("created_at DESC")
		if !db.IsSQLite(tx) {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if errFind := q.First(&record).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				verdict = ErrOTPExpired
				return nil
			}
			return fmt.Errorf("auth: find otp record: %w", errFind)
		}

		record.Attempts++
		if errSave := tx.Model(&models.OTPRecord{}).Where("id = ?", record.ID).
			Update("attempts", record.Attempts).Error; errSave != nil {
			return fmt.Errorf("auth: consume otp attempt: %w", errSave)
		}
		if record.Attempts > record.MaxAttempts {
			verdict = ErrOTPExpired
			return nil
		}
		if record.Code != code {
			verdict = ErrOTPInvalid
			return nil
		}

		if errUse := tx.Model(&models.OTPRecord{}).Where("id = ?", record.ID).
			Update("is_used", true).Error; errUse != nil {
			return fmt.Errorf("auth: mark otp used: %w", errUse)
		}
		return nil
	})
	if errTx != nil {
		return errTx
	}
	return verdict
}
