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

// Lockout state machine parameters.
const (
	// LockoutThreshold is the failed-attempt count that locks the account.
	LockoutThreshold = 5
	// LockoutWindow is how long a locked account rejects all attempts.
	LockoutWindow = 15 * time.Minute
	// SuspiciousThreshold is the failed-attempt count that triggers a
	// non-blocking warning notification.
	SuspiciousThreshold = 3
)

// lockoutEvent is a notification decided inside the transaction and fired
// after commit.
type lockoutEvent int

const (
	eventNone lockoutEvent = iota
	eventLocked
	eventUnlocked
	eventSuspicious
)

// VerifyCredentials validates email+password and drives the lockout state
// machine: Unlocked -> (failures >= threshold) -> Locked -> (window elapses,
// checked lazily on the next attempt) -> Unlocked. All counter mutations
// happen inside one transaction with a row lock so concurrent guesses cannot
// race past the threshold. The verdict is carried outside the closure: a
// rejected login must still commit its counter update, so the closure only
// returns an error when the write itself failed.
func (s *Service) VerifyCredentials(ctx context.Context, email, password string) (*models.User, error) {
	email = NormalizeEmail(email)
	now := s.now().UTC()

	var user models.User
	var events []lockoutEvent
	var verdict error

	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("email = ?", email)
		if !db.IsSQLite(tx) {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if errFind := q.First(&user).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				// Burn a hash comparison so unknown emails cost the same
				// as a wrong password.
				security.VerifyPassword(security.DummyHash, password)
				verdict = ErrInvalidCredentials
				return nil
			}
			return fmt.Errorf("auth: find user: %w", errFind)
		}

		if !user.Active {
			security.VerifyPassword(security.DummyHash, password)
			verdict = ErrInvalidCredentials
			return nil
		}

		if user.IsLocked {
			if user.LockoutStartedAt == nil || now.Sub(*user.LockoutStartedAt) >= LockoutWindow {
				user.FailedAttempts = 0
				user.IsLocked = false
				user.LockoutStartedAt = nil
				events = append(events, eventUnlocked)
			} else {
				remaining := LockoutWindow - now.Sub(*user.LockoutStartedAt)
				verdict = fmt.Errorf("%w: try again in %s", ErrAccountLocked, remaining.Round(time.Second))
				return nil
			}
		}

		if !security.VerifyPassword(user.Password, password) {
			user.FailedAttempts++
			if user.FailedAttempts >= LockoutThreshold {
				lockedAt := now
				user.IsLocked = true
				user.LockoutStartedAt = &lockedAt
				events = append(events, eventLocked)
			} else if user.FailedAttempts >= SuspiciousThreshold {
				events = append(events, eventSuspicious)
			}
			verdict = ErrInvalidCredentials
			return s.persistLockout(tx, &user, now)
		}

		user.FailedAttempts = 0
		user.IsLocked = false
		user.LockoutStartedAt = nil
		return s.persistLockout(tx, &user, now)
	})
	if errTx != nil {
		return nil, errTx
	}

	s.fireLockoutEvents(ctx, email, events)
	if verdict != nil {
		return nil, verdict
	}
	return &user, nil
}

// persistLockout writes the lockout fields back to the user row.
func (s *Service) persistLockout(tx *gorm.DB, user *models.User, now time.Time) error {
	updates := map[string]any{
		"failed_attempts":    user.FailedAttempts,
		"is_locked":          user.IsLocked,
		"lockout_started_at": user.LockoutStartedAt,
		"updated_at":         now,
	}
	if errSave := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; errSave != nil {
		return fmt.Errorf("auth: persist lockout state: %w", errSave)
	}
	return nil
}

// fireLockoutEvents delivers notifications decided during the transaction.
// The events are committed state by the time they fire.
func (s *Service) fireLockoutEvents(ctx context.Context, email string, events []lockoutEvent) {
	for _, event := range events {
		switch event {
		case eventLocked:
			s.notifier.AccountLocked(ctx, email)
		case eventUnlocked:
			s.notifier.AccountUnlocked(ctx, email)
		case eventSuspicious:
			s.notifier.SuspiciousActivity(ctx, email)
		}
	}
}

// Unlock resets the lockout state machine for a user. Used by the admin
// unlock action.
func (s *Service) Unlock(ctx context.Context, userID uint64) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
		"failed_attempts":    0,
		"is_locked":          false,
		"lockout_started_at": nil,
		"updated_at":         s.now().UTC(),
	})
	if res.Error != nil {
		return fmt.Errorf("auth: unlock user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
