package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stackpass/identity/internal/models"
)

func failLogin(t *testing.T, service *Service, email string, times int) {
	t.Helper()
	for i := 0; i < times; i++ {
		_, errVerify := service.VerifyCredentials(context.Background(), email, "definitely-wrong")
		if !errors.Is(errVerify, ErrInvalidCredentials) && !errors.Is(errVerify, ErrAccountLocked) {
			t.Fatalf("attempt %d: unexpected error %v", i+1, errVerify)
		}
	}
}

func TestLockout_ThresholdLocksAccount(t *testing.T) {
	service, conn, capture := newTestService(t)
	createUser(t, conn, "alice@example.com", "correct-horse-battery")

	failLogin(t, service, "alice@example.com", LockoutThreshold)

	var user models.User
	if errFind := conn.Where("email = ?", "alice@example.com").First(&user).Error; errFind != nil {
		t.Fatalf("reload user: %v", errFind)
	}
	if !user.IsLocked {
		t.Fatal("expected account to be locked after threshold failures")
	}
	if user.LockoutStartedAt == nil {
		t.Fatal("expected lockout start time to be set")
	}
	if len(capture.locked) != 1 {
		t.Fatalf("expected one lock notification, got %d", len(capture.locked))
	}
	if len(capture.suspicious) == 0 {
		t.Fatal("expected a suspicious-activity warning before the lock")
	}
}

func TestLockout_FailedAttemptsPersistAcrossCalls(t *testing.T) {
	service, conn, _ := newTestService(t)
	createUser(t, conn, "alice@example.com", "correct-horse-battery")

	failLogin(t, service, "alice@example.com", 2)

	// Each rejected login must leave its counter update behind, otherwise
	// the threshold is never reached.
	var user models.User
	if errFind := conn.Where("email = ?", "alice@example.com").First(&user).Error; errFind != nil {
		t.Fatalf("reload user: %v", errFind)
	}
	if user.FailedAttempts != 2 {
		t.Fatalf("expected 2 recorded failures, got %d", user.FailedAttempts)
	}
	if user.IsLocked {
		t.Fatal("two failures must not lock the account")
	}
}

func TestLockout_CorrectPasswordRejectedWhileLocked(t *testing.T) {
	service, conn, _ := newTestService(t)
	createUser(t, conn, "alice@example.com", "correct-horse-battery")

	failLogin(t, service, "alice@example.com", LockoutThreshold)

	_, errVerify := service.VerifyCredentials(context.Background(), "alice@example.com", "correct-horse-battery")
	if !errors.Is(errVerify, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", errVerify)
	}
}

func TestLockout_WindowElapsesAndResets(t *testing.T) {
	service, conn, capture := newTestService(t)
	createUser(t, conn, "alice@example.com", "correct-horse-battery")

	failLogin(t, service, "alice@example.com", LockoutThreshold)

	// Jump the clock past the window; the lock clears lazily on the next
	// attempt and the counter starts over.
	service.now = func() time.Time { return time.Now().Add(LockoutWindow + time.Minute) }

	user, errVerify := service.VerifyCredentials(context.Background(), "alice@example.com", "correct-horse-battery")
	if errVerify != nil {
		t.Fatalf("expected login to succeed after window, got %v", errVerify)
	}
	if user.IsLocked || user.FailedAttempts != 0 {
		t.Fatalf("expected lockout state reset, got locked=%v attempts=%d", user.IsLocked, user.FailedAttempts)
	}
	if len(capture.unlocked) != 1 {
		t.Fatalf("expected one unlock notification, got %d", len(capture.unlocked))
	}
}

func TestLockout_FailureAfterWindowCountsFromOne(t *testing.T) {
	service, conn, _ := newTestService(t)
	createUser(t, conn, "alice@example.com", "correct-horse-battery")

	failLogin(t, service, "alice@example.com", LockoutThreshold)

	service.now = func() time.Time { return time.Now().Add(LockoutWindow + time.Minute) }
	failLogin(t, service, "alice@example.com", 1)

	var user models.User
	if errFind := conn.Where("email = ?", "alice@example.com").First(&user).Error; errFind != nil {
		t.Fatalf("reload user: %v", errFind)
	}
	if user.IsLocked {
		t.Fatal("one failure after the window must not re-lock")
	}
	if user.FailedAttempts != 1 {
		t.Fatalf("expected counter restarted at 1, got %d", user.FailedAttempts)
	}
}

func TestLockout_SuccessResetsCounter(t *testing.T) {
	service, conn, _ := newTestService(t)
	createUser(t, conn, "alice@example.com", "correct-horse-battery")

	failLogin(t, service, "alice@example.com", LockoutThreshold-1)

	if _, errVerify := service.VerifyCredentials(context.Background(), "alice@example.com", "correct-horse-battery"); errVerify != nil {
		t.Fatalf("login: %v", errVerify)
	}

	var user models.User
	if errFind := conn.Where("email = ?", "alice@example.com").First(&user).Error; errFind != nil {
		t.Fatalf("reload user: %v", errFind)
	}
	if user.FailedAttempts != 0 {
		t.Fatalf("expected counter reset on success, got %d", user.FailedAttempts)
	}
}

func TestUnlock_AdminAction(t *testing.T) {
	service, conn, _ := newTestService(t)
	user := createUser(t, conn, "alice@example.com", "correct-horse-battery")

	failLogin(t, service, "alice@example.com", LockoutThreshold)

	if errUnlock := service.Unlock(context.Background(), user.ID); errUnlock != nil {
		t.Fatalf("Unlock: %v", errUnlock)
	}
	if _, errVerify := service.VerifyCredentials(context.Background(), "alice@example.com", "correct-horse-battery"); errVerify != nil {
		t.Fatalf("expected login after admin unlock, got %v", errVerify)
	}
}

func TestVerifyCredentials_InactiveAccount(t *testing.T) {
	service, conn, _ := newTestService(t)
	createUser(t, conn, "alice@example.com", "correct-horse-battery", func(u *models.User) {
		u.Active = false
	})

	// The flag must survive the insert; a column default must not overwrite
	// an explicit false.
	var stored models.User
	if errFind := conn.Where("email = ?", "alice@example.com").First(&stored).Error; errFind != nil {
		t.Fatalf("reload user: %v", errFind)
	}
	if stored.Active {
		t.Fatal("expected inactive flag to persist on insert")
	}

	_, errVerify := service.VerifyCredentials(context.Background(), "alice@example.com", "correct-horse-battery")
	if !errors.Is(errVerify, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for inactive account, got %v", errVerify)
	}
}
