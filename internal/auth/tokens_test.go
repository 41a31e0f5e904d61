package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stackpass/identity/internal/denylist"
	"github.com/stackpass/identity/internal/models"
	"github.com/stackpass/identity/internal/security"
	"gorm.io/gorm"
)

func grantRole(t *testing.T, conn *gorm.DB, userID uint64, systemSlug, roleName string) {
	t.Helper()
	now := time.Now().UTC()

	var system models.System
	errFind := conn.Where("slug = ?", systemSlug).First(&system).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		system = models.System{Slug: systemSlug, Name: systemSlug, CreatedAt: now, UpdatedAt: now}
		if errCreate := conn.Create(&system).Error; errCreate != nil {
			t.Fatalf("create system: %v", errCreate)
		}
	} else if errFind != nil {
		t.Fatalf("find system: %v", errFind)
	}

	var role models.Role
	errFind = conn.Where("system_id = ? AND name = ?", system.ID, roleName).First(&role).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		role = models.Role{SystemID: system.ID, Name: roleName, CreatedAt: now, UpdatedAt: now}
		if errCreate := conn.Create(&role).Error; errCreate != nil {
			t.Fatalf("create role: %v", errCreate)
		}
	} else if errFind != nil {
		t.Fatalf("find role: %v", errFind)
	}

	assignment := models.UserSystemRole{
		UserID:     userID,
		SystemID:   system.ID,
		RoleID:     role.ID,
		IsActive:   true,
		AssignedAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if errCreate := conn.Create(&assignment).Error; errCreate != nil {
		t.Fatalf("create assignment: %v", errCreate)
	}
}

func TestIssueTokens_RolesClaimReflectsAssignments(t *testing.T) {
	service, conn, _ := newTestService(t)
	user := createUser(t, conn, "alice@example.com", "correct-horse-battery")
	grantRole(t, conn, user.ID, "billing", "Admin")
	grantRole(t, conn, user.ID, "support", "Viewer")

	pair, errIssue := service.IssueTokens(context.Background(), user)
	if errIssue != nil {
		t.Fatalf("IssueTokens: %v", errIssue)
	}

	claims, errParse := security.ParseToken("test-secret", pair.AccessToken)
	if errParse != nil {
		t.Fatalf("parse token: %v", errParse)
	}
	if len(claims.Roles) != 2 {
		t.Fatalf("expected 2 role claims, got %d", len(claims.Roles))
	}
	got := map[string]string{}
	for _, rc := range claims.Roles {
		got[rc.System] = rc.Role
	}
	if got["billing"] != "Admin" || got["support"] != "Viewer" {
		t.Fatalf("unexpected role claims: %v", got)
	}
}

func TestIssueTokens_InactiveAssignmentExcluded(t *testing.T) {
	service, conn, _ := newTestService(t)
	user := createUser(t, conn, "alice@example.com", "correct-horse-battery")
	grantRole(t, conn, user.ID, "billing", "Admin")

	if errDeactivate := conn.Model(&models.UserSystemRole{}).
		Where("user_id = ?", user.ID).
		Update("is_active", false).Error; errDeactivate != nil {
		t.Fatalf("deactivate assignment: %v", errDeactivate)
	}

	pair, errIssue := service.IssueTokens(context.Background(), user)
	if errIssue != nil {
		t.Fatalf("IssueTokens: %v", errIssue)
	}
	claims, errParse := security.ParseToken("test-secret", pair.AccessToken)
	if errParse != nil {
		t.Fatalf("parse token: %v", errParse)
	}
	if len(claims.Roles) != 0 {
		t.Fatalf("expected no role claims, got %v", claims.Roles)
	}
}

func TestRefresh_MintsNewPairWithFreshClaims(t *testing.T) {
	service, conn, _ := newTestService(t)
	user := createUser(t, conn, "alice@example.com", "correct-horse-battery")

	pair, errIssue := service.IssueTokens(context.Background(), user)
	if errIssue != nil {
		t.Fatalf("IssueTokens: %v", errIssue)
	}

	// A role granted after login shows up on the next refresh.
	grantRole(t, conn, user.ID, "billing", "Admin")

	next, errRefresh := service.Refresh(context.Background(), pair.RefreshToken)
	if errRefresh != nil {
		t.Fatalf("Refresh: %v", errRefresh)
	}
	claims, errParse := security.ParseToken("test-secret", next.AccessToken)
	if errParse != nil {
		t.Fatalf("parse token: %v", errParse)
	}
	if len(claims.Roles) != 1 || claims.Roles[0].System != "billing" {
		t.Fatalf("expected refreshed roles claim, got %v", claims.Roles)
	}
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	service, conn, _ := newTestService(t)
	user := createUser(t, conn, "alice@example.com", "correct-horse-battery")

	pair, errIssue := service.IssueTokens(context.Background(), user)
	if errIssue != nil {
		t.Fatalf("IssueTokens: %v", errIssue)
	}
	if _, errRefresh := service.Refresh(context.Background(), pair.AccessToken); !errors.Is(errRefresh, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for access token, got %v", errRefresh)
	}
}

func TestParseAccessToken_RejectsRefreshToken(t *testing.T) {
	service, conn, _ := newTestService(t)
	user := createUser(t, conn, "alice@example.com", "correct-horse-battery")

	pair, errIssue := service.IssueTokens(context.Background(), user)
	if errIssue != nil {
		t.Fatalf("IssueTokens: %v", errIssue)
	}
	if _, errParse := service.ParseAccessToken(context.Background(), pair.RefreshToken); !errors.Is(errParse, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for refresh token, got %v", errParse)
	}
}

func TestRefresh_LockedAccountRejected(t *testing.T) {
	service, conn, _ := newTestService(t)
	user := createUser(t, conn, "alice@example.com", "correct-horse-battery")

	pair, errIssue := service.IssueTokens(context.Background(), user)
	if errIssue != nil {
		t.Fatalf("IssueTokens: %v", errIssue)
	}

	failLogin(t, service, "alice@example.com", LockoutThreshold)

	if _, errRefresh := service.Refresh(context.Background(), pair.RefreshToken); !errors.Is(errRefresh, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for locked account, got %v", errRefresh)
	}
}

func TestRevoke_EpochInvalidatesOutstandingTokens(t *testing.T) {
	_, conn, capture := newTestService(t)
	service := NewService(conn, capture, TokenConfig{
		Secret:     "test-secret",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}, denylist.NewMemoryDenylist(time.Hour))

	user := createUser(t, conn, "alice@example.com", "correct-horse-battery")
	pair, errIssue := service.IssueTokens(context.Background(), user)
	if errIssue != nil {
		t.Fatalf("IssueTokens: %v", errIssue)
	}
	if _, errParse := service.ParseAccessToken(context.Background(), pair.AccessToken); errParse != nil {
		t.Fatalf("token should verify before revocation: %v", errParse)
	}

	service.Revoke(context.Background(), user.ID)

	if _, errParse := service.ParseAccessToken(context.Background(), pair.AccessToken); !errors.Is(errParse, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired after revocation, got %v", errParse)
	}
	if _, errRefresh := service.Refresh(context.Background(), pair.RefreshToken); !errors.Is(errRefresh, ErrTokenExpired) {
		t.Fatalf("expected refresh rejected after revocation, got %v", errRefresh)
	}

	// A fresh login works and mints tokens at the new epoch.
	next, errObtain := service.Obtain(context.Background(), "alice@example.com", "correct-horse-battery", "")
	if errObtain != nil {
		t.Fatalf("Obtain after revocation: %v", errObtain)
	}
	if _, errParse := service.ParseAccessToken(context.Background(), next.AccessToken); errParse != nil {
		t.Fatalf("new token should verify: %v", errParse)
	}
}
