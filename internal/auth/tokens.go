package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stackpass/identity/internal/models"
	"github.com/stackpass/identity/internal/security"
	"gorm.io/gorm"
)

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// IssueTokens signs an access/refresh pair for the user. The access token
// embeds one roles claim entry per active assignment as of now; revoking an
// assignment later does not invalidate tokens already issued.
func (s *Service) IssueTokens(ctx context.Context, user *models.User) (*TokenPair, error) {
	roles, errRoles := s.ActiveRoleClaims(ctx, user.ID)
	if errRoles != nil {
		return nil, errRoles
	}

	now := s.now().UTC()
	epoch := s.epoch(ctx, user.ID)

	access, errAccess := security.SignToken(s.tokens.Secret, security.Claims{
		Email:    user.Email,
		Username: user.Username,
		UserID:   user.ID,
		Roles:    roles,
		Epoch:    epoch,
	}, s.tokens.AccessTTL, now)
	if errAccess != nil {
		return nil, errAccess
	}

	refresh, errRefresh := security.SignToken(s.tokens.Secret, security.Claims{
		Email:     user.Email,
		Username:  user.Username,
		UserID:    user.ID,
		TokenType: security.TokenTypeRefresh,
		Epoch:     epoch,
	}, s.tokens.RefreshTTL, now)
	if errRefresh != nil {
		return nil, errRefresh
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  now.Add(s.tokens.AccessTTL),
		RefreshToken:     refresh,
		RefreshExpiresAt: now.Add(s.tokens.RefreshTTL),
	}, nil
}

// Refresh validates a refresh token and mints a new pair with claims read
// fresh from the store.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, errParse := security.ParseToken(s.tokens.Secret, refreshToken)
	if errParse != nil {
		if errors.Is(errParse, security.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !claims.IsRefresh() {
		return nil, ErrTokenInvalid
	}
	if claims.Epoch < s.epoch(ctx, claims.UserID) {
		return nil, ErrTokenExpired
	}

	var user models.User
	if errFind := s.db.WithContext(ctx).First(&user, claims.UserID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("auth: load user for refresh: %w", errFind)
	}
	if !user.Active || user.IsLocked {
		return nil, ErrTokenInvalid
	}

	return s.IssueTokens(ctx, &user)
}

// ActiveRoleClaims loads the user's active assignments as (system, role)
// claim entries.
func (s *Service) ActiveRoleClaims(ctx context.Context, userID uint64) ([]security.RoleClaim, error) {
	var rows []models.UserSystemRole
	errFind := s.db.WithContext(ctx).
		Preload("System").Preload("Role").
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("assigned_at ASC").
		Find(&rows).Error
	if errFind != nil {
		return nil, fmt.Errorf("auth: load assignments: %w", errFind)
	}

	claims := make([]security.RoleClaim, 0, len(rows))
	for _, row := range rows {
		if row.System == nil || row.Role == nil {
			continue
		}
		claims = append(claims, security.RoleClaim{System: row.System.Slug, Role: row.Role.Name})
	}
	return claims, nil
}

// ParseAccessToken validates an access token and checks its revocation
// epoch. Refresh tokens are rejected here.
func (s *Service) ParseAccessToken(ctx context.Context, raw string) (*security.Claims, error) {
	claims, errParse := security.ParseToken(s.tokens.Secret, raw)
	if errParse != nil {
		if errors.Is(errParse, security.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if claims.IsRefresh() {
		return nil, ErrTokenInvalid
	}
	if claims.Epoch < s.epoch(ctx, claims.UserID) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}
