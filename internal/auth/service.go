package auth

import (
	"context"
	"strings"
	"time"

	"github.com/stackpass/identity/internal/denylist"
	"github.com/stackpass/identity/internal/models"
	"github.com/stackpass/identity/internal/notifier"
	"github.com/stackpass/identity/internal/security"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TokenConfig holds the signing secret and token lifetimes.
type TokenConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Service is the authentication and authorization engine: credential
// verification with lockout, OTP issuance/verification, token issuance, and
// the password reset lifecycle.
type Service struct {
	db       *gorm.DB
	notifier notifier.Notifier
	tokens   TokenConfig
	denylist denylist.Denylist

	now func() time.Time
}

// NewService constructs a Service. The denylist may be nil, in which case
// issued tokens are trusted for their full stated lifetime.
func NewService(db *gorm.DB, n notifier.Notifier, tokens TokenConfig, dl denylist.Denylist) *Service {
	if n == nil {
		n = notifier.NewLogNotifier()
	}
	return &Service{
		db:       db,
		notifier: n,
		tokens:   tokens,
		denylist: dl,
		now:      time.Now,
	}
}

// Obtain runs the full login flow: credentials, approval gate, second
// factor, token issuance.
func (s *Service) Obtain(ctx context.Context, email, password, otpCode string) (*TokenPair, error) {
	user, errVerify := s.VerifyCredentials(ctx, email, password)
	if errVerify != nil {
		return nil, errVerify
	}

	switch user.Status {
	case models.UserStatusPending:
		return nil, ErrPendingApproval
	case models.UserStatusRejected:
		return nil, ErrRejected
	}

	if user.OTPEnabled {
		if strings.TrimSpace(otpCode) == "" {
			if _, errIssue := s.IssueOTP(ctx, user, models.OTPChannelEmail); errIssue != nil {
				return nil, errIssue
			}
			return nil, ErrOTPRequired
		}
		if errCode := s.verifySecondFactor(ctx, user, otpCode); errCode != nil {
			return nil, errCode
		}
	}

	return s.IssueTokens(ctx, user)
}

// verifySecondFactor accepts an authenticator-app code for enrolled users
// and falls back to the delivered email code otherwise.
func (s *Service) verifySecondFactor(ctx context.Context, user *models.User, code string) error {
	if user.TOTPSecret != "" && security.ValidateTOTP(user.TOTPSecret, code) {
		return nil
	}
	return s.VerifyOTP(ctx, user.ID, code)
}

// epoch returns the user's current revocation epoch, zero when no denylist
// is configured.
func (s *Service) epoch(ctx context.Context, userID uint64) int64 {
	if s.denylist == nil {
		return 0
	}
	epoch, err := s.denylist.Epoch(ctx, userID)
	if err != nil {
		return 0
	}
	return epoch
}

// Revoke bumps the user's revocation epoch so outstanding tokens stop
// verifying. It is a no-op without a configured denylist.
func (s *Service) Revoke(ctx context.Context, userID uint64) {
	if s.denylist == nil {
		return
	}
	if _, err := s.denylist.Bump(ctx, userID); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("revocation epoch bump failed")
	}
}

// NormalizeEmail lowercases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
