package trust

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stackpass/identity/internal/denylist"
	"github.com/stackpass/identity/internal/models"
	"github.com/stackpass/identity/internal/security"
	"gorm.io/gorm"
)

// Token transport cookie names, shared with the issuing endpoints.
const (
	CookieAccessToken  = "access_token"
	CookieRefreshToken = "refresh_token"
)

// Verification failures. Both degrade to an unauthenticated or unauthorized
// response; the verifier never lets a bad token crash a request.
var (
	// ErrUnauthenticated means no usable token was presented.
	ErrUnauthenticated = errors.New("trust: unauthenticated")
	// ErrUnauthorized means the token is valid but grants no role in this
	// application's system.
	ErrUnauthorized = errors.New("trust: unauthorized for this system")
)

// Config describes a downstream application's trust relationship with the
// identity service.
type Config struct {
	// Secret verifies token signatures.
	Secret string
	// SystemSlug is this application's own slug, matched against the
	// roles claim.
	SystemSlug string
	// DB resolves locally-issued tokens (no roles claim) to user rows.
	// Optional; without it local tokens are rejected.
	DB *gorm.DB
	// ProfileBaseURL points at the identity service for best-effort
	// attribute backfill of federated identities. Optional.
	ProfileBaseURL string
	// Denylist rejects tokens older than the user's revocation epoch.
	// Optional.
	Denylist denylist.Denylist
	// HTTPClient overrides the backfill client. Optional.
	HTTPClient *http.Client
}

// backfillTimeout bounds the profile fetch; the request proceeds without a
// profile when it elapses.
const backfillTimeout = 2 * time.Second

// Verifier validates tokens and resolves identities for one downstream
// application.
type Verifier struct {
	cfg    Config
	client *http.Client
}

// NewVerifier constructs a Verifier.
func NewVerifier(cfg Config) *Verifier {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: backfillTimeout}
	}
	return &Verifier{cfg: cfg, client: client}
}

// TokenFromRequest extracts the access token from the cookie, falling back
// to the bearer header.
func TokenFromRequest(r *http.Request) string {
	if cookie, errCookie := r.Cookie(CookieAccessToken); errCookie == nil {
		if token := strings.TrimSpace(cookie.Value); token != "" {
			return token
		}
	}
	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header {
		return ""
	}
	return strings.TrimSpace(token)
}

// Authenticate verifies the request's token and resolves the caller's
// identity. The claim shape decides the path: a roles claim marks a
// foreign-issued token and yields a federated identity synthesized from
// claims alone; without it the token is treated as locally issued and the
// user is loaded from the database.
func (v *Verifier) Authenticate(ctx context.Context, r *http.Request) (*Identity, error) {
	raw := TokenFromRequest(r)
	if raw == "" {
		return nil, ErrUnauthenticated
	}

	claims, errParse := security.ParseToken(v.cfg.Secret, raw)
	if errParse != nil {
		return nil, ErrUnauthenticated
	}
	if claims.IsRefresh() {
		return nil, ErrUnauthenticated
	}
	if v.cfg.Denylist != nil {
		epoch, errEpoch := v.cfg.Denylist.Epoch(ctx, claims.UserID)
		if errEpoch == nil && claims.Epoch < epoch {
			return nil, ErrUnauthenticated
		}
	}

	if len(claims.Roles) > 0 {
		return v.resolveFederated(ctx, raw, claims)
	}
	return v.resolveLocal(ctx, claims)
}

// resolveFederated synthesizes an ephemeral identity from the roles claim.
func (v *Verifier) resolveFederated(ctx context.Context, raw string, claims *security.Claims) (*Identity, error) {
	var role string
	for _, entry := range claims.Roles {
		if entry.System == v.cfg.SystemSlug {
			role = entry.Role
			break
		}
	}
	if role == "" {
		return nil, ErrUnauthorized
	}

	identity := &Identity{
		Kind:     IdentityFederated,
		UserID:   claims.UserID,
		Email:    claims.Email,
		Username: claims.Username,
		Role:     role,
	}
	identity.Profile = v.fetchProfile(ctx, raw)
	return identity, nil
}

// resolveLocal loads the user row for a locally-issued token.
func (v *Verifier) resolveLocal(ctx context.Context, claims *security.Claims) (*Identity, error) {
	if v.cfg.DB == nil {
		return nil, ErrUnauthenticated
	}
	var user models.User
	if errFind := v.cfg.DB.WithContext(ctx).First(&user, claims.UserID).Error; errFind != nil {
		return nil, ErrUnauthenticated
	}
	if !user.Active {
		return nil, ErrUnauthenticated
	}

	role, errRole := v.localRole(ctx, user.ID)
	if errRole != nil {
		return nil, fmt.Errorf("trust: resolve local role: %w", errRole)
	}
	if role == "" && !user.IsSuperuser {
		return nil, ErrUnauthorized
	}

	return &Identity{
		Kind:      IdentityLocal,
		UserID:    user.ID,
		Email:     user.Email,
		Username:  user.Username,
		Role:      role,
		Superuser: user.IsSuperuser,
		User:      &user,
	}, nil
}

// localRole reads the user's active role in this application's system.
func (v *Verifier) localRole(ctx context.Context, userID uint64) (string, error) {
	var row models.UserSystemRole
	errFind := v.cfg.DB.WithContext(ctx).
		Preload("Role").
		Joins("JOIN systems ON systems.id = user_system_roles.system_id").
		Where("user_system_roles.user_id = ? AND user_system_roles.is_active = ? AND systems.slug = ?",
			userID, true, v.cfg.SystemSlug).
		First(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", errFind
	}
	if row.Role == nil {
		return "", nil
	}
	return row.Role.Name, nil
}
