package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stackpass/identity/internal/auth"
	"github.com/stackpass/identity/internal/config"
	"github.com/stackpass/identity/internal/ratelimit"
	"github.com/stackpass/identity/internal/trust"

	log "github.com/sirupsen/logrus"
)

// TokenHandler serves the login, refresh, and logout endpoints.
type TokenHandler struct {
	service   *auth.Service
	cookieCfg config.CookieConfig
	limiter   *ratelimit.Manager
	limits    config.RateLimitConfig
}

// NewTokenHandler constructs a TokenHandler.
func NewTokenHandler(service *auth.Service, cookieCfg config.CookieConfig, limiter *ratelimit.Manager, limits config.RateLimitConfig) *TokenHandler {
	return &TokenHandler{service: service, cookieCfg: cookieCfg, limiter: limiter, limits: limits}
}

// obtainRequest defines the request body for token issuance.
type obtainRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	OTPCode  string `json:"otp_code"`
}

// Obtain authenticates email+password (+optional one-time code) and sets
// the token cookies.
func (h *TokenHandler) Obtain(c *gin.Context) {
	result, errLimit := h.limiter.Allow(c.Request.Context(), ratelimit.KeyForIP(c.ClientIP()), h.limits.ObtainPerMinute)
	if errLimit == nil && !result.Allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many login attempts"})
		return
	}

	var body obtainRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Email) == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing email or password"})
		return
	}

	pair, errObtain := h.service.Obtain(c.Request.Context(), body.Email, body.Password, body.OTPCode)
	if errObtain != nil {
		log.WithFields(log.Fields{"email": auth.NormalizeEmail(body.Email), "ip": c.ClientIP()}).
			WithError(errObtain).Info("token obtain rejected")
		respondAuthError(c, errObtain)
		return
	}

	setTokenCookies(c, pair, h.cookieCfg)
	c.JSON(http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_at":    pair.AccessExpiresAt.Unix(),
	})
}

// refreshRequest defines the optional request body for token refresh; the
// refresh cookie is preferred.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges a refresh token for a new token pair.
func (h *TokenHandler) Refresh(c *gin.Context) {
	raw := ""
	if cookie, errCookie := c.Cookie(trust.CookieRefreshToken); errCookie == nil {
		raw = strings.TrimSpace(cookie)
	}
	if raw == "" {
		var body refreshRequest
		if errBind := c.ShouldBindJSON(&body); errBind == nil {
			raw = strings.TrimSpace(body.RefreshToken)
		}
	}
	if raw == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing refresh token"})
		return
	}

	pair, errRefresh := h.service.Refresh(c.Request.Context(), raw)
	if errRefresh != nil {
		respondAuthError(c, errRefresh)
		return
	}

	setTokenCookies(c, pair, h.cookieCfg)
	c.JSON(http.StatusOK, gin.H{
		"access_token": pair.AccessToken,
		"expires_at":   pair.AccessExpiresAt.Unix(),
	})
}

// Logout clears both token cookies and bumps the caller's revocation epoch
// when a denylist is configured. Without one, logout is client-side only
// and outstanding tokens remain valid until expiry.
func (h *TokenHandler) Logout(c *gin.Context) {
	if raw := trust.TokenFromRequest(c.Request); raw != "" {
		if claims, errParse := h.service.ParseAccessToken(c.Request.Context(), raw); errParse == nil {
			h.service.Revoke(c.Request.Context(), claims.UserID)
		}
	}
	clearTokenCookies(c, h.cookieCfg)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
