// Package authapi mounts the public authentication surface: token obtain/
// refresh/logout, one-time codes, password reset, MFA settings, and the
// profile endpoint used for federated backfill.
package authapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stackpass/identity/internal/auth"
	"github.com/stackpass/identity/internal/config"
	handlers "github.com/stackpass/identity/internal/http/api/auth/handlers"
	"github.com/stackpass/identity/internal/models"
	"github.com/stackpass/identity/internal/ratelimit"
	"github.com/stackpass/identity/internal/trust"
	"gorm.io/gorm"
)

// RegisterAuthRoutes registers the public auth routes and middleware.
func RegisterAuthRoutes(r *gin.Engine, db *gorm.DB, service *auth.Service, cookieCfg config.CookieConfig, limiter *ratelimit.Manager, limits config.RateLimitConfig) {
	if r == nil || db == nil || service == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)

	group := r.Group("/v0")

	tokenHandler := handlers.NewTokenHandler(service, cookieCfg, limiter, limits)
	group.POST("/token/obtain", tokenHandler.Obtain)
	group.POST("/token/refresh", tokenHandler.Refresh)
	group.POST("/logout", tokenHandler.Logout)

	otpHandler := handlers.NewOTPHandler(db, service, limiter, limits)
	group.POST("/otp/request", otpHandler.Request)
	group.POST("/otp/verify", otpHandler.Verify)

	passwordHandler := handlers.NewPasswordHandler(service)
	group.POST("/password/forgot", passwordHandler.Forgot)
	group.POST("/password/reset", passwordHandler.Reset)

	authed := group.Group("")
	authed.Use(UserAuthMiddleware(db, service))

	profileHandler := handlers.NewProfileHandler()
	authed.GET("/profile", profileHandler.Get)

	mfaHandler := handlers.NewMFAHandler(db)
	authed.GET("/mfa/status", mfaHandler.Status)
	authed.POST("/mfa/totp/prepare", mfaHandler.PrepareTOTP)
	authed.POST("/mfa/totp/confirm", mfaHandler.ConfirmTOTP)
	authed.POST("/mfa/totp/disable", mfaHandler.DisableTOTP)
}

// UserAuthMiddleware validates the caller's access token and loads the
// user row into the request context.
func UserAuthMiddleware(db *gorm.DB, service *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := trust.TokenFromRequest(c.Request)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		claims, errParse := service.ParseAccessToken(c.Request.Context(), raw)
		if errParse != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if !user.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account disabled"})
			return
		}

		c.Set(handlers.ContextKeyUser, &user)
		c.Next()
	}
}
