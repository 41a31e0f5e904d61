package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stackpass/identity/internal/auth"
)

// respondAuthError maps engine failures to HTTP statuses. Lockout and OTP
// messages carry enough detail to self-serve; credential failures stay
// deliberately vague.
func respondAuthError(c *gin.Context, err error) {
	var validation *auth.ValidationError
	switch {
	case errors.Is(err, auth.ErrOTPRequired):
		c.JSON(http.StatusPreconditionRequired, gin.H{"error": "one-time code required", "otp_required": true})
	case errors.Is(err, auth.ErrAccountLocked):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrPendingApproval):
		c.JSON(http.StatusForbidden, gin.H{"error": "account pending approval"})
	case errors.Is(err, auth.ErrRejected):
		c.JSON(http.StatusForbidden, gin.H{"error": "account rejected"})
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
	case errors.Is(err, auth.ErrOTPInvalid):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "one-time code invalid"})
	case errors.Is(err, auth.ErrOTPExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "one-time code expired"})
	case errors.Is(err, auth.ErrTokenExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token expired"})
	case errors.Is(err, auth.ErrTokenInvalid):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token invalid"})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Message, "field": validation.Field})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
