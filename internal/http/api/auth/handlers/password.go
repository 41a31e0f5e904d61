package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stackpass/identity/internal/auth"
)

// PasswordHandler serves the credential-free password reset lifecycle.
type PasswordHandler struct {
	service *auth.Service
}

// NewPasswordHandler constructs a PasswordHandler.
func NewPasswordHandler(service *auth.Service) *PasswordHandler {
	return &PasswordHandler{service: service}
}

// forgotRequest defines the request body for reset issuance.
type forgotRequest struct {
	Email string `json:"email"`
}

// Forgot issues a reset token. The response is the same whether or not the
// email exists.
func (h *PasswordHandler) Forgot(c *gin.Context) {
	var body forgotRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Email) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing email"})
		return
	}

	if errRequest := h.service.RequestPasswordReset(c.Request.Context(), body.Email); errRequest != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "message": "if the account exists, a reset link has been sent"})
}

// resetRequest defines the request body for reset consumption.
type resetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// Reset consumes a reset token and sets the new password.
func (h *PasswordHandler) Reset(c *gin.Context) {
	var body resetRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	token := strings.TrimSpace(body.Token)
	if token == "" || body.NewPassword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token or password"})
		return
	}

	if errReset := h.service.ResetPassword(c.Request.Context(), token, body.NewPassword); errReset != nil {
		respondAuthError(c, errReset)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
