package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stackpass/identity/internal/auth"
	"github.com/stackpass/identity/internal/config"
	"github.com/stackpass/identity/internal/models"
	"github.com/stackpass/identity/internal/ratelimit"
	"gorm.io/gorm"
)

// OTPHandler serves the standalone one-time-code endpoints.
type OTPHandler struct {
	db      *gorm.DB
	service *auth.Service
	limiter *ratelimit.Manager
	limits  config.RateLimitConfig
}

// NewOTPHandler constructs an OTPHandler.
func NewOTPHandler(db *gorm.DB, service *auth.Service, limiter *ratelimit.Manager, limits config.RateLimitConfig) *OTPHandler {
	return &OTPHandler{db: db, service: service, limiter: limiter, limits: limits}
}

// otpRequestBody defines the request body for code issuance.
type otpRequestBody struct {
	Email   string `json:"email"`
	Channel string `json:"channel"`
}

// Request dispatches a fresh code to the account's channel. The response
// does not reveal whether the email exists.
func (h *OTPHandler) Request(c *gin.Context) {
	var body otpRequestBody
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email := auth.NormalizeEmail(body.Email)
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing email"})
		return
	}

	generic := gin.H{"ok": true, "message": "if the account exists, a code has been sent"}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusOK, generic)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !user.Active {
		c.JSON(http.StatusOK, generic)
		return
	}

	result, errLimit := h.limiter.Allow(c.Request.Context(), ratelimit.KeyForUser(user.ID), h.limits.OTPPerMinute)
	if errLimit == nil && !result.Allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many code requests"})
		return
	}

	channel := strings.TrimSpace(body.Channel)
	if _, errIssue := h.service.IssueOTP(c.Request.Context(), &user, channel); errIssue != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, generic)
}

// otpVerifyBody defines the request body for standalone code verification.
type otpVerifyBody struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// Verify checks a code outside the login flow.
func (h *OTPHandler) Verify(c *gin.Context) {
	var body otpVerifyBody
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email := auth.NormalizeEmail(body.Email)
	code := strings.TrimSpace(body.Code)
	if email == "" || code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing email or code"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error; errFind != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "one-time code invalid"})
		return
	}

	if errVerify := h.service.VerifyOTP(c.Request.Context(), user.ID, code); errVerify != nil {
		respondAuthError(c, errVerify)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
