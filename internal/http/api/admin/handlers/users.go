package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stackpass/identity/internal/auth"
	dbutil "github.com/stackpass/identity/internal/db"
	"github.com/stackpass/identity/internal/http/api/admin/rbac"
	"github.com/stackpass/identity/internal/models"
	"github.com/stackpass/identity/internal/security"
	"gorm.io/gorm"

	log "github.com/sirupsen/logrus"
)

// UserHandler manages user account endpoints.
type UserHandler struct {
	db      *gorm.DB
	service *auth.Service
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(db *gorm.DB, service *auth.Service) *UserHandler {
	return &UserHandler{db: db, service: service}
}

// createUserRequest defines the request body for user creation.
type createUserRequest struct {
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	OTPEnabled bool   `json:"otp_enabled"`
	Status     string `json:"status"`
}

// Create registers a new user account. A duplicate email or username is
// reported as a generic validation failure so the endpoint cannot be used
// to probe which addresses exist.
func (h *UserHandler) Create(c *gin.Context) {
	var body createUserRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email := auth.NormalizeEmail(body.Email)
	username := strings.TrimSpace(body.Username)
	if email == "" || username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing email or username"})
		return
	}
	if errPolicy := security.ValidatePassword(body.Password, email, username); errPolicy != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errPolicy.Error()})
		return
	}

	status := strings.TrimSpace(body.Status)
	switch status {
	case "":
		status = models.UserStatusApproved
	case models.UserStatusPending, models.UserStatusApproved, models.UserStatusRejected:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	hash, errHash := security.HashPassword(body.Password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	now := time.Now().UTC()
	user := models.User{
		Email:      email,
		Username:   username,
		Password:   hash,
		OTPEnabled: body.OTPEnabled,
		Status:     status,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&user).Error; errCreate != nil {
		log.WithError(errCreate).WithField("email", email).Info("user create rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": "registration could not be completed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":       user.ID,
		"email":    user.Email,
		"username": user.Username,
		"status":   user.Status,
	})
}

// List returns users with optional filters. Non-superusers only see users
// assigned to a system they administer.
func (h *UserHandler) List(c *gin.Context) {
	var (
		emailQ  = strings.TrimSpace(c.Query("email"))
		idQ     = strings.TrimSpace(c.Query("id"))
		searchQ = strings.TrimSpace(c.Query("search"))
	)

	actor := ActorFromContext(c)
	q := h.db.WithContext(c.Request.Context()).Model(&models.User{})
	if !actor.IsSuperuser() {
		q = q.Where("id IN (?)", h.db.Model(&models.UserSystemRole{}).
			Select("user_id").
			Where("system_id IN ?", actor.AdminSystemIDs()))
	}

	if emailQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+emailQ+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "email"), pattern)
	}
	if idQ != "" {
		if id, errParse := strconv.ParseUint(idQ, 10, 64); errParse == nil {
			q = q.Where("id = ?", id)
		}
	}
	if deptQ := strings.TrimSpace(c.Query("department")); deptQ != "" {
		q = q.Where(dbutil.JSONExtractTextExpr(h.db, "profile", "department")+" = ?", deptQ)
	}
	if searchQ != "" {
		ciPattern := dbutil.NormalizeLikePattern(h.db, "%"+searchQ+"%")
		q = q.Where(
			dbutil.CaseInsensitiveLikeExpr(h.db, "username")+" OR "+
				dbutil.CaseInsensitiveLikeExpr(h.db, "email"),
			ciPattern,
			ciPattern,
		)
	}

	var rows []models.User
	if errFind := q.Order("created_at DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list users failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":          row.ID,
			"email":       row.Email,
			"username":    row.Username,
			"otp_enabled": row.OTPEnabled,
			"status":      row.Status,
			"active":      row.Active,
			"is_locked":   row.IsLocked,
			"created_at":  row.CreatedAt,
			"updated_at":  row.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

// Get returns a user by ID.
func (h *UserHandler) Get(c *gin.Context) {
	user, actor, ok := h.loadTarget(c)
	if !ok {
		return
	}
	canEdit, errCan := actor.CanEditUser(c.Request.Context(), h.db, user)
	if errCan != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "authorization failed"})
		return
	}
	if !canEdit {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":              user.ID,
		"email":           user.Email,
		"username":        user.Username,
		"otp_enabled":     user.OTPEnabled,
		"status":          user.Status,
		"active":          user.Active,
		"is_locked":       user.IsLocked,
		"failed_attempts": user.FailedAttempts,
		"created_at":      user.CreatedAt,
		"updated_at":      user.UpdatedAt,
	})
}

// updateUserRequest defines the request body for user updates.
type updateUserRequest struct {
	Username   *string `json:"username"`
	OTPEnabled *bool   `json:"otp_enabled"`
	Active     *bool   `json:"active"`
}

// Update modifies a user account. Admins cannot modify superusers or other
// admins; that requires a superuser.
func (h *UserHandler) Update(c *gin.Context) {
	user, actor, ok := h.loadTarget(c)
	if !ok {
		return
	}
	canEdit, errCan := actor.CanEditUser(c.Request.Context(), h.db, user)
	if errCan != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "authorization failed"})
		return
	}
	if !canEdit {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}

	var body updateUserRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.Username != nil {
		username := strings.TrimSpace(*body.Username)
		if username != "" {
			updates["username"] = username
		}
	}
	if body.OTPEnabled != nil {
		updates["otp_enabled"] = *body.OTPEnabled
	}
	if body.Active != nil {
		updates["active"] = *body.Active
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.User{}).Where("id = ?", user.ID).Updates(updates)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a user and their assignments. Superuser only; revocation
// without deletion goes through the assignment endpoints.
func (h *UserHandler) Delete(c *gin.Context) {
	user, actor, ok := h.loadTarget(c)
	if !ok {
		return
	}
	if !actor.IsSuperuser() {
		c.JSON(http.StatusForbidden, gin.H{"error": "superuser required"})
		return
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errAssignments := tx.Where("user_id = ?", user.ID).Delete(&models.UserSystemRole{}).Error; errAssignments != nil {
			return errAssignments
		}
		if errOTP := tx.Where("user_id = ?", user.ID).Delete(&models.OTPRecord{}).Error; errOTP != nil {
			return errOTP
		}
		if errReset := tx.Where("user_id = ?", user.ID).Delete(&models.PasswordResetToken{}).Error; errReset != nil {
			return errReset
		}
		return tx.Delete(&models.User{}, user.ID).Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Unlock resets a user's lockout state ahead of the window expiring.
func (h *UserHandler) Unlock(c *gin.Context) {
	user, actor, ok := h.loadTarget(c)
	if !ok {
		return
	}
	canEdit, errCan := actor.CanEditUser(c.Request.Context(), h.db, user)
	if errCan != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "authorization failed"})
		return
	}
	if !canEdit {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}

	if errUnlock := h.service.Unlock(c.Request.Context(), user.ID); errUnlock != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unlock failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Approve moves a pending user to approved.
func (h *UserHandler) Approve(c *gin.Context) {
	h.setStatus(c, models.UserStatusApproved)
}

// Reject moves a user to rejected, blocking token issuance.
func (h *UserHandler) Reject(c *gin.Context) {
	h.setStatus(c, models.UserStatusRejected)
}

func (h *UserHandler) setStatus(c *gin.Context, status string) {
	user, actor, ok := h.loadTarget(c)
	if !ok {
		return
	}
	canEdit, errCan := actor.CanEditUser(c.Request.Context(), h.db, user)
	if errCan != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "authorization failed"})
		return
	}
	if !canEdit {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// loadTarget parses the :id parameter and loads the target user.
func (h *UserHandler) loadTarget(c *gin.Context) (*models.User, *rbac.Actor, bool) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return nil, nil, false
	}
	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return nil, nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return nil, nil, false
	}
	return &user, ActorFromContext(c), true
}
