package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stackpass/identity/internal/models"
	"gorm.io/gorm"
)

// AssignmentHandler manages user-system-role grants.
type AssignmentHandler struct {
	db *gorm.DB
}

// NewAssignmentHandler constructs an AssignmentHandler.
func NewAssignmentHandler(db *gorm.DB) *AssignmentHandler {
	return &AssignmentHandler{db: db}
}

// createAssignmentRequest defines the request body for granting a role.
type createAssignmentRequest struct {
	UserID   uint64 `json:"user_id"`
	SystemID uint64 `json:"system_id"`
	RoleID   uint64 `json:"role_id"`
}

// Create grants a role to a user within a system. The role must belong to
// the named system; a repeated grant reactivates the existing row instead
// of inserting a duplicate.
func (h *AssignmentHandler) Create(c *gin.Context) {
	var body createAssignmentRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.UserID == 0 || body.SystemID == 0 || body.RoleID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user_id, system_id or role_id"})
		return
	}

	actor := ActorFromContext(c)
	if !actor.IsAdminOf(body.SystemID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not an admin of this system"})
		return
	}

	ctx := c.Request.Context()
	var role models.Role
	if errFind := h.db.WithContext(ctx).First(&role, body.RoleID).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "role not found"})
		return
	}
	if role.SystemID != body.SystemID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role does not belong to this system"})
		return
	}
	var user models.User
	if errFind := h.db.WithContext(ctx).First(&user, body.UserID).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	now := time.Now().UTC()
	var assignment models.UserSystemRole
	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		errFind := tx.Where("user_id = ? AND system_id = ? AND role_id = ?",
			body.UserID, body.SystemID, body.RoleID).
			First(&assignment).Error
		switch {
		case errFind == nil:
			return tx.Model(&assignment).
				Updates(map[string]any{"is_active": true, "assigned_at": now, "updated_at": now}).Error
		case errors.Is(errFind, gorm.ErrRecordNotFound):
			assignment = models.UserSystemRole{
				UserID:     body.UserID,
				SystemID:   body.SystemID,
				RoleID:     body.RoleID,
				IsActive:   true,
				AssignedAt: now,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			return tx.Create(&assignment).Error
		default:
			return errFind
		}
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create assignment failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":        assignment.ID,
		"user_id":   assignment.UserID,
		"system_id": assignment.SystemID,
		"role_id":   assignment.RoleID,
	})
}

// List returns assignments, optionally filtered by user or system.
// Non-superusers only see assignments in systems they administer.
func (h *AssignmentHandler) List(c *gin.Context) {
	actor := ActorFromContext(c)

	q := h.db.WithContext(c.Request.Context()).Model(&models.UserSystemRole{}).
		Preload("System").Preload("Role")
	if !actor.IsSuperuser() {
		q = q.Where("system_id IN ?", actor.AdminSystemIDs())
	}
	if userQ := strings.TrimSpace(c.Query("user_id")); userQ != "" {
		if id, errParse := strconv.ParseUint(userQ, 10, 64); errParse == nil {
			q = q.Where("user_id = ?", id)
		}
	}
	if systemQ := strings.TrimSpace(c.Query("system_id")); systemQ != "" {
		if id, errParse := strconv.ParseUint(systemQ, 10, 64); errParse == nil {
			q = q.Where("system_id = ?", id)
		}
	}

	var rows []models.UserSystemRole
	if errFind := q.Order("assigned_at DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list assignments failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		entry := gin.H{
			"id":          row.ID,
			"user_id":     row.UserID,
			"system_id":   row.SystemID,
			"role_id":     row.RoleID,
			"is_active":   row.IsActive,
			"assigned_at": row.AssignedAt,
		}
		if row.System != nil {
			entry["system"] = row.System.Slug
		}
		if row.Role != nil {
			entry["role"] = row.Role.Name
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"assignments": out})
}

// Delete revokes a grant. Tokens already issued keep the claim until they
// expire; revocation takes effect on the next issuance.
func (h *AssignmentHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	ctx := c.Request.Context()
	var assignment models.UserSystemRole
	if errFind := h.db.WithContext(ctx).First(&assignment, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	actor := ActorFromContext(c)
	if !actor.IsAdminOf(assignment.SystemID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not an admin of this system"})
		return
	}

	if errDelete := h.db.WithContext(ctx).Delete(&models.UserSystemRole{}, id).Error; errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
