package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stackpass/identity/internal/http/api/admin/rbac"
	"github.com/stackpass/identity/internal/models"
	"gorm.io/gorm"
)

// RoleHandler manages per-system role endpoints.
type RoleHandler struct {
	db *gorm.DB
}

// NewRoleHandler constructs a RoleHandler.
func NewRoleHandler(db *gorm.DB) *RoleHandler {
	return &RoleHandler{db: db}
}

// createRoleRequest defines the request body for role creation.
type createRoleRequest struct {
	Name string `json:"name"`
}

// Create adds a role to the system in the :id route parameter.
func (h *RoleHandler) Create(c *gin.Context) {
	systemID, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	actor := ActorFromContext(c)
	if !actor.IsAdminOf(systemID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not an admin of this system"})
		return
	}

	var body createRoleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}

	var system models.System
	if errFind := h.db.WithContext(c.Request.Context()).First(&system, systemID).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "system not found"})
		return
	}

	now := time.Now().UTC()
	role := models.Role{SystemID: systemID, Name: name, CreatedAt: now, UpdatedAt: now}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&role).Error; errCreate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "create role failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": role.ID, "system_id": role.SystemID, "name": role.Name})
}

// List returns the roles of the system in the :id route parameter.
func (h *RoleHandler) List(c *gin.Context) {
	systemID, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	actor := ActorFromContext(c)
	if !actor.IsAdminOf(systemID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not an admin of this system"})
		return
	}

	var rows []models.Role
	errFind := h.db.WithContext(c.Request.Context()).
		Where("system_id = ?", systemID).
		Order("name ASC").
		Find(&rows).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list roles failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{"id": row.ID, "name": row.Name, "is_default": row.IsDefault})
	}
	c.JSON(http.StatusOK, gin.H{"roles": out})
}

// updateRoleRequest defines the request body for role renames.
type updateRoleRequest struct {
	Name string `json:"name"`
}

// Update renames a role. Default roles are immutable for non-superusers.
func (h *RoleHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var role models.Role
	if errFind := h.db.WithContext(c.Request.Context()).First(&role, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	actor := ActorFromContext(c)
	if !actor.IsAdminOf(role.SystemID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not an admin of this system"})
		return
	}
	if rbac.IsProtectedRole(&role) && !actor.IsSuperuser() {
		c.JSON(http.StatusForbidden, gin.H{"error": "default role cannot be renamed"})
		return
	}

	var body updateRoleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Role{}).
		Where("id = ?", id).
		Updates(map[string]any{"name": name, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a role and its assignments. Default roles survive
// non-superusers.
func (h *RoleHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	ctx := c.Request.Context()
	var role models.Role
	if errFind := h.db.WithContext(ctx).First(&role, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	actor := ActorFromContext(c)
	if !actor.IsAdminOf(role.SystemID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not an admin of this system"})
		return
	}
	if rbac.IsProtectedRole(&role) && !actor.IsSuperuser() {
		c.JSON(http.StatusForbidden, gin.H{"error": "default role cannot be deleted"})
		return
	}

	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errAssignments := tx.Where("role_id = ?", id).Delete(&models.UserSystemRole{}).Error; errAssignments != nil {
			return errAssignments
		}
		return tx.Delete(&models.Role{}, id).Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
