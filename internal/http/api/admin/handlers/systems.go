package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stackpass/identity/internal/models"
	"gorm.io/gorm"
)

// SystemHandler manages tenant application endpoints.
type SystemHandler struct {
	db *gorm.DB
}

// NewSystemHandler constructs a SystemHandler.
func NewSystemHandler(db *gorm.DB) *SystemHandler {
	return &SystemHandler{db: db}
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// createSystemRequest defines the request body for system creation.
type createSystemRequest struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Create registers a new system. The protected Admin role is created in
// the same transaction so every system has an Admin role from the first
// moment it exists.
func (h *SystemHandler) Create(c *gin.Context) {
	actor := ActorFromContext(c)
	if !actor.IsSuperuser() {
		c.JSON(http.StatusForbidden, gin.H{"error": "superuser required"})
		return
	}

	var body createSystemRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	slug := strings.TrimSpace(body.Slug)
	if !slugPattern.MatchString(slug) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid slug"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		name = slug
	}

	now := time.Now().UTC()
	system := models.System{Slug: slug, Name: name, CreatedAt: now, UpdatedAt: now}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&system).Error; errCreate != nil {
			return errCreate
		}
		role := models.Role{
			SystemID:  system.ID,
			Name:      models.RoleAdmin,
			IsDefault: true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.Create(&role).Error
	})
	if errTx != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "create system failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": system.ID, "slug": system.Slug, "name": system.Name})
}

// List returns the systems the actor administers; superusers see all.
func (h *SystemHandler) List(c *gin.Context) {
	actor := ActorFromContext(c)

	q := h.db.WithContext(c.Request.Context()).Model(&models.System{})
	if !actor.IsSuperuser() {
		q = q.Where("id IN ?", actor.AdminSystemIDs())
	}

	var rows []models.System
	if errFind := q.Order("slug ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list systems failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":         row.ID,
			"slug":       row.Slug,
			"name":       row.Name,
			"created_at": row.CreatedAt,
			"updated_at": row.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"systems": out})
}

// Get returns a system by ID.
func (h *SystemHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	actor := ActorFromContext(c)
	if !actor.IsAdminOf(id) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not an admin of this system"})
		return
	}

	var system models.System
	if errFind := h.db.WithContext(c.Request.Context()).Preload("Roles").First(&system, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	roles := make([]gin.H, 0, len(system.Roles))
	for _, role := range system.Roles {
		roles = append(roles, gin.H{"id": role.ID, "name": role.Name, "is_default": role.IsDefault})
	}
	c.JSON(http.StatusOK, gin.H{
		"id":    system.ID,
		"slug":  system.Slug,
		"name":  system.Name,
		"roles": roles,
	})
}

// updateSystemRequest defines the request body for system updates. The
// slug is immutable; only the display name can change.
type updateSystemRequest struct {
	Name *string `json:"name"`
}

// Update modifies a system's display name.
func (h *SystemHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	actor := ActorFromContext(c)
	if !actor.IsAdminOf(id) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not an admin of this system"})
		return
	}

	var body updateSystemRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Name == nil || strings.TrimSpace(*body.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.System{}).
		Where("id = ?", id).
		Updates(map[string]any{"name": strings.TrimSpace(*body.Name), "updated_at": time.Now().UTC()})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a system with its roles and assignments. Superuser only.
func (h *SystemHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	actor := ActorFromContext(c)
	if !actor.IsSuperuser() {
		c.JSON(http.StatusForbidden, gin.H{"error": "superuser required"})
		return
	}

	ctx := c.Request.Context()
	var system models.System
	if errFind := h.db.WithContext(ctx).First(&system, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errAssignments := tx.Where("system_id = ?", id).Delete(&models.UserSystemRole{}).Error; errAssignments != nil {
			return errAssignments
		}
		if errRoles := tx.Where("system_id = ?", id).Delete(&models.Role{}).Error; errRoles != nil {
			return errRoles
		}
		return tx.Delete(&models.System{}, id).Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
