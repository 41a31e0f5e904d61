// Package admin mounts the management surface: systems, roles, users, and
// role assignments, authorized by system-scoped RBAC.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stackpass/identity/internal/auth"
	handlers "github.com/stackpass/identity/internal/http/api/admin/handlers"
	"github.com/stackpass/identity/internal/http/api/admin/rbac"
	"github.com/stackpass/identity/internal/models"
	"github.com/stackpass/identity/internal/trust"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers the management routes and middleware.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, service *auth.Service) {
	if r == nil || db == nil || service == nil {
		return
	}

	group := r.Group("/v0/admin")
	group.Use(adminAuthMiddleware(db, service))

	systemHandler := handlers.NewSystemHandler(db)
	group.POST("/systems", systemHandler.Create)
	group.GET("/systems", systemHandler.List)
	group.GET("/systems/:id", systemHandler.Get)
	group.PUT("/systems/:id", systemHandler.Update)
	group.DELETE("/systems/:id", systemHandler.Delete)

	roleHandler := handlers.NewRoleHandler(db)
	group.POST("/systems/:id/roles", roleHandler.Create)
	group.GET("/systems/:id/roles", roleHandler.List)
	group.PUT("/roles/:id", roleHandler.Update)
	group.DELETE("/roles/:id", roleHandler.Delete)

	userHandler := handlers.NewUserHandler(db, service)
	group.POST("/users", userHandler.Create)
	group.GET("/users", userHandler.List)
	group.GET("/users/:id", userHandler.Get)
	group.PUT("/users/:id", userHandler.Update)
	group.DELETE("/users/:id", userHandler.Delete)
	group.POST("/users/:id/unlock", userHandler.Unlock)
	group.POST("/users/:id/approve", userHandler.Approve)
	group.POST("/users/:id/reject", userHandler.Reject)

	assignmentHandler := handlers.NewAssignmentHandler(db)
	group.POST("/assignments", assignmentHandler.Create)
	group.GET("/assignments", assignmentHandler.List)
	group.DELETE("/assignments/:id", assignmentHandler.Delete)
}

// adminAuthMiddleware validates the caller's access token, loads the user,
// and resolves the RBAC actor. Callers without any admin grant are turned
// away here; object-level checks happen in the handlers.
func adminAuthMiddleware(db *gorm.DB, service *auth.Service) gin.HandlerFunc {
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

		actor, errResolve := rbac.Resolve(c.Request.Context(), db, &user)
		if errResolve != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "authorization failed"})
			return
		}
		if !actor.HasAnyAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}

		c.Set(handlers.ContextKeyActor, actor)
		c.Next()
	}
}
