package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stackpass/identity/internal/models"
)

// ContextKeyUser is the gin context key holding the authenticated
// *models.User.
const ContextKeyUser = "authUser"

// UserFromContext returns the authenticated user stored by the auth
// middleware, or nil.
func UserFromContext(c *gin.Context) *models.User {
	value, ok := c.Get(ContextKeyUser)
	if !ok {
		return nil
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil
	}
	return user
}

// ProfileHandler serves the caller's own profile. Downstream trust
// verifiers call this endpoint to backfill attributes missing from token
// claims.
type ProfileHandler struct{}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler() *ProfileHandler {
	return &ProfileHandler{}
}

// Get returns the authenticated user's identity and profile attributes.
func (h *ProfileHandler) Get(c *gin.Context) {
	user := UserFromContext(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	profile := map[string]any{}
	if len(user.Profile) > 0 {
		if errDecode := json.Unmarshal(user.Profile, &profile); errDecode != nil {
			profile = map[string]any{}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"id":       user.ID,
		"email":    user.Email,
		"username": user.Username,
		"profile":  profile,
	})
}
