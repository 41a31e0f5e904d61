package trust

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ContextKeyIdentity is the gin context key holding the resolved *Identity.
const ContextKeyIdentity = "identity"

// Middleware authenticates the request and enforces the required role for
// this application. Verification failures degrade to 401 so downstream
// applications answer "please log in" instead of crashing; a valid token
// without a grant in this system yields 403.
func (v *Verifier) Middleware(requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, errAuth := v.Authenticate(c.Request.Context(), c.Request)
		if errAuth != nil {
			if errors.Is(errAuth, ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not authorized for this application"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if !identity.HasRole(requiredRole) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Set(ContextKeyIdentity, identity)
		c.Next()
	}
}

// IdentityFromContext returns the identity stored by Middleware, or nil.
func IdentityFromContext(c *gin.Context) *Identity {
	value, ok := c.Get(ContextKeyIdentity)
	if !ok {
		return nil
	}
	identity, ok := value.(*Identity)
	if !ok {
		return nil
	}
	return identity
}
