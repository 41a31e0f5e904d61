package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stackpass/identity/internal/http/api/admin/rbac"
)

// ContextKeyActor is the gin context key holding the resolved *rbac.Actor.
const ContextKeyActor = "actor"

// ActorFromContext returns the actor stored by the admin middleware, or nil.
func ActorFromContext(c *gin.Context) *rbac.Actor {
	value, ok := c.Get(ContextKeyActor)
	if !ok {
		return nil
	}
	actor, ok := value.(*rbac.Actor)
	if !ok {
		return nil
	}
	return actor
}

// parseIDParam parses the :id route parameter.
func parseIDParam(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		return 0, false
	}
	return id, true
}
