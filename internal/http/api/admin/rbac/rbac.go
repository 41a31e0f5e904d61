// Package rbac evaluates system-scoped authorization for the management
// surface. A superuser bypasses every check; otherwise the actor must hold
// an active Admin assignment in the system that owns the target object, and
// list endpoints are filtered to those systems rather than merely gated.
package rbac

import (
	"context"
	"fmt"

	"github.com/stackpass/identity/internal/models"
	"gorm.io/gorm"
)

// Actor is the authenticated management caller with resolved admin scope.
type Actor struct {
	User         *models.User
	adminSystems map[uint64]struct{}
}

// Resolve loads the actor's admin assignments once per request.
func Resolve(ctx context.Context, db *gorm.DB, user *models.User) (*Actor, error) {
	actor := &Actor{User: user, adminSystems: make(map[uint64]struct{})}
	if user.IsSuperuser {
		return actor, nil
	}

	var rows []models.UserSystemRole
	errFind := db.WithContext(ctx).
		Joins("JOIN roles ON roles.id = user_system_roles.role_id").
		Where("user_system_roles.user_id = ? AND user_system_roles.is_active = ? AND roles.name = ?",
			user.ID, true, models.RoleAdmin).
		Find(&rows).Error
	if errFind != nil {
		return nil, fmt.Errorf("rbac: load admin assignments: %w", errFind)
	}
	for _, row := range rows {
		actor.adminSystems[row.SystemID] = struct{}{}
	}
	return actor, nil
}

// IsSuperuser reports whether the actor bypasses all scoped checks.
func (a *Actor) IsSuperuser() bool {
	return a != nil && a.User != nil && a.User.IsSuperuser
}

// IsAdminOf reports whether the actor may manage objects owned by the
// system.
func (a *Actor) IsAdminOf(systemID uint64) bool {
	if a.IsSuperuser() {
		return true
	}
	if a == nil {
		return false
	}
	_, ok := a.adminSystems[systemID]
	return ok
}

// HasAnyAdmin reports whether the actor is admin of at least one system.
func (a *Actor) HasAnyAdmin() bool {
	return a.IsSuperuser() || (a != nil && len(a.adminSystems) > 0)
}

// AdminSystemIDs returns the systems the actor administers, for filtering
// list queries. Callers must check IsSuperuser first; for superusers the
// list is empty and means "no filter".
func (a *Actor) AdminSystemIDs() []uint64 {
	if a == nil {
		return nil
	}
	ids := make([]uint64, 0, len(a.adminSystems))
	for id := range a.adminSystems {
		ids = append(ids, id)
	}
	return ids
}

// IsProtectedRole reports whether the role is shielded from deletion and
// rename by non-superusers.
func IsProtectedRole(role *models.Role) bool {
	if role == nil {
		return false
	}
	return role.IsDefault || role.Name == models.RoleAdmin
}

// UserHoldsAdmin reports whether the target user holds any active Admin
// assignment. Non-superuser admins may not edit such users.
func UserHoldsAdmin(ctx context.Context, db *gorm.DB, userID uint64) (bool, error) {
	var count int64
	errCount := db.WithContext(ctx).Model(&models.UserSystemRole{}).
		Joins("JOIN roles ON roles.id = user_system_roles.role_id").
		Where("user_system_roles.user_id = ? AND user_system_roles.is_active = ? AND roles.name = ?",
			userID, true, models.RoleAdmin).
		Count(&count).Error
	if errCount != nil {
		return false, fmt.Errorf("rbac: count admin assignments: %w", errCount)
	}
	return count > 0, nil
}

// CanEditUser decides whether the actor may modify the target user's
// record. Superusers always can; admins cannot touch superusers or other
// admins, and must share a system with the target.
func (a *Actor) CanEditUser(ctx context.Context, db *gorm.DB, target *models.User) (bool, error) {
	if a.IsSuperuser() {
		return true, nil
	}
	if target.IsSuperuser {
		return false, nil
	}
	holdsAdmin, errAdmin := UserHoldsAdmin(ctx, db, target.ID)
	if errAdmin != nil {
		return false, errAdmin
	}
	if holdsAdmin {
		return false, nil
	}
	return a.sharesSystemWith(ctx, db, target.ID)
}

// sharesSystemWith reports whether the target has an assignment in any
// system the actor administers.
func (a *Actor) sharesSystemWith(ctx context.Context, db *gorm.DB, userID uint64) (bool, error) {
	ids := a.AdminSystemIDs()
	if len(ids) == 0 {
		return false, nil
	}
	var count int64
	errCount := db.WithContext(ctx).Model(&models.UserSystemRole{}).
		Where("user_id = ? AND system_id IN ?", userID, ids).
		Count(&count).Error
	if errCount != nil {
		return false, fmt.Errorf("rbac: count shared systems: %w", errCount)
	}
	return count > 0, nil
}
