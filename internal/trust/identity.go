// Package trust verifies identity-service tokens inside a downstream
// application and derives a local authorization decision from their claims,
// without a synchronous call back to the identity service.
package trust

import "github.com/stackpass/identity/internal/models"

// Kind distinguishes how an identity was resolved.
type Kind int

const (
	// IdentityLocal was resolved from this application's own database.
	IdentityLocal Kind = iota
	// IdentityFederated was synthesized from token claims alone; no row
	// for this user exists locally.
	IdentityFederated
)

// Identity is the resolved caller. The variant is fixed once at token
// verification time; downstream code switches on Kind instead of probing
// for missing fields.
type Identity struct {
	Kind Kind

	UserID   uint64
	Email    string
	Username string

	// Role is the caller's role in the verifying application's system.
	Role string
	// Superuser is only ever true for local identities.
	Superuser bool

	// Profile holds best-effort backfilled attributes (department, ...).
	// May be nil; federated requests proceed without it.
	Profile map[string]any

	// User is set for local identities only.
	User *models.User
}

// HasRole reports whether the identity satisfies the required role. The
// Admin role and superusers satisfy any requirement.
func (id *Identity) HasRole(required string) bool {
	if id == nil {
		return false
	}
	if id.Superuser || id.Role == models.RoleAdmin {
		return true
	}
	return required == "" || id.Role == required
}
