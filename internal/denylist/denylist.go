// Package denylist tracks per-user token revocation epochs. Issued tokens
// carry the epoch current at signing time; verifiers reject tokens whose
// epoch is older than the stored one. Bumping the epoch on logout or
// password reset therefore revokes every outstanding token without keeping
// a list of token IDs.
package denylist

import "context"

// Denylist reads and advances per-user revocation epochs. A missing entry
// reads as epoch zero, matching tokens issued before any revocation.
type Denylist interface {
	// Epoch returns the user's current revocation epoch.
	Epoch(ctx context.Context, userID uint64) (int64, error)
	// Bump advances the epoch and returns the new value.
	Bump(ctx context.Context, userID uint64) (int64, error)
}
