package denylist

import (
	"context"
	"sync"
	"time"
)

type memoryEpoch struct {
	epoch     int64
	expiresAt time.Time
}

// MemoryDenylist keeps revocation epochs in process memory. Entries expire
// after the configured TTL, which must be at least the refresh token
// lifetime so an epoch outlives every token it revokes. State is local to
// one process; multi-instance deployments should use the Redis backend.
type MemoryDenylist struct {
	mu      sync.Mutex
	entries map[uint64]*memoryEpoch
	ttl     time.Duration
	nowFn   func() time.Time
}

// NewMemoryDenylist constructs a MemoryDenylist with the given entry TTL.
func NewMemoryDenylist(ttl time.Duration) *MemoryDenylist {
	return &MemoryDenylist{
		entries: make(map[uint64]*memoryEpoch),
		ttl:     ttl,
		nowFn:   time.Now,
	}
}

// Epoch returns the user's current revocation epoch.
func (d *MemoryDenylist) Epoch(_ context.Context, userID uint64) (int64, error) {
	now := d.nowFn()
	d.mu.Lock()
	defer d.mu.Unlock()
	entry := d.entries[userID]
	if entry == nil {
		return 0, nil
	}
	if now.After(entry.expiresAt) {
		delete(d.entries, userID)
		return 0, nil
	}
	return entry.epoch, nil
}

// Bump advances the epoch and refreshes the entry TTL.
func (d *MemoryDenylist) Bump(_ context.Context, userID uint64) (int64, error) {
	now := d.nowFn()
	d.mu.Lock()
	defer d.mu.Unlock()
	entry := d.entries[userID]
	if entry == nil || now.After(entry.expiresAt) {
		entry = &memoryEpoch{}
		d.entries[userID] = entry
	}
	entry.epoch++
	entry.expiresAt = now.Add(d.ttl)
	return entry.epoch, nil
}
