package denylist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDenylist keeps revocation epochs in Redis so every identity-service
// instance and every downstream verifier sees the same epoch.
type RedisDenylist struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisDenylist constructs a RedisDenylist with the given entry TTL.
func NewRedisDenylist(client *redis.Client, prefix string, ttl time.Duration) *RedisDenylist {
	return &RedisDenylist{
		client: client,
		prefix: strings.TrimSpace(prefix),
		ttl:    ttl,
	}
}

// Epoch returns the user's current revocation epoch.
func (d *RedisDenylist) Epoch(ctx context.Context, userID uint64) (int64, error) {
	if d == nil || d.client == nil {
		return 0, nil
	}
	epoch, errGet := d.client.Get(ctx, d.buildKey(userID)).Int64()
	if errGet != nil {
		if errors.Is(errGet, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("denylist: read epoch: %w", errGet)
	}
	return epoch, nil
}

// Bump advances the epoch and refreshes the entry TTL.
func (d *RedisDenylist) Bump(ctx context.Context, userID uint64) (int64, error) {
	if d == nil || d.client == nil {
		return 0, fmt.Errorf("denylist: not initialized")
	}
	key := d.buildKey(userID)
	pipe := d.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, d.ttl)
	if _, errExec := pipe.Exec(ctx); errExec != nil {
		return 0, fmt.Errorf("denylist: bump epoch: %w", errExec)
	}
	return incr.Val(), nil
}

func (d *RedisDenylist) buildKey(userID uint64) string {
	if d.prefix == "" {
		return fmt.Sprintf("revoke:%d", userID)
	}
	return fmt.Sprintf("%s:revoke:%d", d.prefix, userID)
}
