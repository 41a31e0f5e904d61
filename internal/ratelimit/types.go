package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Limiter provides fixed-window rate limit checks.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, now time.Time) (Result, error)
}

// KeyForIP builds a limiter key for a client address. Used to throttle
// credential guessing on the token endpoint.
func KeyForIP(ip string) string {
	if ip == "" {
		return ""
	}
	return "ip:" + ip
}

// KeyForUser builds a limiter key for a user. Used to throttle one-time
// code issuance.
func KeyForUser(userID uint64) string {
	if userID == 0 {
		return ""
	}
	return fmt.Sprintf("u:%d", userID)
}
