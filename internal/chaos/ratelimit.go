// Package chaos implements the Chaos Pipeline (spec.md §4.5): rate
// limiting, admission control, latency injection, fault injection, and
// post-response traffic shaping, all independent of the deterministic
// stream internal/template uses.
package chaos

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/mockforge/core/internal/model"
)

// perIPCacheSize bounds the per-client-IP limiter cache so a flood of
// distinct source addresses can't grow it unboundedly; the least
// recently used bucket is evicted first.
const perIPCacheSize = 4096

// RateLimiter holds the global token bucket and an LRU-bounded set of
// per-client-IP buckets. Refill is computed lazily by
// golang.org/x/time/rate on every Allow call, matching spec.md §4.5's
// "refill is computed lazily on check."
type RateLimiter struct {
	global *rate.Limiter
	perIP  *lru.Cache[string, *rate.Limiter]
	cfg    model.RateLimitConfig
}

// NewRateLimiter builds limiters from cfg. A zero GlobalRPS/PerIPRPS
// disables the corresponding bucket.
func NewRateLimiter(cfg model.RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{cfg: cfg}
	if cfg.GlobalRPS > 0 {
		rl.global = rate.NewLimiter(rate.Limit(cfg.GlobalRPS), max(cfg.GlobalBurst, 1))
	}
	if cfg.PerIPRPS > 0 {
		cache, _ := lru.New[string, *rate.Limiter](perIPCacheSize)
		rl.perIP = cache
	}
	return rl
}

// Allow reports whether a request from clientIP may proceed. Both the
// global and per-IP buckets (when configured) must have a token
// available.
func (rl *RateLimiter) Allow(clientIP string) bool {
	if rl.global != nil && !rl.global.Allow() {
		return false
	}
	if rl.perIP == nil {
		return true
	}
	limiter := rl.perIPLimiter(clientIP)
	return limiter.Allow()
}

func (rl *RateLimiter) perIPLimiter(clientIP string) *rate.Limiter {
	limiter, ok := rl.perIP.Get(clientIP)
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(rl.cfg.PerIPRPS), max(rl.cfg.PerIPBurst, 1))
		rl.perIP.Add(clientIP, limiter)
	}
	return limiter
}

// GlobalRemaining reports the global bucket's current token count, for
// the rate_limit_remaining gauge (spec.md §4.8). ok is false when no
// global bucket is configured.
func (rl *RateLimiter) GlobalRemaining() (remaining float64, ok bool) {
	if rl.global == nil {
		return 0, false
	}
	return rl.global.Tokens(), true
}

// PerIPRemaining reports clientIP's current per-IP token count,
// creating the bucket (at full capacity) if none has been seen yet. ok
// is false when no per-IP bucket is configured at all.
func (rl *RateLimiter) PerIPRemaining(clientIP string) (remaining float64, ok bool) {
	if rl.perIP == nil {
		return 0, false
	}
	return rl.perIPLimiter(clientIP).Tokens(), true
}
