package chaos

import (
	"sync/atomic"

	"github.com/mockforge/core/internal/model"
)

// Engine is the chaos pipeline's runtime state: the deterministic (or
// not) random stream, the current ChaosConfig snapshot, the rate
// limiter, and the admission gate. Config reload swaps the snapshot
// atomically, same as the registry and override engine.
type Engine struct {
	rng       *stream
	cfg       atomic.Pointer[model.ChaosConfig]
	limiter   atomic.Pointer[RateLimiter]
	admission *Admission
}

// NewEngine builds a chaos engine from an initial configuration.
func NewEngine(cfg model.ChaosConfig) *Engine {
	e := &Engine{
		rng:       newStream(cfg.Seed),
		admission: NewAdmission(cfg.Shaping.MaxConcurrent),
	}
	cloned := cfg.Clone()
	e.cfg.Store(&cloned)
	limiter := NewRateLimiter(cfg.RateLimit)
	e.limiter.Store(limiter)
	return e
}

// Reload publishes a new ChaosConfig. The admission gate's per-protocol
// caps and the random stream's seed are intentionally not re-created on
// reload: live semaphores mid-acquire must not be replaced out from
// under an in-flight request, and reseeding the stream would break the
// "deterministic across replays" guarantee for any response generated
// after the reload.
func (e *Engine) Reload(cfg model.ChaosConfig) {
	cloned := cfg.Clone()
	e.cfg.Store(&cloned)
	e.limiter.Store(NewRateLimiter(cfg.RateLimit))
}

// Config returns the currently active configuration snapshot.
func (e *Engine) Config() model.ChaosConfig {
	return *e.cfg.Load()
}

// CheckRateLimit reports whether a request from clientIP may proceed
// under the current rate-limit configuration.
func (e *Engine) CheckRateLimit(clientIP string) bool {
	return e.limiter.Load().Allow(clientIP)
}

// Admission exposes the admission gate for the pipeline orchestrator
// to acquire/release around expensive work.
func (e *Engine) Admission() *Admission {
	return e.admission
}

// RateLimitRemaining reports the current token-bucket estimate for the
// global bucket (clientIP == "") or a specific client's per-IP bucket,
// feeding the rate_limit_remaining gauge (spec.md §4.8). ok is false
// when the requested bucket isn't configured.
func (e *Engine) RateLimitRemaining(clientIP string) (remaining float64, ok bool) {
	rl := e.limiter.Load()
	if clientIP == "" {
		return rl.GlobalRemaining()
	}
	return rl.PerIPRemaining(clientIP)
}
