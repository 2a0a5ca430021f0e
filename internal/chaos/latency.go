package chaos

import (
	"context"
	"time"

	"github.com/mockforge/core/internal/model"
)

// InjectLatency sleeps for base_ms + jitter per spec.md §4.5, where
// base_ms is replaced by the first tag-scoped override (in
// profile.TagBaseMS's declared order) whose tag op carries, and jitter
// is uniform in [-jitter_ms, +jitter_ms] saturating at zero. It returns
// early (no sleep) if the probability draw misses or the profile is
// disabled. The sleep honors ctx cancellation.
func (e *Engine) InjectLatency(ctx context.Context, profile model.LatencyProfile, op *model.SpecOperation) time.Duration {
	if !profile.Enabled {
		return 0
	}
	if e.rng.Float64() >= profile.Probability {
		return 0
	}

	base := profile.BaseMS
	if op != nil {
		for _, o := range profile.TagBaseMS {
			if op.HasTag(o.Tag) {
				base = o.BaseMS
				break
			}
		}
	}

	jitter := 0
	if profile.JitterMS > 0 {
		jitter = e.rng.Intn(2*profile.JitterMS+1) - profile.JitterMS
	}
	totalMS := base + jitter
	if totalMS < 0 {
		totalMS = 0
	}

	d := time.Duration(totalMS) * time.Millisecond
	if d <= 0 {
		return 0
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
	return d
}
