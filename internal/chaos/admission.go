package chaos

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/mockforge/core/internal/apierrors"
	"github.com/mockforge/core/internal/model"
)

// Admission caps concurrent in-flight requests per protocol (spec.md
// §4.5). Each protocol gets its own weighted semaphore so a flood on
// one protocol adapter cannot starve another's budget.
type Admission struct {
	mu     sync.Mutex
	sems   map[model.Protocol]*semaphore.Weighted
	maxPer int64
}

// NewAdmission builds an Admission control gate allowing up to
// maxConcurrent in-flight requests per protocol. maxConcurrent <= 0
// disables the cap entirely.
func NewAdmission(maxConcurrent int) *Admission {
	return &Admission{
		sems:   make(map[model.Protocol]*semaphore.Weighted),
		maxPer: int64(maxConcurrent),
	}
}

// Acquire reserves one admission slot for protocol. The returned
// release function must be called exactly once, regardless of error.
// When the cap is exceeded it returns apierrors.ErrRateLimited, per
// spec.md §4.5's "connection-throttled error."
func (a *Admission) Acquire(ctx context.Context, protocol model.Protocol) (release func(), err error) {
	if a.maxPer <= 0 {
		return func() {}, nil
	}

	sem := a.semaphoreFor(protocol)
	if !sem.TryAcquire(1) {
		return func() {}, apierrors.NewRateLimitedError("admission limit exceeded for protocol "+string(protocol), nil)
	}
	return func() { sem.Release(1) }, nil
}

func (a *Admission) semaphoreFor(protocol model.Protocol) *semaphore.Weighted {
	a.mu.Lock()
	defer a.mu.Unlock()
	sem, ok := a.sems[protocol]
	if !ok {
		sem = semaphore.NewWeighted(a.maxPer)
		a.sems[protocol] = sem
	}
	return sem
}
