package chaos

import (
	"math/rand"
	"sync"
	"time"
)

// stream is a mutex-guarded *rand.Rand, deliberately kept separate
// from internal/template's per-token deterministic streams (spec.md
// §4.5: "a separate generator stream from template expansion, so that
// seeding templates does not by itself make chaos deterministic").
type stream struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// newStream seeds from seed when non-zero (deterministic chaos for
// tests), otherwise from the current time.
func newStream(seed int64) *stream {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &stream{rng: rand.New(rand.NewSource(seed))}
}

func (s *stream) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *stream) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}
