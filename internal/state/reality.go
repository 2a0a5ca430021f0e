package state

import (
	"encoding/binary"
	"math"

	"github.com/minio/highwayhash"
)

// realityHashKey reuses the zero-key convention already established by
// internal/template and internal/proxy's highwayhash uses; domain
// separation comes from the "reality\x00" tag mixed into the input, not
// a distinct key, so this is one more independent stream rather than a
// collision with template or request-key hashing.
var realityHashKey = [32]byte{}

// ShouldUseReal draws a deterministic decision for whether a response
// at the given reality ratio should blend in real (proxied) data,
// keyed by (seed, requestID) so two requests at the same ratio can
// still differ, but a replay of the same request with the same seed
// reproduces the same decision. This stream is independent of both
// chaos's and template's generator streams (spec.md §4.5's "separate
// generator stream" invariant, extended here to the reality continuum
// per SPEC_FULL.md).
func ShouldUseReal(seed int64, requestID string, ratio float64) bool {
	if ratio <= 0 {
		return false
	}
	if ratio >= 1 {
		return true
	}

	buf := make([]byte, 8, 8+len("reality")+1+len(requestID))
	binary.LittleEndian.PutUint64(buf, uint64(seed))
	buf = append(buf, "reality"...)
	buf = append(buf, 0)
	buf = append(buf, requestID...)

	sum := highwayhash.Sum64(buf, realityHashKey[:])
	draw := float64(sum) / float64(math.MaxUint64)
	return draw < ratio
}
