package chaos

import (
	"context"
	"time"

	"github.com/mockforge/core/internal/model"
)

// ShapeResponse implements spec.md §4.5's post-response shaping: a
// bandwidth-proportional sleep, and an independent packet-loss draw
// that signals the caller to replace the response with an error
// instead of sending the body.
func (e *Engine) ShapeResponse(ctx context.Context, shaping model.TrafficShaping, bodyLen int) (dropped bool) {
	if shaping.PacketLossProb > 0 && e.rng.Float64() < shaping.PacketLossProb {
		return true
	}
	if shaping.BandwidthBytesSec > 0 && bodyLen > 0 {
		seconds := float64(bodyLen) / float64(shaping.BandwidthBytesSec)
		d := time.Duration(seconds * float64(time.Second))
		if d > 0 {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
			}
		}
	}
	return false
}
