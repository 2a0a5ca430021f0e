package pipeline

import (
	"time"

	"github.com/mockforge/core/internal/model"
)

// requestState is the per-request context spec.md §4.7 calls for: an
// immutable request, a borrowed UnifiedState snapshot, a mutable
// response builder, a diagnostics collector, and the bookkeeping the
// always-run stages need regardless of where the happy path
// short-circuited. Stages communicate through its fields; there is no
// package-level mutable state.
type requestState struct {
	Request *model.ProtocolRequest
	State   model.UnifiedState

	Operation *model.SpecOperation
	Params    model.PathParams

	Response    *Response
	Diagnostics []model.Diagnostic

	// rejected is set by rate-limiting/admission control (stage 2):
	// everything past latency injection is skipped.
	rejected bool
	// ReplayHit is set by the replay-lookup stage (stage 4): fault
	// injection onward is skipped, but latency injection still runs.
	ReplayHit bool

	RequestKey string

	AppliedOverrides []string
	TriggeredFaults  []string

	StartedAt time.Time
}

func newRequestState(req *model.ProtocolRequest, snapshot model.UnifiedState) *requestState {
	return &requestState{
		Request:   req,
		State:     snapshot,
		StartedAt: time.Now(),
	}
}

func (rc *requestState) addDiagnostic(d model.Diagnostic) {
	rc.Diagnostics = append(rc.Diagnostics, d)
}

func (rc *requestState) setResponse(resp *Response) {
	rc.Response = resp
}

// halted reports whether response-producing stages past the current
// point should be skipped. Always-run stages (shaping, recording,
// observability) never consult this.
func (rc *requestState) halted() bool {
	return rc.rejected || rc.ReplayHit
}
