package chaos

import (
	"time"

	"google.golang.org/grpc/codes"

	"github.com/mockforge/core/internal/model"
)

// FaultKind names which synthetic fault InjectFault chose, if any.
// Faults are checked in severity order (spec.md §4.5 does not specify
// an order for simultaneous draws, so connection-error, the most
// disruptive, takes precedence over timeout, which takes precedence
// over a plain status fault): only one "hard" fault fires per call,
// but PartialResponse is independent and may accompany any of them.
type FaultKind string

const (
	FaultNone            FaultKind = ""
	FaultConnectionError FaultKind = "connection_error"
	FaultTimeout         FaultKind = "timeout"
	FaultStatus          FaultKind = "status"
)

// FaultResult is the outcome of one InjectFault call.
type FaultResult struct {
	Kind            FaultKind
	Status          int
	GRPCCode        codes.Code
	TimeoutDuration time.Duration
	PartialResponse bool
}

// InjectFault independently draws each configured fault probability
// and returns the highest-severity one that fired, plus whether the
// independent partial-response draw also fired.
func (e *Engine) InjectFault(profile model.FaultProfile) FaultResult {
	result := FaultResult{Kind: FaultNone}
	if !profile.Enabled {
		return result
	}

	if profile.PartialResponseProb > 0 && e.rng.Float64() < profile.PartialResponseProb {
		result.PartialResponse = true
	}

	if profile.ConnectionErrorProb > 0 && e.rng.Float64() < profile.ConnectionErrorProb {
		result.Kind = FaultConnectionError
		return result
	}

	if profile.TimeoutProbability > 0 && e.rng.Float64() < profile.TimeoutProbability {
		result.Kind = FaultTimeout
		result.TimeoutDuration = profile.Timeout
		return result
	}

	if profile.StatusProbability > 0 && len(profile.StatusSet) > 0 && e.rng.Float64() < profile.StatusProbability {
		status := profile.StatusSet[e.rng.Intn(len(profile.StatusSet))]
		result.Kind = FaultStatus
		result.Status = status
		result.GRPCCode = httpToGRPCCode(status)
		return result
	}

	return result
}

// httpToGRPCCode maps an injected HTTP status to its closest gRPC
// status code, per spec.md §4.5's example mapping (500 -> INTERNAL,
// 429 -> RESOURCE_EXHAUSTED).
func httpToGRPCCode(status int) codes.Code {
	switch status {
	case 400:
		return codes.InvalidArgument
	case 401:
		return codes.Unauthenticated
	case 403:
		return codes.PermissionDenied
	case 404:
		return codes.NotFound
	case 408:
		return codes.DeadlineExceeded
	case 409:
		return codes.AlreadyExists
	case 429:
		return codes.ResourceExhausted
	case 500:
		return codes.Internal
	case 501:
		return codes.Unimplemented
	case 503:
		return codes.Unavailable
	case 504:
		return codes.DeadlineExceeded
	default:
		return codes.Unknown
	}
}
