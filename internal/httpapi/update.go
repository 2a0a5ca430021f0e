package httpapi

import (
	"time"

	"github.com/mockforge/core/internal/model"
)

// latencyUpdate, faultUpdate, rateLimitUpdate and shapingUpdate mirror
// model.ChaosConfig's nested profiles with every leaf field as a
// pointer, so the JSON decoder can distinguish "the caller omitted
// this field" (nil) from "the caller set it, including to zero"
// (non-nil pointing at zero). go-playground/validator's `omitempty`
// tag means each constraint only applies when the caller actually sent
// the field, matching the admin API's "partial update" contract
// (spec.md §6).
type latencyUpdate struct {
	Enabled     *bool                      `json:"enabled,omitempty"`
	Probability *float64                   `json:"probability,omitempty" validate:"omitempty,min=0,max=1"`
	BaseMS      *int                       `json:"base_ms,omitempty" validate:"omitempty,min=0"`
	JitterMS    *int                       `json:"jitter_ms,omitempty" validate:"omitempty,min=0"`
	TagBaseMS   []model.TagLatencyOverride `json:"tag_base_ms,omitempty"`
}

type faultUpdate struct {
	Enabled             *bool    `json:"enabled,omitempty"`
	StatusSet           []int    `json:"status_set,omitempty"`
	StatusProbability   *float64 `json:"status_probability,omitempty" validate:"omitempty,min=0,max=1"`
	ConnectionErrorProb *float64 `json:"connection_error_probability,omitempty" validate:"omitempty,min=0,max=1"`
	TimeoutProbability  *float64 `json:"timeout_probability,omitempty" validate:"omitempty,min=0,max=1"`
	TimeoutMS           *int     `json:"timeout_ms,omitempty" validate:"omitempty,min=0"`
	PartialResponseProb *float64 `json:"partial_response_probability,omitempty" validate:"omitempty,min=0,max=1"`
}

type rateLimitUpdate struct {
	GlobalRPS   *float64 `json:"global_rps,omitempty" validate:"omitempty,min=0"`
	GlobalBurst *int     `json:"global_burst,omitempty" validate:"omitempty,min=0"`
	PerIPRPS    *float64 `json:"per_ip_rps,omitempty" validate:"omitempty,min=0"`
	PerIPBurst  *int     `json:"per_ip_burst,omitempty" validate:"omitempty,min=0"`
}

type shapingUpdate struct {
	MaxConcurrent     *int     `json:"max_concurrent,omitempty" validate:"omitempty,min=0"`
	BandwidthBytesSec *int64   `json:"bandwidth_bytes_sec,omitempty" validate:"omitempty,min=0"`
	PacketLossProb    *float64 `json:"packet_loss_probability,omitempty" validate:"omitempty,min=0,max=1"`
}

// chaosConfigUpdate is the request body shape of
// `POST /__mockforge/api/state` (spec.md §6): every section is
// optional, and within a present section every field is optional.
type chaosConfigUpdate struct {
	Enabled   *bool            `json:"enabled,omitempty"`
	Latency   *latencyUpdate   `json:"latency,omitempty"`
	Fault     *faultUpdate     `json:"fault,omitempty"`
	RateLimit *rateLimitUpdate `json:"rate_limit,omitempty"`
	Shaping   *shapingUpdate   `json:"shaping,omitempty"`
}

// toDelta builds a model.ChaosConfig carrying only the fields the
// caller actually set; every field the caller omitted is left at its
// zero value. chaosconfig.Manager.ApplyPartial merges this delta onto
// the live configuration with mergo, so a zero field here never
// clobbers the corresponding live field (see ApplyPartial's doc
// comment for the one known edge case this implies).
func (u *chaosConfigUpdate) toDelta() model.ChaosConfig {
	var next model.ChaosConfig
	if u.Enabled != nil {
		next.Enabled = *u.Enabled
	}
	if l := u.Latency; l != nil {
		if l.Enabled != nil {
			next.Latency.Enabled = *l.Enabled
		}
		if l.Probability != nil {
			next.Latency.Probability = *l.Probability
		}
		if l.BaseMS != nil {
			next.Latency.BaseMS = *l.BaseMS
		}
		if l.JitterMS != nil {
			next.Latency.JitterMS = *l.JitterMS
		}
		if l.TagBaseMS != nil {
			next.Latency.TagBaseMS = l.TagBaseMS
		}
	}
	if f := u.Fault; f != nil {
		if f.Enabled != nil {
			next.Fault.Enabled = *f.Enabled
		}
		if f.StatusSet != nil {
			next.Fault.StatusSet = f.StatusSet
		}
		if f.StatusProbability != nil {
			next.Fault.StatusProbability = *f.StatusProbability
		}
		if f.ConnectionErrorProb != nil {
			next.Fault.ConnectionErrorProb = *f.ConnectionErrorProb
		}
		if f.TimeoutProbability != nil {
			next.Fault.TimeoutProbability = *f.TimeoutProbability
		}
		if f.TimeoutMS != nil {
			next.Fault.Timeout = msToDuration(*f.TimeoutMS)
		}
		if f.PartialResponseProb != nil {
			next.Fault.PartialResponseProb = *f.PartialResponseProb
		}
	}
	if rl := u.RateLimit; rl != nil {
		if rl.GlobalRPS != nil {
			next.RateLimit.GlobalRPS = *rl.GlobalRPS
		}
		if rl.GlobalBurst != nil {
			next.RateLimit.GlobalBurst = *rl.GlobalBurst
		}
		if rl.PerIPRPS != nil {
			next.RateLimit.PerIPRPS = *rl.PerIPRPS
		}
		if rl.PerIPBurst != nil {
			next.RateLimit.PerIPBurst = *rl.PerIPBurst
		}
	}
	if s := u.Shaping; s != nil {
		if s.MaxConcurrent != nil {
			next.Shaping.MaxConcurrent = *s.MaxConcurrent
		}
		if s.BandwidthBytesSec != nil {
			next.Shaping.BandwidthBytesSec = *s.BandwidthBytesSec
		}
		if s.PacketLossProb != nil {
			next.Shaping.PacketLossProb = *s.PacketLossProb
		}
	}
	return next
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
