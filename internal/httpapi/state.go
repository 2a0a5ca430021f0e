package httpapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/mockforge/core/internal/apierrors"
	"github.com/mockforge/core/internal/chaosconfig"
	"github.com/mockforge/core/internal/model"
	"github.com/mockforge/core/internal/override"
)

var validate = validator.New()

// LatencyView, FaultView, RateLimitView and ShapingView are the
// response-side mirror of model.ChaosConfig's nested profiles, plain
// (non-pointer) since GET responses always report every field.
type LatencyView struct {
	Enabled     bool                       `json:"enabled"`
	Probability float64                    `json:"probability"`
	BaseMS      int                        `json:"base_ms"`
	JitterMS    int                        `json:"jitter_ms"`
	TagBaseMS   []model.TagLatencyOverride `json:"tag_base_ms,omitempty"`
}

type FaultView struct {
	Enabled             bool    `json:"enabled"`
	StatusSet           []int   `json:"status_set,omitempty"`
	StatusProbability   float64 `json:"status_probability"`
	ConnectionErrorProb float64 `json:"connection_error_probability"`
	TimeoutProbability  float64 `json:"timeout_probability"`
	TimeoutMS           int64   `json:"timeout_ms"`
	PartialResponseProb float64 `json:"partial_response_probability"`
}

type RateLimitView struct {
	GlobalRPS   float64 `json:"global_rps"`
	GlobalBurst int     `json:"global_burst"`
	PerIPRPS    float64 `json:"per_ip_rps"`
	PerIPBurst  int     `json:"per_ip_burst"`
}

type ShapingView struct {
	MaxConcurrent     int     `json:"max_concurrent"`
	BandwidthBytesSec int64   `json:"bandwidth_bytes_sec"`
	PacketLossProb    float64 `json:"packet_loss_probability"`
}

// ChaosConfigView is the GET/POST /__mockforge/api/state JSON shape for
// the chaos section, named in SPEC_FULL.md's admin-API-shapes
// supplement.
type ChaosConfigView struct {
	Enabled   bool          `json:"enabled"`
	Latency   LatencyView   `json:"latency"`
	Fault     FaultView     `json:"fault"`
	RateLimit RateLimitView `json:"rate_limit"`
	Shaping   ShapingView   `json:"shaping"`
}

func newChaosConfigView(cfg model.ChaosConfig) ChaosConfigView {
	return ChaosConfigView{
		Enabled: cfg.Enabled,
		Latency: LatencyView{
			Enabled: cfg.Latency.Enabled, Probability: cfg.Latency.Probability,
			BaseMS: cfg.Latency.BaseMS, JitterMS: cfg.Latency.JitterMS, TagBaseMS: cfg.Latency.TagBaseMS,
		},
		Fault: FaultView{
			Enabled: cfg.Fault.Enabled, StatusSet: cfg.Fault.StatusSet,
			StatusProbability: cfg.Fault.StatusProbability, ConnectionErrorProb: cfg.Fault.ConnectionErrorProb,
			TimeoutProbability: cfg.Fault.TimeoutProbability, TimeoutMS: cfg.Fault.Timeout.Milliseconds(),
			PartialResponseProb: cfg.Fault.PartialResponseProb,
		},
		RateLimit: RateLimitView{
			GlobalRPS: cfg.RateLimit.GlobalRPS, GlobalBurst: cfg.RateLimit.GlobalBurst,
			PerIPRPS: cfg.RateLimit.PerIPRPS, PerIPBurst: cfg.RateLimit.PerIPBurst,
		},
		Shaping: ShapingView{
			MaxConcurrent: cfg.Shaping.MaxConcurrent, BandwidthBytesSec: cfg.Shaping.BandwidthBytesSec,
			PacketLossProb: cfg.Shaping.PacketLossProb,
		},
	}
}

// ProxyView reports the core's static proxy configuration. Unlike
// chaos, proxy routing policy has no documented partial-update shape
// in spec.md §6, so this section is GET-only.
type ProxyView struct {
	Tag                  string `json:"tag"`
	PassthroughByDefault bool   `json:"passthrough_by_default"`
}

// StateView is the full `GET /__mockforge/api/state` response.
type StateView struct {
	Chaos         ChaosConfigView `json:"chaos"`
	Proxy         ProxyView       `json:"proxy"`
	OverrideRules int             `json:"override_rule_count"`
}

// AdminAPI implements the handlers behind spec.md §6's administrative
// HTTP interface. It holds references, never copies, of the live
// subsystems so GET always reflects whatever the orchestrator is
// currently using.
type AdminAPI struct {
	Chaos     *chaosconfig.Manager
	Overrides *override.Engine
	Proxy     ProxyView

	migrations *migrationStore
	registry   Registry
}

// NewAdminAPI builds the admin API over the given live collaborators.
func NewAdminAPI(chaos *chaosconfig.Manager, overrides *override.Engine, proxy ProxyView) *AdminAPI {
	return &AdminAPI{Chaos: chaos, Overrides: overrides, Proxy: proxy, migrations: newMigrationStore()}
}

// GetState serves `GET /__mockforge/api/state`.
func (a *AdminAPI) GetState(w http.ResponseWriter, r *http.Request) error {
	view := StateView{
		Chaos: newChaosConfigView(a.Chaos.Current()),
		Proxy: a.Proxy,
	}
	if a.Overrides != nil {
		view.OverrideRules = a.Overrides.Count()
	}
	return writeJSON(w, http.StatusOK, view)
}

// UpdateState serves `POST /__mockforge/api/state`: a partial update to
// the chaos section, validated field-by-field before being merged onto
// the live configuration.
func (a *AdminAPI) UpdateState(w http.ResponseWriter, r *http.Request) error {
	var body struct {
		Chaos *chaosConfigUpdate `json:"chaos"`
	}
	if err := decodeJSON(r, &body); err != nil {
		return err
	}
	if body.Chaos == nil {
		return writeJSON(w, http.StatusOK, StateView{Chaos: newChaosConfigView(a.Chaos.Current()), Proxy: a.Proxy})
	}
	if err := validateUpdate(body.Chaos); err != nil {
		return apierrors.NewInvalidArgumentError("invalid chaos config update", err)
	}
	next, err := a.Chaos.ApplyPartial(body.Chaos.toDelta())
	if err != nil {
		return apierrors.NewInternalError("applying chaos config update", err)
	}
	return writeJSON(w, http.StatusOK, StateView{Chaos: newChaosConfigView(next), Proxy: a.Proxy})
}

// validateUpdate runs go-playground/validator over u. Nested pointer
// struct fields (Latency, Fault, ...) are validated automatically when
// non-nil and skipped entirely when nil, which is exactly the "only
// validate sections the caller actually sent" behavior a partial
// update needs.
func validateUpdate(u *chaosConfigUpdate) error {
	return validate.Struct(u)
}
