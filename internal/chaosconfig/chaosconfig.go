// Package chaosconfig applies partial admin-API updates onto a running
// chaos.Engine's configuration. Configuration loading and CLI parsing
// are out of scope for this module (spec.md §1), but the pipeline's
// own ChaosConfig still needs a construction/merge API per SPEC_FULL.md's
// "Configuration" ambient-stack section: the admin API accepts a
// partial JSON document and this package folds it onto the live
// snapshot without discarding fields the caller didn't mention.
package chaosconfig

import (
	"dario.cat/mergo"

	"github.com/mockforge/core/internal/chaos"
	"github.com/mockforge/core/internal/model"
)

// Manager wraps a chaos.Engine with the partial-update merge path the
// admin API (internal/httpapi) drives. It holds no state of its own
// beyond the engine reference; the engine remains the single source of
// truth for the live configuration.
type Manager struct {
	Engine *chaos.Engine
}

// NewManager returns a Manager bound to engine.
func NewManager(engine *chaos.Engine) *Manager {
	return &Manager{Engine: engine}
}

// Current returns the engine's live configuration snapshot.
func (m *Manager) Current() model.ChaosConfig {
	return m.Engine.Config()
}

// ApplyPartial merges partial onto the engine's current configuration
// field by field and reloads the engine with the merged result,
// returning the configuration that is now live.
//
// mergo.WithOverride makes a non-zero field on partial replace the
// corresponding field on the current config; a zero-valued field on
// partial (including one the caller simply omitted from their JSON
// body) is left untouched. This is the standard mergo partial-update
// idiom and shares its one known limitation: it cannot distinguish "the
// caller explicitly wants this probability set to 0" from "the caller
// didn't mention this field." internal/httpapi's admin handler decodes
// into a pointer-field DTO first specifically so presence is still
// tracked at the JSON-decoding boundary; by the time a model.ChaosConfig
// reaches ApplyPartial every field the caller set, including an
// explicit zero, has already been written onto it directly. ApplyPartial
// is still the one call site that performs the actual merge against the
// live snapshot, which is the part mergo buys over hand-written
// per-field assignment: fields the caller's DTO has no opinion on
// (because a whole sub-block like Shaping was omitted) pass through
// as zero values and mergo leaves the engine's current value alone.
func (m *Manager) ApplyPartial(partial model.ChaosConfig) (model.ChaosConfig, error) {
	next := m.Engine.Config()
	if err := mergo.Merge(&next, partial, mergo.WithOverride); err != nil {
		return model.ChaosConfig{}, err
	}
	m.Engine.Reload(next)
	return next, nil
}
