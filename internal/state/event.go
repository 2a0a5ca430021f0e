package state

import "github.com/mockforge/core/internal/model"

// EventKind enumerates the mutations a control plane may publish. The
// core only ever consumes these; it never originates one itself
// (spec.md §3: "Updates flow in from an external control plane via a
// state-change event channel; the core subscribes but does not
// originate").
type EventKind string

const (
	EventPersonaSet          EventKind = "persona_set"
	EventPersonaCleared      EventKind = "persona_cleared"
	EventScenarioSet         EventKind = "scenario_set"
	EventScenarioCleared     EventKind = "scenario_cleared"
	EventRealitySet          EventKind = "reality_set"
	EventChaosRuleActivated  EventKind = "chaos_rule_activated"
	EventChaosRuleDeactivated EventKind = "chaos_rule_deactivated"
	EventEntitySet           EventKind = "entity_set"
	EventEntityDeleted       EventKind = "entity_deleted"
)

// Event is a single state-change notification for one workspace. Only
// the fields relevant to Kind are read; callers populate the rest as
// the zero value.
type Event struct {
	WorkspaceID string
	Kind        EventKind

	Persona      *model.Persona // EventPersonaSet
	ScenarioID   string         // EventScenarioSet
	Reality      model.RealityLevel
	RealityRatio float64 // EventRealitySet
	ChaosRule    string  // EventChaosRuleActivated / Deactivated
	EntityID     string  // EventEntitySet / EventEntityDeleted
	EntityValue  any     // EventEntitySet
}

// Apply mutates the named workspace's state under the writer lock. It
// is the only mutation path into Manager; Snapshot callers never see a
// partially-applied event since the whole map is locked for the
// duration.
func (m *Manager) Apply(ev Event) {
	workspaceID := normalizeWorkspace(ev.WorkspaceID)

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.workspaces[workspaceID]
	if !ok {
		s = m.newWorkspaceLocked(workspaceID)
	}

	switch ev.Kind {
	case EventPersonaSet:
		s.Persona = ev.Persona
	case EventPersonaCleared:
		s.Persona = nil
	case EventScenarioSet:
		s.ScenarioID = ev.ScenarioID
	case EventScenarioCleared:
		s.ScenarioID = ""
	case EventRealitySet:
		s.Reality = ev.Reality
		s.RealityRatio = ev.RealityRatio
	case EventChaosRuleActivated:
		s.ActiveChaosRules[ev.ChaosRule] = struct{}{}
	case EventChaosRuleDeactivated:
		delete(s.ActiveChaosRules, ev.ChaosRule)
	case EventEntitySet:
		s.Entities[ev.EntityID] = ev.EntityValue
	case EventEntityDeleted:
		delete(s.Entities, ev.EntityID)
	}
}
