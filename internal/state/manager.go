// Package state owns the per-workspace UnifiedState the pipeline reads
// at request entry (spec.md §3, §4.7, §9). The core never originates a
// state change: it subscribes to a channel of events from an external
// control plane and applies them under a single-writer discipline,
// while requests take read-only snapshots that never block a writer.
package state

import (
	"sync"

	"github.com/mockforge/core/internal/model"
)

// defaultWorkspaceID is used when a protocol adapter injects no
// workspace id (spec.md §9: "default workspace id per request... default
// `default`").
const defaultWorkspaceID = "default"

// Manager owns one UnifiedState per workspace. Reads (Snapshot) and the
// single writer (Apply) are serialized by a RWMutex, following the
// in-memory state store idiom of locking the whole map rather than a
// lock per entry, since workspace counts are small relative to request
// volume.
type Manager struct {
	mu         sync.RWMutex
	workspaces map[string]*model.UnifiedState
}

// NewManager returns an empty Manager; workspaces are created lazily on
// first reference, either by Snapshot or by an incoming Event.
func NewManager() *Manager {
	return &Manager{workspaces: make(map[string]*model.UnifiedState)}
}

// Snapshot returns a read-only copy of workspaceID's state, creating a
// default (Pure reality, no persona/scenario) entry if none exists yet.
// Callers must not hold the snapshot across a suspension point beyond
// the current request (spec.md §4.7).
func (m *Manager) Snapshot(workspaceID string) model.UnifiedState {
	workspaceID = normalizeWorkspace(workspaceID)

	m.mu.RLock()
	s, ok := m.workspaces[workspaceID]
	m.mu.RUnlock()
	if ok {
		return s.Snapshot()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.workspaces[workspaceID]; ok {
		return s.Snapshot()
	}
	fresh := m.newWorkspaceLocked(workspaceID)
	return fresh.Snapshot()
}

// newWorkspaceLocked creates workspaceID's state. Callers must hold m.mu.
func (m *Manager) newWorkspaceLocked(workspaceID string) *model.UnifiedState {
	fresh := &model.UnifiedState{
		WorkspaceID:      workspaceID,
		Reality:          model.RealityPure,
		ActiveChaosRules: make(map[string]struct{}),
		Entities:         make(map[string]any),
	}
	m.workspaces[workspaceID] = fresh
	return fresh
}

func normalizeWorkspace(workspaceID string) string {
	if workspaceID == "" {
		return defaultWorkspaceID
	}
	return workspaceID
}
