package state

import (
	"context"
	"testing"
	"time"

	"github.com/mockforge/core/internal/model"
)

func TestSnapshotCreatesDefaultWorkspace(t *testing.T) {
	m := NewManager()
	snap := m.Snapshot("ws1")
	if snap.Reality != model.RealityPure {
		t.Fatalf("expected default reality %v, got %v", model.RealityPure, snap.Reality)
	}
	if snap.WorkspaceID != "ws1" {
		t.Fatalf("expected workspace id ws1, got %q", snap.WorkspaceID)
	}
}

func TestSnapshotNormalizesEmptyWorkspaceToDefault(t *testing.T) {
	m := NewManager()
	snap := m.Snapshot("")
	if snap.WorkspaceID != defaultWorkspaceID {
		t.Fatalf("expected %q, got %q", defaultWorkspaceID, snap.WorkspaceID)
	}
}

func TestApplyPersonaAndScenario(t *testing.T) {
	m := NewManager()
	m.Apply(Event{WorkspaceID: "ws1", Kind: EventPersonaSet, Persona: &model.Persona{ID: "p1", Traits: map[string]string{"locale": "en-US"}}})
	m.Apply(Event{WorkspaceID: "ws1", Kind: EventScenarioSet, ScenarioID: "checkout-flow"})

	snap := m.Snapshot("ws1")
	if snap.Persona == nil || snap.Persona.ID != "p1" {
		t.Fatalf("expected persona p1, got %+v", snap.Persona)
	}
	if snap.ScenarioID != "checkout-flow" {
		t.Fatalf("expected scenario checkout-flow, got %q", snap.ScenarioID)
	}

	m.Apply(Event{WorkspaceID: "ws1", Kind: EventPersonaCleared})
	m.Apply(Event{WorkspaceID: "ws1", Kind: EventScenarioCleared})

	snap = m.Snapshot("ws1")
	if snap.Persona != nil {
		t.Fatal("expected persona cleared")
	}
	if snap.ScenarioID != "" {
		t.Fatal("expected scenario cleared")
	}
}

func TestApplyChaosRuleActivateDeactivate(t *testing.T) {
	m := NewManager()
	m.Apply(Event{WorkspaceID: "ws1", Kind: EventChaosRuleActivated, ChaosRule: "slow-network"})

	snap := m.Snapshot("ws1")
	if !snap.HasChaosRule("slow-network") {
		t.Fatal("expected chaos rule active")
	}

	m.Apply(Event{WorkspaceID: "ws1", Kind: EventChaosRuleDeactivated, ChaosRule: "slow-network"})
	snap = m.Snapshot("ws1")
	if snap.HasChaosRule("slow-network") {
		t.Fatal("expected chaos rule deactivated")
	}
}

func TestApplyEntitySetAndDelete(t *testing.T) {
	m := NewManager()
	m.Apply(Event{WorkspaceID: "ws1", Kind: EventEntitySet, EntityID: "user:1", EntityValue: map[string]any{"name": "Alice"}})

	snap := m.Snapshot("ws1")
	if _, ok := snap.Entities["user:1"]; !ok {
		t.Fatal("expected entity set")
	}

	m.Apply(Event{WorkspaceID: "ws1", Kind: EventEntityDeleted, EntityID: "user:1"})
	snap = m.Snapshot("ws1")
	if _, ok := snap.Entities["user:1"]; ok {
		t.Fatal("expected entity deleted")
	}
}

func TestApplyRealitySet(t *testing.T) {
	m := NewManager()
	m.Apply(Event{WorkspaceID: "ws1", Kind: EventRealitySet, Reality: model.RealityBlended, RealityRatio: 0.4})

	snap := m.Snapshot("ws1")
	if snap.Reality != model.RealityBlended || snap.RealityRatio != 0.4 {
		t.Fatalf("expected blended/0.4, got %v/%v", snap.Reality, snap.RealityRatio)
	}
}

func TestWorkspacesAreIndependent(t *testing.T) {
	m := NewManager()
	m.Apply(Event{WorkspaceID: "ws1", Kind: EventScenarioSet, ScenarioID: "a"})
	m.Apply(Event{WorkspaceID: "ws2", Kind: EventScenarioSet, ScenarioID: "b"})

	if snap := m.Snapshot("ws1"); snap.ScenarioID != "a" {
		t.Fatalf("expected ws1 scenario a, got %q", snap.ScenarioID)
	}
	if snap := m.Snapshot("ws2"); snap.ScenarioID != "b" {
		t.Fatalf("expected ws2 scenario b, got %q", snap.ScenarioID)
	}
}

func TestSubscribeAppliesEventsUntilContextCanceled(t *testing.T) {
	m := NewManager()
	events := make(chan Event, 1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.Subscribe(ctx, events)
		close(done)
	}()

	events <- Event{WorkspaceID: "ws1", Kind: EventScenarioSet, ScenarioID: "live"}

	deadline := time.After(time.Second)
	for {
		if snap := m.Snapshot("ws1"); snap.ScenarioID == "live" {
			break
		}
		select {
		case <-deadline:
			t.Fatal("expected subscribed event to apply")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Subscribe to return after context cancellation")
	}
}

func TestShouldUseRealBoundaries(t *testing.T) {
	if ShouldUseReal(1, "req-1", 0) {
		t.Fatal("ratio 0 should never use real")
	}
	if !ShouldUseReal(1, "req-1", 1) {
		t.Fatal("ratio 1 should always use real")
	}
}

func TestShouldUseRealDeterministicForSameInputs(t *testing.T) {
	a := ShouldUseReal(42, "req-1", 0.5)
	b := ShouldUseReal(42, "req-1", 0.5)
	if a != b {
		t.Fatal("expected identical decision for identical inputs")
	}
}

func TestShouldUseRealVariesAcrossRequests(t *testing.T) {
	seen := map[bool]bool{}
	for i := 0; i < 50; i++ {
		seen[ShouldUseReal(1, string(rune('a'+i)), 0.5)] = true
	}
	if len(seen) != 2 {
		t.Fatal("expected both true and false decisions across many distinct requests at ratio 0.5")
	}
}
