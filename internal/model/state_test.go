package model

import "testing"

func TestUnifiedStateSnapshotIsIndependentCopy(t *testing.T) {
	s := &UnifiedState{
		WorkspaceID:      "default",
		Reality:          RealityBlended,
		RealityRatio:     0.5,
		ActiveChaosRules: map[string]struct{}{"slow-network": {}},
		Entities:         map[string]any{"user:1": map[string]any{"name": "Alice"}},
	}

	snap := s.Snapshot()
	s.ActiveChaosRules["new-rule"] = struct{}{}
	s.Entities["user:2"] = "mutated-after-snapshot"

	if snap.HasChaosRule("new-rule") {
		t.Fatal("snapshot observed a mutation made after it was taken")
	}
	if _, ok := snap.Entities["user:2"]; ok {
		t.Fatal("snapshot observed an entity added after it was taken")
	}
	if !snap.HasChaosRule("slow-network") {
		t.Fatal("snapshot lost a rule present at snapshot time")
	}
}

func TestNilUnifiedStateSnapshotsToPure(t *testing.T) {
	var s *UnifiedState
	snap := s.Snapshot()
	if snap.Reality != RealityPure {
		t.Fatalf("nil UnifiedState snapshot Reality = %v, want %v", snap.Reality, RealityPure)
	}
}
