package chaos

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/mockforge/core/internal/model"
)

func TestRateLimiterGlobalBucketDepletes(t *testing.T) {
	rl := NewRateLimiter(model.RateLimitConfig{GlobalRPS: 1, GlobalBurst: 1})
	if !rl.Allow("1.2.3.4") {
		t.Fatal("expected first request to be allowed")
	}
	if rl.Allow("1.2.3.4") {
		t.Fatal("expected second immediate request to be rejected")
	}
}

func TestRateLimiterPerIPBucketsAreIndependent(t *testing.T) {
	rl := NewRateLimiter(model.RateLimitConfig{PerIPRPS: 1, PerIPBurst: 1})
	if !rl.Allow("1.1.1.1") {
		t.Fatal("expected first client to be allowed")
	}
	if rl.Allow("1.1.1.1") {
		t.Fatal("expected repeat from same client to be rejected")
	}
	if !rl.Allow("2.2.2.2") {
		t.Fatal("expected a different client's bucket to be independent")
	}
}

func TestRateLimiterDisabledByZeroRPS(t *testing.T) {
	rl := NewRateLimiter(model.RateLimitConfig{})
	for i := 0; i < 5; i++ {
		if !rl.Allow("anyone") {
			t.Fatal("expected unconfigured limiter to always allow")
		}
	}
}

func TestAdmissionCapsConcurrency(t *testing.T) {
	a := NewAdmission(1)
	release1, err := a.Acquire(context.Background(), model.ProtocolHTTP)
	if err != nil {
		t.Fatalf("expected first acquire to succeed: %v", err)
	}
	_, err = a.Acquire(context.Background(), model.ProtocolHTTP)
	if err == nil {
		t.Fatal("expected second acquire to be rejected at cap 1")
	}
	release1()
	release2, err := a.Acquire(context.Background(), model.ProtocolHTTP)
	if err != nil {
		t.Fatalf("expected acquire to succeed after release: %v", err)
	}
	release2()
}

func TestAdmissionPerProtocolIndependent(t *testing.T) {
	a := NewAdmission(1)
	release, err := a.Acquire(context.Background(), model.ProtocolHTTP)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer release()

	if _, err := a.Acquire(context.Background(), model.ProtocolGRPC); err != nil {
		t.Fatalf("expected a different protocol's cap to be independent: %v", err)
	}
}

func TestAdmissionUnlimitedWhenCapIsZero(t *testing.T) {
	a := NewAdmission(0)
	for i := 0; i < 10; i++ {
		if _, err := a.Acquire(context.Background(), model.ProtocolHTTP); err != nil {
			t.Fatalf("expected unlimited admission, got error: %v", err)
		}
	}
}

func TestInjectLatencyDisabledReturnsZero(t *testing.T) {
	e := NewEngine(model.ChaosConfig{Seed: 1})
	d := e.InjectLatency(context.Background(), model.LatencyProfile{Enabled: false}, nil)
	if d != 0 {
		t.Fatalf("expected zero duration when disabled, got %v", d)
	}
}

func TestInjectLatencyDeterministicWithSeed(t *testing.T) {
	profile := model.LatencyProfile{Enabled: true, Probability: 1, BaseMS: 50, JitterMS: 10}
	e1 := NewEngine(model.ChaosConfig{Seed: 7})
	e2 := NewEngine(model.ChaosConfig{Seed: 7})

	d1 := e1.InjectLatency(context.Background(), profile, nil)
	d2 := e2.InjectLatency(context.Background(), profile, nil)
	if d1 != d2 {
		t.Fatalf("expected identical latency for identical seed, got %v vs %v", d1, d2)
	}
	if d1 < 40*time.Millisecond || d1 > 60*time.Millisecond {
		t.Fatalf("expected latency within base+-jitter bounds, got %v", d1)
	}
}

func TestInjectLatencyTagOverride(t *testing.T) {
	profile := model.LatencyProfile{
		Enabled:     true,
		Probability: 1,
		BaseMS:      10,
		TagBaseMS:   []model.TagLatencyOverride{{Tag: "slow", BaseMS: 200}},
	}
	op := &model.SpecOperation{Tags: map[string]struct{}{"slow": {}}}
	e := NewEngine(model.ChaosConfig{Seed: 3})
	d := e.InjectLatency(context.Background(), profile, op)
	if d < 200*time.Millisecond {
		t.Fatalf("expected tag override to raise latency to ~200ms, got %v", d)
	}
}

// TestInjectLatencyTagOverrideMultiMatchIsStable pins down "first tag
// found wins" (spec.md §9's Open Question (b)) against an operation
// that carries two tags both present in TagBaseMS: the first entry in
// TagBaseMS's declared order must win on every call, not a
// run-to-run-varying one.
func TestInjectLatencyTagOverrideMultiMatchIsStable(t *testing.T) {
	profile := model.LatencyProfile{
		Enabled:     true,
		Probability: 1,
		BaseMS:      10,
		TagBaseMS: []model.TagLatencyOverride{
			{Tag: "slow", BaseMS: 200},
			{Tag: "flaky", BaseMS: 9000},
		},
	}
	op := &model.SpecOperation{Tags: map[string]struct{}{"slow": {}, "flaky": {}}}
	e := NewEngine(model.ChaosConfig{Seed: 3})
	for i := 0; i < 20; i++ {
		d := e.InjectLatency(context.Background(), profile, op)
		if d < 200*time.Millisecond || d >= 9000*time.Millisecond {
			t.Fatalf("expected the first matching tag (\"slow\", 200ms) to win consistently, got %v on iteration %d", d, i)
		}
	}
}

func TestInjectFaultDisabledReturnsNone(t *testing.T) {
	e := NewEngine(model.ChaosConfig{Seed: 1})
	result := e.InjectFault(model.FaultProfile{Enabled: false})
	if result.Kind != FaultNone {
		t.Fatalf("expected no fault when disabled, got %v", result.Kind)
	}
}

func TestInjectFaultConnectionErrorTakesPriority(t *testing.T) {
	profile := model.FaultProfile{
		Enabled:             true,
		ConnectionErrorProb: 1,
		TimeoutProbability:  1,
		StatusProbability:   1,
		StatusSet:           []int{500},
	}
	e := NewEngine(model.ChaosConfig{Seed: 1})
	result := e.InjectFault(profile)
	if result.Kind != FaultConnectionError {
		t.Fatalf("expected connection error to take priority, got %v", result.Kind)
	}
}

func TestInjectFaultStatusMapsToGRPCCode(t *testing.T) {
	profile := model.FaultProfile{
		Enabled:           true,
		StatusProbability: 1,
		StatusSet:         []int{429},
	}
	e := NewEngine(model.ChaosConfig{Seed: 1})
	result := e.InjectFault(profile)
	if result.Kind != FaultStatus || result.Status != 429 {
		t.Fatalf("expected status fault 429, got %+v", result)
	}
	if result.GRPCCode != codes.ResourceExhausted {
		t.Fatalf("expected RESOURCE_EXHAUSTED, got %v", result.GRPCCode)
	}
}

func TestShapeResponsePacketLossDropsImmediately(t *testing.T) {
	e := NewEngine(model.ChaosConfig{Seed: 1})
	dropped := e.ShapeResponse(context.Background(), model.TrafficShaping{PacketLossProb: 1}, 1000)
	if !dropped {
		t.Fatal("expected guaranteed packet loss to report dropped")
	}
}

func TestShapeResponseNoShapingNeverDrops(t *testing.T) {
	e := NewEngine(model.ChaosConfig{Seed: 1})
	dropped := e.ShapeResponse(context.Background(), model.TrafficShaping{}, 1000)
	if dropped {
		t.Fatal("expected no shaping configured to never drop")
	}
}
