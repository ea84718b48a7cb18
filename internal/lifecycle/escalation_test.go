package lifecycle

import (
	"testing"
	"time"

	"github.com/agentfabric/agentd/pkg/fabric"
)

func TestEscalationManagerDeterminesActionByTier(t *testing.T) {
	m := NewEscalationManager(DefaultTiers())

	action := m.DetermineAction("r1", nil)
	if action.Kind != fabric.ActionRetry {
		t.Fatalf("expected Retry at tier 1, got %v", action.Kind)
	}

	m.Escalate("r1")
	action = m.DetermineAction("r1", nil)
	if action.Kind != fabric.ActionTransfer {
		t.Fatalf("expected Transfer at tier 2, got %v", action.Kind)
	}

	m.Escalate("r1")
	action = m.DetermineAction("r1", nil)
	if action.Kind != fabric.ActionEscalate || action.Tier != 3 {
		t.Fatalf("expected Escalate{tier:3} at tier 3, got %+v", action)
	}
}

func TestEscalationManagerEscalateRecordsAttemptedTiers(t *testing.T) {
	m := NewEscalationManager(DefaultTiers())
	m.Escalate("r1")
	m.Escalate("r1")
	tiers := m.AttemptedTiers("r1")
	if len(tiers) != 2 || tiers[0] != 1 || tiers[1] != 2 {
		t.Fatalf("expected attempted tiers [1,2], got %v", tiers)
	}
}

func TestEscalationManagerCooldownGatesAttempts(t *testing.T) {
	clock := newFakeClock(time.Now())
	m := NewEscalationManager(DefaultTiers()).WithClock(clock.now)

	if !m.CooldownClear("r1") {
		t.Fatal("expected cooldown clear before any attempt")
	}
	m.RecordAttempt("r1")
	if m.CooldownClear("r1") {
		t.Fatal("expected cooldown active immediately after attempt (tier 1 cooldown 5s)")
	}
	clock.advance(5 * time.Second)
	if !m.CooldownClear("r1") {
		t.Fatal("expected cooldown clear after 5s")
	}
}

func TestEscalationManagerResetClearsState(t *testing.T) {
	m := NewEscalationManager(DefaultTiers())
	m.Escalate("r1")
	m.RecordAttempt("r1")
	m.Reset("r1")

	action := m.DetermineAction("r1", nil)
	if action.Kind != fabric.ActionRetry {
		t.Fatalf("expected reset to tier 1 (Retry), got %v", action.Kind)
	}
	if len(m.AttemptedTiers("r1")) != 0 {
		t.Fatal("expected attempted tiers cleared after reset")
	}
}

func TestEscalationManagerAtFinalTier(t *testing.T) {
	m := NewEscalationManager(DefaultTiers())
	if m.AtFinalTier("r1") {
		t.Fatal("should not start at final tier")
	}
	m.Escalate("r1")
	m.Escalate("r1")
	if !m.AtFinalTier("r1") {
		t.Fatal("expected final tier after two escalations")
	}
}
