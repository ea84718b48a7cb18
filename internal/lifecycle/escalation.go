package lifecycle

import (
	"sync"
	"time"

	"github.com/agentfabric/agentd/pkg/fabric"
)

// EscalationTier is one rung of the tiered recovery policy of
// SPEC_FULL.md §4.7.
type EscalationTier struct {
	Tier        int
	Name        string
	MaxAttempts int
	Cooldown    time.Duration
}

// DefaultTiers is the spec's tier table: Retry, Fallback, UserIntervention.
func DefaultTiers() []EscalationTier {
	return []EscalationTier{
		{Tier: 1, Name: "retry", MaxAttempts: 3, Cooldown: 5 * time.Second},
		{Tier: 2, Name: "fallback", MaxAttempts: 2, Cooldown: 10 * time.Second},
		{Tier: 3, Name: "user_intervention", MaxAttempts: 1, Cooldown: 0},
	}
}

// tierState tracks one resource's position in the escalation ladder.
type tierState struct {
	tierIdx        int // index into the tiers slice
	attemptsAtTier int
	lastAttempt    time.Time
	attemptedTiers []int
}

// EscalationManager runs the tiered escalation policy.
type EscalationManager struct {
	mu     sync.Mutex
	tiers  []EscalationTier
	states map[string]*tierState
	now    func() time.Time
}

// NewEscalationManager constructs an EscalationManager with the given tier
// ladder (use DefaultTiers() for spec defaults).
func NewEscalationManager(tiers []EscalationTier) *EscalationManager {
	return &EscalationManager{tiers: tiers, states: make(map[string]*tierState), now: time.Now}
}

// WithClock overrides the manager's time source, for deterministic tests.
func (m *EscalationManager) WithClock(now func() time.Time) *EscalationManager {
	if now != nil {
		m.now = now
	}
	return m
}

func (m *EscalationManager) stateFor(id string) *tierState {
	s, ok := m.states[id]
	if !ok {
		s = &tierState{}
		m.states[id] = s
	}
	return s
}

func (m *EscalationManager) currentTier(s *tierState) EscalationTier {
	idx := s.tierIdx
	if idx >= len(m.tiers) {
		idx = len(m.tiers) - 1
	}
	return m.tiers[idx]
}

// DetermineAction returns the recovery action appropriate to a resource's
// current tier and attempts-at-tier: once attemptsAtTier has exhausted the
// tier's MaxAttempts, it escalates to the next tier rather than repeating
// the same action forever.
func (m *EscalationManager) DetermineAction(resourceID string, toType *fabric.ResourceType) fabric.RecoveryAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stateFor(resourceID)
	tier := m.currentTier(s)

	if s.attemptsAtTier >= tier.MaxAttempts && s.tierIdx < len(m.tiers)-1 {
		return fabric.RecoveryAction{Kind: fabric.ActionEscalate, Tier: tier.Tier}
	}

	switch tier.Name {
	case "retry":
		return fabric.RecoveryAction{Kind: fabric.ActionRetry, PreserveState: true}
	case "fallback":
		return fabric.RecoveryAction{Kind: fabric.ActionTransfer, PreserveState: true, ToType: toType}
	default:
		return fabric.RecoveryAction{Kind: fabric.ActionEscalate, Tier: tier.Tier}
	}
}

// CanAutoEscalate reports whether tier-based auto-recovery is still
// available for a resource. The last tier (UserIntervention by default)
// is not an auto-recovery tier: reaching it always parks the resource.
func (m *EscalationManager) CanAutoEscalate(resourceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stateFor(resourceID)
	return s.tierIdx < len(m.tiers)-1
}

// CooldownClear reports whether enough time has elapsed since the last
// attempt at the resource's current tier.
func (m *EscalationManager) CooldownClear(resourceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stateFor(resourceID)
	tier := m.currentTier(s)
	if s.lastAttempt.IsZero() {
		return true
	}
	return m.now().Sub(s.lastAttempt) >= tier.Cooldown
}

// RecordAttempt increments attempts-at-tier and stamps the attempt time.
func (m *EscalationManager) RecordAttempt(resourceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stateFor(resourceID)
	s.attemptsAtTier++
	s.lastAttempt = m.now()
}

// Escalate advances the tier, resets attempts-at-tier to 0, and records
// the previously-completed tier in attempted_tiers.
func (m *EscalationManager) Escalate(resourceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stateFor(resourceID)
	completed := m.currentTier(s)
	s.attemptedTiers = append(s.attemptedTiers, completed.Tier)
	if s.tierIdx < len(m.tiers)-1 {
		s.tierIdx++
	}
	s.attemptsAtTier = 0
}

// AttemptedTiers returns the tiers a resource has exhausted so far.
func (m *EscalationManager) AttemptedTiers(resourceID string) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stateFor(resourceID)
	out := make([]int, len(s.attemptedTiers))
	copy(out, s.attemptedTiers)
	return out
}

// CurrentTier returns the tier number a resource is currently attempting.
func (m *EscalationManager) CurrentTier(resourceID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stateFor(resourceID)
	return m.currentTier(s).Tier
}

// AtFinalTier reports whether a resource has reached the last tier
// (UserIntervention by default).
func (m *EscalationManager) AtFinalTier(resourceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stateFor(resourceID)
	return s.tierIdx == len(m.tiers)-1
}

// Reset clears all tier state on successful recovery.
func (m *EscalationManager) Reset(resourceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, resourceID)
}
