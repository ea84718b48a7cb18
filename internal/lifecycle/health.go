package lifecycle

import (
	"sync"
	"time"

	"github.com/agentfabric/agentd/pkg/fabric"
)

// beatState tracks one resource's liveness bookkeeping.
type beatState struct {
	config        fabric.HeartbeatConfig
	lastHeartbeat time.Time
	missed        int
	stuckSince    time.Time
	degraded      bool
	stuck         bool
}

// HealthMonitor implements the per-resource heartbeat tracking of
// SPEC_FULL.md §4.7: one miss per interval_secs without a recorded beat,
// flipping to Degraded{missed} or Stuck{since} at stuck_threshold.
type HealthMonitor struct {
	mu    sync.Mutex
	beats map[string]*beatState
	now   func() time.Time
}

// NewHealthMonitor constructs an empty HealthMonitor.
func NewHealthMonitor() *HealthMonitor {
	return &HealthMonitor{beats: make(map[string]*beatState), now: time.Now}
}

// WithClock overrides the monitor's time source, for deterministic tests.
func (h *HealthMonitor) WithClock(now func() time.Time) *HealthMonitor {
	if now != nil {
		h.now = now
	}
	return h
}

// Track begins heartbeat tracking for a resource under the given config.
func (h *HealthMonitor) Track(id string, cfg fabric.HeartbeatConfig) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.beats[id] = &beatState{config: cfg, lastHeartbeat: h.now()}
}

// Untrack stops heartbeat tracking for a resource.
func (h *HealthMonitor) Untrack(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.beats, id)
}

// Beat records a heartbeat for a resource, clearing any accumulated misses.
func (h *HealthMonitor) Beat(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.beats[id]
	if !ok {
		return
	}
	b.lastHeartbeat = h.now()
	b.missed = 0
	b.degraded = false
	b.stuck = false
}

// HealthStatus summarizes one resource's current liveness.
type HealthStatus struct {
	ID       string
	Missed   int
	Degraded bool
	Stuck    bool
	Since    time.Time
}

// Sweep evaluates every tracked resource against its configured interval
// and stuck threshold, returning a status snapshot. Call sites are
// expected to react to newly-Stuck ids via (Registry).UpdateState.
func (h *HealthMonitor) Sweep() []HealthStatus {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	out := make([]HealthStatus, 0, len(h.beats))
	for id, b := range h.beats {
		interval := time.Duration(b.config.IntervalSecs) * time.Second
		if interval <= 0 {
			continue
		}
		elapsed := now.Sub(b.lastHeartbeat)
		missed := int(elapsed / interval)

		if missed != b.missed {
			b.missed = missed
		}
		wasStuck := b.stuck
		b.degraded = b.missed > 0 && b.missed < b.config.StuckThreshold
		b.stuck = b.missed >= b.config.StuckThreshold
		if b.stuck && !wasStuck {
			b.stuckSince = now
		}

		out = append(out, HealthStatus{ID: id, Missed: b.missed, Degraded: b.degraded, Stuck: b.stuck, Since: b.stuckSince})
	}
	return out
}

// StuckIDs returns the ids currently flagged Stuck, without re-evaluating
// elapsed time (use Sweep for that).
func (h *HealthMonitor) StuckIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for id, b := range h.beats {
		if b.stuck {
			out = append(out, id)
		}
	}
	return out
}
