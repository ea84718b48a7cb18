package lifecycle

import (
	"sync"
	"testing"
	"time"

	"github.com/agentfabric/agentd/pkg/fabric"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(start time.Time) *fakeClock { return &fakeClock{t: start} }

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestHealthMonitorFlipsStuckAtThreshold(t *testing.T) {
	clock := newFakeClock(time.Now())
	h := NewHealthMonitor().WithClock(clock.now)
	cfg := fabric.HeartbeatConfig{IntervalSecs: 5, StuckThreshold: 3, MaxRetries: 2, CooldownSecs: 2}
	h.Track("r1", cfg)

	clock.advance(14 * time.Second) // 2 misses (14/5=2), not yet stuck
	statuses := h.Sweep()
	if len(statuses) != 1 || statuses[0].Stuck {
		t.Fatalf("expected not-yet-stuck at 2 misses, got %+v", statuses)
	}

	clock.advance(1 * time.Second) // total 15s -> 3 misses, reaches threshold
	statuses = h.Sweep()
	if len(statuses) != 1 || !statuses[0].Stuck {
		t.Fatalf("expected stuck at 3 misses, got %+v", statuses)
	}
}

func TestHealthMonitorBeatResetsMissCount(t *testing.T) {
	clock := newFakeClock(time.Now())
	h := NewHealthMonitor().WithClock(clock.now)
	cfg := fabric.HeartbeatConfig{IntervalSecs: 5, StuckThreshold: 2, MaxRetries: 2, CooldownSecs: 2}
	h.Track("r1", cfg)

	clock.advance(11 * time.Second)
	h.Sweep()
	h.Beat("r1")

	statuses := h.Sweep()
	if len(statuses) != 1 || statuses[0].Missed != 0 || statuses[0].Stuck {
		t.Fatalf("expected reset after beat, got %+v", statuses)
	}
}

func TestHealthMonitorUntrackRemovesResource(t *testing.T) {
	h := NewHealthMonitor()
	h.Track("r1", fabric.HeartbeatConfig{IntervalSecs: 5, StuckThreshold: 2})
	h.Untrack("r1")
	if len(h.Sweep()) != 0 {
		t.Fatal("expected no tracked resources after Untrack")
	}
}
