package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentfabric/agentd/pkg/fabric"
)

// manualClock lets tests control "now" deterministically.
type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func newManualClock(start time.Time) *manualClock {
	return &manualClock{t: start}
}

func (c *manualClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// TestIntervalNextRunAlwaysFuture is spec.md invariant 9: next_run is
// always strictly after the time it was computed from.
func TestIntervalNextRunAlwaysFuture(t *testing.T) {
	clock := newManualClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s := New(nil, WithNow(clock.now))

	job, err := s.AddJob(fabric.ScheduledJob{
		Name:     "interval-job",
		Schedule: fabric.Schedule{Kind: fabric.ScheduleInterval, IntervalS: 30},
		Payload:  fabric.JobPayload{Kind: fabric.PayloadNotify, Message: "tick"},
		Enabled:  true,
	})
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if job.NextRun == nil || !job.NextRun.After(clock.now()) {
		t.Fatalf("expected next_run strictly after admission time, got %v", job.NextRun)
	}

	exec := fabric.JobExecution{JobID: job.ID, Status: fabric.JobSuccess}
	s.table.finishExecution(job.ID, exec, s.computeNextLenient)

	updated, ok := s.GetJob(job.ID)
	if !ok {
		t.Fatal("job disappeared after finishExecution")
	}
	if updated.NextRun == nil || !updated.NextRun.After(clock.now()) {
		t.Fatalf("expected recomputed next_run strictly after now, got %v", updated.NextRun)
	}
}

// TestStuckJobRecordsStatusAndIncrementsErrorCount is spec.md invariant 10:
// a job whose execution exceeds the stuck threshold is recorded Stuck and
// its error_count increments.
func TestStuckJobRecordsStatusAndIncrementsErrorCount(t *testing.T) {
	clock := newManualClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	blocked := make(chan struct{})
	var calls int32

	s := New(nil, WithNow(clock.now), WithAgentTurn(func(ctx context.Context, sessionTarget, prompt string) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-blocked
		return "", ctx.Err()
	}))

	job := fabric.ScheduledJob{
		ID:       "stuck-job",
		Schedule: fabric.Schedule{Kind: fabric.ScheduleInterval, IntervalS: 60},
		Payload:  fabric.JobPayload{Kind: fabric.PayloadAgentTurn, Prompt: "do work"},
		Enabled:  true,
	}
	s.table.add(job)

	setStuckThresholdForTest(20 * time.Millisecond)
	defer setStuckThresholdForTest(0)

	done := make(chan struct{})
	go func() {
		s.executeJob(context.Background(), job)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("executeJob never returned")
	}
	close(blocked)

	updated, ok := s.GetJob(job.ID)
	if !ok {
		t.Fatal("job missing after stuck execution")
	}
	if updated.ErrorCount != 1 {
		t.Fatalf("error_count = %d, want 1", updated.ErrorCount)
	}

	history := s.History(job.ID)
	if len(history) != 1 || history[0].Status != fabric.JobStuck {
		t.Fatalf("expected one Stuck execution record, got %+v", history)
	}
}

// TestHeartbeatSkippedOutsideActiveHours verifies the active_hours skip
// branch of the tick algorithm records Skipped without invoking the
// heartbeat handler.
func TestHeartbeatSkippedOutsideActiveHours(t *testing.T) {
	clock := newManualClock(time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC)) // 3am
	var invoked bool
	s := New(nil, WithNow(clock.now), WithHeartbeat(func(ctx context.Context, sessionTarget string) (string, bool, error) {
		invoked = true
		return "HEARTBEAT_OK", true, nil
	}))

	job := fabric.ScheduledJob{
		ID:          "heartbeat-job",
		Schedule:    fabric.Schedule{Kind: fabric.ScheduleInterval, IntervalS: 300},
		Payload:     fabric.JobPayload{Kind: fabric.PayloadHeartbeat},
		Enabled:     true,
		ActiveHours: &fabric.ActiveHours{StartHour: 9, EndHour: 17},
	}
	s.table.add(job)
	s.executeJob(context.Background(), job)

	if invoked {
		t.Fatal("heartbeat handler should not run outside active hours")
	}
	history := s.History(job.ID)
	if len(history) != 1 || history[0].Status != fabric.JobSkipped {
		t.Fatalf("expected one Skipped execution record, got %+v", history)
	}
}

// TestDeleteAfterRunRemovesJobOnSuccess verifies SPEC_FULL.md §4.5 step 5.
func TestDeleteAfterRunRemovesJobOnSuccess(t *testing.T) {
	clock := newManualClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s := New(nil, WithNow(clock.now), WithAgentTurn(func(ctx context.Context, sessionTarget, prompt string) (string, error) {
		return "done", nil
	}))
	job := fabric.ScheduledJob{
		ID:             "one-shot",
		Schedule:       fabric.Schedule{Kind: fabric.ScheduleInterval, IntervalS: 60},
		Payload:        fabric.JobPayload{Kind: fabric.PayloadAgentTurn, Prompt: "once"},
		Enabled:        true,
		DeleteAfterRun: true,
	}
	s.table.add(job)
	s.executeJob(context.Background(), job)

	if _, ok := s.GetJob(job.ID); ok {
		t.Fatal("expected delete_after_run job to be removed after success")
	}
}

func TestHasHeartbeatOK(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"HEARTBEAT_OK", true},
		{"  HEARTBEAT_OK\n", true},
		{"Checked in. HEARTBEAT_OK", true},
		{"HEARTBEAT_OK Checked in.", true},
		{"everything looks fine", false},
	}
	for _, c := range cases {
		if got := HasHeartbeatOK(c.in); got != c.want {
			t.Errorf("HasHeartbeatOK(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

// setStuckThresholdForTest overrides the package-level stuck threshold for
// the duration of a test.
func setStuckThresholdForTest(d time.Duration) {
	stuckThresholdOverride = d
}
