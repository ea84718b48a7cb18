package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/agentfabric/agentd/internal/eventbus"
	"github.com/agentfabric/agentd/pkg/fabric"
)

// StuckThreshold is the hard execution timeout of SPEC_FULL.md §5.
var StuckThreshold = 120 * time.Second

// stuckThresholdOverride lets tests shrink the stuck timeout; production
// code always leaves it at the zero value and falls back to StuckThreshold.
var stuckThresholdOverride time.Duration

func effectiveStuckThreshold() time.Duration {
	if stuckThresholdOverride > 0 {
		return stuckThresholdOverride
	}
	return StuckThreshold
}

// TickInterval is the scheduler's background ticker period.
const TickInterval = time.Second

// AgentTurnFunc runs one Agent Loop turn for a scheduler payload.
type AgentTurnFunc func(ctx context.Context, sessionTarget, prompt string) (string, error)

// HeartbeatFunc runs the heartbeat payload contract of SPEC_FULL.md §4.5:
// builds the system/user prompt from identity files, runs one turn, and
// reports whether the response carried the HEARTBEAT_OK sentinel.
type HeartbeatFunc func(ctx context.Context, sessionTarget string) (response string, ok bool, err error)

// Scheduler owns the job map, per-job history ring buffers, and the
// background ticker of SPEC_FULL.md §4.5.
type Scheduler struct {
	table     *jobTable
	bus       *eventbus.Bus
	logger    *slog.Logger
	agentTurn AgentTurnFunc
	heartbeat HeartbeatFunc
	now       func() time.Time
	location  *time.Location

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Scheduler, matching the teacher's functional-options style.
type Option func(*Scheduler)

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMirror(m Mirror) Option {
	return func(s *Scheduler) { s.table.mirror = m }
}

func WithAgentTurn(f AgentTurnFunc) Option {
	return func(s *Scheduler) { s.agentTurn = f }
}

func WithHeartbeat(f HeartbeatFunc) Option {
	return func(s *Scheduler) { s.heartbeat = f }
}

func WithNow(f func() time.Time) Option {
	return func(s *Scheduler) {
		if f != nil {
			s.now = f
		}
	}
}

func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

// New constructs a Scheduler. bus may be nil.
func New(bus *eventbus.Bus, opts ...Option) *Scheduler {
	s := &Scheduler{
		table:    newJobTable(nil),
		bus:      bus,
		logger:   slog.Default(),
		now:      time.Now,
		location: time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadFromMirror reloads every well-formed row from the durable mirror, if configured.
func (s *Scheduler) LoadFromMirror() error {
	if s.table.mirror == nil {
		return nil
	}
	jobs, err := s.table.mirror.LoadAll()
	if err != nil {
		return fmt.Errorf("scheduler: load from mirror: %w", err)
	}
	for _, j := range jobs {
		s.table.jobs[j.ID] = &jobRecord{job: j}
	}
	return nil
}

// AddJob registers a new job, computing its first next_run.
func (s *Scheduler) AddJob(job fabric.ScheduledJob) (fabric.ScheduledJob, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	next, err := s.computeNext(job)
	if err != nil {
		return fabric.ScheduledJob{}, err
	}
	job.NextRun = next
	s.table.add(job)
	return job, nil
}

// RemoveJob deletes a job entirely, including its persisted row.
func (s *Scheduler) RemoveJob(id string) {
	s.table.remove(id)
}

// GetJob returns a job by id.
func (s *Scheduler) GetJob(id string) (fabric.ScheduledJob, bool) {
	return s.table.get(id)
}

// ListJobs returns every registered job.
func (s *Scheduler) ListJobs() []fabric.ScheduledJob {
	return s.table.list()
}

// History returns a job's execution ring buffer, newest first.
func (s *Scheduler) History(id string) []fabric.JobExecution {
	return s.table.history(id)
}

// UpdateJob replaces a job's configuration in place.
func (s *Scheduler) UpdateJob(job fabric.ScheduledJob) {
	s.table.update(job)
}

// computeNext implements the next_run rule of SPEC_FULL.md §4.5. Invalid
// cron expressions yield a nil next_run (the job stops firing) rather than
// an error once already registered; AddJob surfaces the error eagerly at
// admission time per SPEC_FULL.md §7.
func (s *Scheduler) computeNext(job fabric.ScheduledJob) (*time.Time, error) {
	now := s.now()
	switch job.Schedule.Kind {
	case fabric.ScheduleInterval:
		t := now.Add(time.Duration(job.Schedule.IntervalS) * time.Second)
		return &t, nil
	case fabric.ScheduleCron:
		sched, err := parseCron(job.Schedule.CronExpr)
		if err != nil {
			return nil, err
		}
		t := sched.Next(now.In(s.location))
		return &t, nil
	default:
		return nil, fmt.Errorf("scheduler: unknown schedule kind %q", job.Schedule.Kind)
	}
}

// computeNextLenient is used after a job is already registered: an invalid
// cron expression (e.g. edited into an invalid state) silently stops the
// job rather than erroring out of the tick loop.
func (s *Scheduler) computeNextLenient(job fabric.ScheduledJob) *time.Time {
	next, err := s.computeNext(job)
	if err != nil {
		return nil
	}
	return next
}

// Start launches the 1-second background ticker.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop halts the ticker and waits for in-flight tick dispatch to return
// (individual job executions are detached and not waited on, matching
// SPEC_FULL.md §5's "spawned in the same tick are concurrent and unordered").
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.started = false
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

// tick implements the tick algorithm of SPEC_FULL.md §4.5.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	for _, job := range s.table.dueJobs(now) {
		job := job
		s.table.markDispatched(job.ID)
		go s.executeJob(ctx, job)
	}
}

func (s *Scheduler) executeJob(ctx context.Context, job fabric.ScheduledJob) {
	if job.Payload.Kind == fabric.PayloadHeartbeat && job.ActiveHours != nil {
		if !job.ActiveHours.Contains(s.now().In(s.location).Hour()) {
			s.table.finishExecution(job.ID, fabric.JobExecution{
				JobID: job.ID, StartedAt: s.now(), FinishedAt: s.now(), Status: fabric.JobSkipped,
			}, s.computeNextLenient)
			return
		}
	}

	switch job.Payload.Kind {
	case fabric.PayloadHeartbeat:
		s.publish("HeartbeatTick", map[string]any{"timestamp": s.now()})
	default:
		s.publish("CronFired", map[string]any{"job_id": job.ID, "schedule": job.Schedule})
	}

	started := s.now()
	type outcome struct {
		output string
		err    error
	}
	done := make(chan outcome, 1)
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		output, err := s.runPayload(jobCtx, job)
		done <- outcome{output: output, err: err}
	}()

	select {
	case o := <-done:
		finished := s.now()
		status := fabric.JobSuccess
		if o.err != nil {
			status = fabric.JobFailed
		}
		s.table.finishExecution(job.ID, fabric.JobExecution{
			JobID: job.ID, StartedAt: started, FinishedAt: finished, Status: status, Output: o.output,
		}, s.computeNextLenient)
	case <-time.After(effectiveStuckThreshold()):
		cancel()
		s.publish("SystemError", map[string]any{"message": fmt.Sprintf("job %s exceeded stuck threshold", job.ID)})
		s.table.finishExecution(job.ID, fabric.JobExecution{
			JobID: job.ID, StartedAt: started, FinishedAt: s.now(), Status: fabric.JobStuck,
		}, s.computeNextLenient)
	}
}

// runPayload implements the per-payload execution contracts of SPEC_FULL.md §4.5.
func (s *Scheduler) runPayload(ctx context.Context, job fabric.ScheduledJob) (string, error) {
	switch job.Payload.Kind {
	case fabric.PayloadHeartbeat:
		if s.heartbeat == nil {
			return "", fmt.Errorf("scheduler: no heartbeat handler configured")
		}
		response, ok, err := s.heartbeat(ctx, job.SessionTarget)
		if err != nil {
			return "", err
		}
		if !ok {
			s.publish("HeartbeatAlert", map[string]any{"content": response})
		}
		return response, nil
	case fabric.PayloadAgentTurn:
		if s.agentTurn == nil {
			return "", fmt.Errorf("scheduler: no agent turn handler configured")
		}
		return s.agentTurn(ctx, job.SessionTarget, job.Payload.Prompt)
	case fabric.PayloadNotify:
		s.publish("Notify", map[string]any{"message": job.Payload.Message})
		return "", nil
	default:
		return "", fmt.Errorf("scheduler: unknown payload kind %q", job.Payload.Kind)
	}
}

func (s *Scheduler) publish(eventType string, data any) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventType, Data: data})
	}
}

// HeartbeatOK is the sentinel the Heartbeat payload contract scans for.
const HeartbeatOK = "HEARTBEAT_OK"

// HasHeartbeatOK reports whether response carries the sentinel as a prefix
// or suffix of its trimmed form.
func HasHeartbeatOK(response string) bool {
	trimmed := strings.TrimSpace(response)
	return strings.HasPrefix(trimmed, HeartbeatOK) || strings.HasSuffix(trimmed, HeartbeatOK)
}
