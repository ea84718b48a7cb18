package scheduler

import (
	"sync"
	"time"

	"github.com/agentfabric/agentd/pkg/fabric"
)

// Mirror optionally persists scheduler state to a durable store
// (SPEC_FULL.md §3 persisted row layout for scheduled_jobs).
type Mirror interface {
	PutJob(job fabric.ScheduledJob) error
	DeleteJob(id string) error
	LoadAll() ([]fabric.ScheduledJob, error)
}

const historyCap = 100

// jobRecord bundles a job with its execution history ring buffer, guarded
// by the owning Scheduler's single map lock (SPEC_FULL.md §5).
type jobRecord struct {
	job     fabric.ScheduledJob
	history []fabric.JobExecution // newest-first, capped at historyCap
}

func (r *jobRecord) recordExecution(exec fabric.JobExecution) {
	r.history = append([]fabric.JobExecution{exec}, r.history...)
	if len(r.history) > historyCap {
		r.history = r.history[:historyCap]
	}
}

// jobTable is the scheduler's id -> jobRecord map, guarded by one mutex.
type jobTable struct {
	mu     sync.Mutex
	jobs   map[string]*jobRecord
	mirror Mirror
}

func newJobTable(mirror Mirror) *jobTable {
	return &jobTable{jobs: make(map[string]*jobRecord), mirror: mirror}
}

func (t *jobTable) add(job fabric.ScheduledJob) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[job.ID] = &jobRecord{job: job}
	if t.mirror != nil {
		_ = t.mirror.PutJob(job)
	}
}

func (t *jobTable) remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.jobs, id)
	if t.mirror != nil {
		_ = t.mirror.DeleteJob(id)
	}
}

func (t *jobTable) get(id string) (fabric.ScheduledJob, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.jobs[id]
	if !ok {
		return fabric.ScheduledJob{}, false
	}
	return r.job, true
}

func (t *jobTable) list() []fabric.ScheduledJob {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]fabric.ScheduledJob, 0, len(t.jobs))
	for _, r := range t.jobs {
		out = append(out, r.job)
	}
	return out
}

func (t *jobTable) history(id string) []fabric.JobExecution {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.jobs[id]
	if !ok {
		return nil
	}
	out := make([]fabric.JobExecution, len(r.history))
	copy(out, r.history)
	return out
}

// dueJobs returns a point-in-time snapshot of every enabled job whose
// next_run has passed.
func (t *jobTable) dueJobs(now time.Time) []fabric.ScheduledJob {
	t.mu.Lock()
	defer t.mu.Unlock()
	var due []fabric.ScheduledJob
	for _, r := range t.jobs {
		j := r.job
		if !j.Enabled || j.NextRun == nil {
			continue
		}
		if !j.NextRun.After(now) {
			due = append(due, j)
		}
	}
	return due
}

// markDispatched clears a job's next_run at dispatch time, so a long-running
// payload is not re-selected as due by a later tick before finishExecution
// recomputes next_run; this avoids concurrent duplicate executions of the
// same job.
func (t *jobTable) markDispatched(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.jobs[id]
	if !ok {
		return
	}
	r.job.NextRun = nil
	if t.mirror != nil {
		_ = t.mirror.PutJob(r.job)
	}
}

// finishExecution applies the post-execution update rules of
// SPEC_FULL.md §4.5 step 5 under the map lock: error_count reset/increment,
// delete_after_run handling, and next_run recomputation.
func (t *jobTable) finishExecution(id string, exec fabric.JobExecution, computeNext func(fabric.ScheduledJob) *time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.jobs[id]
	if !ok {
		return
	}
	r.recordExecution(exec)

	if exec.Status == fabric.JobSuccess {
		r.job.ErrorCount = 0
	} else {
		r.job.ErrorCount++
	}

	if r.job.DeleteAfterRun && exec.Status == fabric.JobSuccess {
		delete(t.jobs, id)
		if t.mirror != nil {
			_ = t.mirror.DeleteJob(id)
		}
		return
	}

	r.job.NextRun = computeNext(r.job)
	if t.mirror != nil {
		_ = t.mirror.PutJob(r.job)
	}
}

// update replaces a job's mutable fields (used by admin update_job calls).
func (t *jobTable) update(job fabric.ScheduledJob) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.jobs[job.ID]; ok {
		r.job = job
	} else {
		t.jobs[job.ID] = &jobRecord{job: job}
	}
	if t.mirror != nil {
		_ = t.mirror.PutJob(job)
	}
}
