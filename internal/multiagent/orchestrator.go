package multiagent

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Mode selects how the orchestrator interprets task completion.
type Mode string

const (
	ModeAll   Mode = "all"
	ModeFirst Mode = "first"
	ModeAny   Mode = "any"
)

// FailureStrategy controls how task failures affect the aggregate result.
type FailureStrategy string

const (
	FailContinue FailureStrategy = "continue"
	FailFast     FailureStrategy = "fail_fast"
	FailIgnore   FailureStrategy = "ignore"
)

// Task is one unit of work to fan out to a subagent.
type Task struct {
	ID     string
	Prompt string
	Level  ThinkingLevel
}

// TaskRecord is one task's outcome within a ParallelResult.
type TaskRecord struct {
	TaskID    string
	Response  string
	Success   bool
	Error     string
	Cancelled bool
}

// ParallelResult is the aggregate result of one orchestration run.
type ParallelResult struct {
	Mode           Mode
	Records        []TaskRecord
	SuccessCount   int
	FailureCount   int
	OverallSuccess bool
	StartedAt      time.Time
	FinishedAt     time.Time
	Duration       time.Duration
}

// AggregatedResponse joins every successful task's response, matching
// SPEC_FULL.md §4.3's join separator.
func (r ParallelResult) AggregatedResponse() string {
	var parts []string
	for _, rec := range r.Records {
		if rec.Success {
			parts = append(parts, rec.Response)
		}
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// Orchestrator runs bounded-parallelism fan-out over a list of tasks
// (SPEC_FULL.md §4.3).
type Orchestrator struct {
	spawner        *Spawner
	maxConcurrency int
}

// NewOrchestrator constructs an Orchestrator bounded to maxConcurrency
// concurrent subagent lanes (<=0 means unbounded).
func NewOrchestrator(spawner *Spawner, maxConcurrency int) *Orchestrator {
	return &Orchestrator{spawner: spawner, maxConcurrency: maxConcurrency}
}

// Run executes tasks under mode/strategy with bounded parallelism via a
// semaphore of maxConcurrency permits.
func (o *Orchestrator) Run(ctx context.Context, parentAgent string, parentDepth int, tasks []Task, mode Mode, required int, cancelOnTarget bool, strategy FailureStrategy) ParallelResult {
	started := time.Now()
	ctx, cancelAll := context.WithCancel(ctx)
	defer cancelAll()

	sem := make(chan struct{}, o.semSize())

	records := make([]TaskRecord, len(tasks))
	var mu sync.Mutex
	var wg sync.WaitGroup
	var successCount int
	targetReached := false

	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task Task) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				mu.Lock()
				records[i] = TaskRecord{TaskID: task.ID, Cancelled: true}
				mu.Unlock()
				return
			}

			result, err := o.spawner.Spawn(ctx, parentAgent, parentDepth, task.ID, task.Prompt, task.Level)
			rec := TaskRecord{TaskID: task.ID, Response: result.Response, Success: result.Success}
			if err != nil {
				rec.Success = false
				rec.Error = err.Error()
			} else if result.Error != "" {
				rec.Error = result.Error
			}
			if !rec.Success && ctx.Err() != nil {
				rec.Cancelled = true
			}

			mu.Lock()
			records[i] = rec
			if rec.Success {
				successCount++
			}
			shouldCancel := false
			switch mode {
			case ModeFirst:
				if rec.Success && !targetReached {
					targetReached = true
					shouldCancel = cancelOnTarget
				}
			case ModeAny:
				if successCount >= required && !targetReached {
					targetReached = true
					shouldCancel = cancelOnTarget
				}
			}
			failFastTrigger := strategy == FailFast && !rec.Success && mode == ModeAll
			mu.Unlock()

			if shouldCancel || failFastTrigger {
				cancelAll()
			}
		}(i, task)
	}

	wg.Wait()

	finished := time.Now()
	result := ParallelResult{
		Mode:       mode,
		Records:    filterIgnored(records, strategy),
		StartedAt:  started,
		FinishedAt: finished,
		Duration:   finished.Sub(started),
	}
	for _, rec := range result.Records {
		if rec.Success {
			result.SuccessCount++
		} else if !rec.Cancelled {
			result.FailureCount++
		}
	}
	result.OverallSuccess = overallSuccess(mode, strategy, result.SuccessCount, result.FailureCount, required)
	return result
}

func (o *Orchestrator) semSize() int {
	if o.maxConcurrency <= 0 {
		return 1 << 20 // effectively unbounded
	}
	return o.maxConcurrency
}

func filterIgnored(records []TaskRecord, strategy FailureStrategy) []TaskRecord {
	if strategy != FailIgnore {
		return records
	}
	out := records[:0:0]
	for _, r := range records {
		if r.Success {
			out = append(out, r)
		}
	}
	return out
}

// overallSuccess implements the predicate table of SPEC_FULL.md §4.3.
func overallSuccess(mode Mode, strategy FailureStrategy, successCount, failureCount, required int) bool {
	switch mode {
	case ModeAll:
		switch strategy {
		case FailFast:
			return failureCount == 0
		case FailIgnore:
			return true
		default: // FailContinue
			return successCount > 0
		}
	case ModeFirst:
		return successCount > 0
	case ModeAny:
		return successCount >= required
	default:
		return false
	}
}
