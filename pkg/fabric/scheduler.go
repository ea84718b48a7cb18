package fabric

import "time"

// ScheduleKind distinguishes Interval from Cron schedules.
type ScheduleKind string

const (
	ScheduleInterval ScheduleKind = "interval"
	ScheduleCron     ScheduleKind = "cron"
)

// Schedule is the tagged Interval{secs} | Cron{expr} variant of spec.md §3.
type Schedule struct {
	Kind       ScheduleKind
	IntervalS  int64
	CronExpr   string // 5- or 6-field cron expression
}

// PayloadKind distinguishes the three wire job payloads.
type PayloadKind string

const (
	PayloadHeartbeat PayloadKind = "heartbeat"
	PayloadAgentTurn PayloadKind = "agent_turn"
	PayloadNotify    PayloadKind = "notify"
)

// JobPayload is the tagged Heartbeat | AgentTurn{prompt} | Notify{message} variant.
type JobPayload struct {
	Kind    PayloadKind
	Prompt  string // AgentTurn only
	Message string // Notify only
}

// ActiveHours restricts Heartbeat firing to a local-time window [Start, End).
type ActiveHours struct {
	StartHour int
	EndHour   int
}

// Contains reports whether hour (0-23, local time) falls in [Start, End).
func (a ActiveHours) Contains(hour int) bool {
	if a.StartHour == a.EndHour {
		return true
	}
	if a.StartHour < a.EndHour {
		return hour >= a.StartHour && hour < a.EndHour
	}
	// wraps past midnight
	return hour >= a.StartHour || hour < a.EndHour
}

// ScheduledJob is the spec.md §3 record.
type ScheduledJob struct {
	ID             string
	Name           string
	Schedule       Schedule
	SessionTarget  string
	Payload        JobPayload
	Enabled        bool
	ErrorCount     int
	NextRun        *time.Time
	ActiveHours    *ActiveHours
	DeleteAfterRun bool
}

// JobStatus is the execution-record status enum.
type JobStatus string

const (
	JobSuccess JobStatus = "success"
	JobFailed  JobStatus = "failed"
	JobStuck   JobStatus = "stuck"
	JobSkipped JobStatus = "skipped"
)

// JobExecution is the spec.md §3 audit record, ring-buffered to <=100 per job.
type JobExecution struct {
	JobID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     JobStatus
	Output     string
}
