package fabric

import (
	"fmt"
	"time"
)

// ResourceType is the closed set of resource kinds plus Custom(name).
type ResourceType struct {
	Kind string
	Name string // populated only when Kind == "custom"
}

var (
	ResourceAgent          = ResourceType{Kind: "agent"}
	ResourceChannel        = ResourceType{Kind: "channel"}
	ResourceTool           = ResourceType{Kind: "tool"}
	ResourceSchedulerJob   = ResourceType{Kind: "scheduler_job"}
	ResourceSubagent       = ResourceType{Kind: "subagent"}
	ResourceGatewayHandler = ResourceType{Kind: "gateway_handler"}
	ResourceMemoryOp       = ResourceType{Kind: "memory_operation"}
)

// ResourceCustom builds a Custom(name) resource type.
func ResourceCustom(name string) ResourceType {
	return ResourceType{Kind: "custom", Name: name}
}

// ParseResourceType maps a canonical type string (as it appears in a
// ResourceID or an HTTP path segment) back to a ResourceType, falling
// back to Custom(s) for anything outside the closed set.
func ParseResourceType(s string) ResourceType {
	switch s {
	case ResourceAgent.Kind:
		return ResourceAgent
	case ResourceChannel.Kind:
		return ResourceChannel
	case ResourceTool.Kind:
		return ResourceTool
	case ResourceSchedulerJob.Kind:
		return ResourceSchedulerJob
	case ResourceSubagent.Kind:
		return ResourceSubagent
	case ResourceGatewayHandler.Kind:
		return ResourceGatewayHandler
	case ResourceMemoryOp.Kind:
		return ResourceMemoryOp
	default:
		return ResourceCustom(s)
	}
}

func (t ResourceType) String() string {
	if t.Kind == "custom" {
		return t.Name
	}
	return t.Kind
}

// ResourceID is the (ResourceType, instance_id) pair; its canonical string
// form is "{type}:{instance_id}".
type ResourceID struct {
	Type       ResourceType
	InstanceID string
}

func (id ResourceID) String() string {
	return fmt.Sprintf("%s:%s", id.Type.String(), id.InstanceID)
}

// ResourceStateKind tags the ResourceState variant.
type ResourceStateKind string

const (
	StateIdle       ResourceStateKind = "idle"
	StateRunning    ResourceStateKind = "running"
	StateStuck      ResourceStateKind = "stuck"
	StateRecovering ResourceStateKind = "recovering"
	StateCompleted  ResourceStateKind = "completed"
	StateFailed     ResourceStateKind = "failed"
)

// ResourceState is the tagged union of spec.md §3's resource state machine.
type ResourceState struct {
	Kind ResourceStateKind

	// Running fields.
	Substate  string
	StartedAt time.Time
	Progress  *float64

	// Stuck fields.
	Since                 time.Time
	StuckRecoveryAttempts int
	LastKnownProgress     *float64

	// Recovering fields.
	RecoveringAction string

	// Completed fields.
	CompletedAt     time.Time
	CompletedResult string

	// Failed fields.
	FailedAt              time.Time
	FailedError           string
	Terminal              bool
	EscalationTierReached int
}

// CanTransitionTo reports whether the state graph in spec.md §3 permits
// moving from the receiver to `next`. Completed and Failed{terminal:true}
// are absorbing; Stuck is reachable only from Running; Recovering only
// from Stuck.
func (s ResourceState) CanTransitionTo(next ResourceStateKind) bool {
	if s.Kind == StateCompleted {
		return false
	}
	if s.Kind == StateFailed && s.Terminal {
		return false
	}
	switch next {
	case StateStuck:
		return s.Kind == StateRunning
	case StateRecovering:
		return s.Kind == StateStuck
	default:
		return true
	}
}

// Idle builds an Idle state.
func Idle() ResourceState { return ResourceState{Kind: StateIdle} }

// Running builds a Running state.
func Running(substate string, startedAt time.Time, progress *float64) ResourceState {
	return ResourceState{Kind: StateRunning, Substate: substate, StartedAt: startedAt, Progress: progress}
}

// Stuck builds a Stuck state.
func Stuck(since time.Time, attempts int, lastProgress *float64) ResourceState {
	return ResourceState{Kind: StateStuck, Since: since, StuckRecoveryAttempts: attempts, LastKnownProgress: lastProgress}
}

// Recovering builds a Recovering state.
func Recovering(action string, startedAt time.Time) ResourceState {
	return ResourceState{Kind: StateRecovering, RecoveringAction: action, StartedAt: startedAt}
}

// Completed builds a Completed state.
func Completed(at time.Time, result string) ResourceState {
	return ResourceState{Kind: StateCompleted, CompletedAt: at, CompletedResult: result}
}

// Failed builds a Failed state.
func Failed(at time.Time, errText string, terminal bool, tier int) ResourceState {
	return ResourceState{Kind: StateFailed, FailedAt: at, FailedError: errText, Terminal: terminal, EscalationTierReached: tier}
}

// HeartbeatConfig is the per-resource-type liveness configuration of spec.md §4.7.
type HeartbeatConfig struct {
	IntervalSecs  int
	StuckThreshold int
	MaxRetries    int
	CooldownSecs  int
}

// DefaultHeartbeatConfigs returns the spec's per-type defaults.
func DefaultHeartbeatConfigs() map[string]HeartbeatConfig {
	return map[string]HeartbeatConfig{
		ResourceAgent.String():          {IntervalSecs: 5, StuckThreshold: 3, MaxRetries: 2, CooldownSecs: 2},
		ResourceChannel.String():        {IntervalSecs: 30, StuckThreshold: 2, MaxRetries: 3, CooldownSecs: 10},
		ResourceTool.String():           {IntervalSecs: 10, StuckThreshold: 2, MaxRetries: 3, CooldownSecs: 5},
		ResourceSchedulerJob.String():   {IntervalSecs: 60, StuckThreshold: 2, MaxRetries: 2, CooldownSecs: 30},
		ResourceSubagent.String():       {IntervalSecs: 5, StuckThreshold: 3, MaxRetries: 1, CooldownSecs: 2},
		ResourceGatewayHandler.String(): {IntervalSecs: 30, StuckThreshold: 2, MaxRetries: 2, CooldownSecs: 10},
	}
}

// ResourceInstance is the supervisor's per-resource record.
type ResourceInstance struct {
	ID                    string
	ResourceType          ResourceType
	State                 ResourceState
	Config                map[string]any
	CreatedAt             time.Time
	RecoveryAttempts      int
	CurrentEscalationTier int
	HeartbeatConfig       HeartbeatConfig
}

// ResourceTransition is one appended row of a resource's transition history.
type ResourceTransition struct {
	ResourceID string
	From       ResourceStateKind
	To         ResourceStateKind
	Reason     string
	At         time.Time
}

// PreservedStateKind tags the PreservedState variant.
type PreservedStateKind string

const (
	PreservedAgent     PreservedStateKind = "agent"
	PreservedChannel   PreservedStateKind = "channel"
	PreservedTool      PreservedStateKind = "tool"
	PreservedScheduler PreservedStateKind = "scheduler"
	PreservedGeneric   PreservedStateKind = "generic"
)

// PreservedState is the tagged union carried across a resource transfer/retry.
type PreservedState struct {
	Kind PreservedStateKind

	// Agent
	MessageHistory      []SessionMessage
	CompletedToolResult []SessionMessage
	SessionMetadata     map[string]string
	MemoryContext       []string
	CurrentStep         *int

	// Channel
	OutboundQueue []string
	ChannelConfig map[string]string
	LastSequence  int64
	PendingAcks   []string

	// Tool
	ToolName      string
	ToolArguments string
	PartialResult string
	AttemptNumber int

	// Scheduler
	JobID             string
	JobConfig         *ScheduledJob
	ExecutionContext  map[string]string
	PartialResults    []string

	// Generic
	Value any
}

// RecoveryActionKind tags the RecoveryAction variant.
type RecoveryActionKind string

const (
	ActionRetry    RecoveryActionKind = "retry"
	ActionTransfer RecoveryActionKind = "transfer"
	ActionEscalate RecoveryActionKind = "escalate"
	ActionAbort    RecoveryActionKind = "abort"
)

// RecoveryAction is the tagged union the Escalation Manager hands to the
// Recovery Engine.
type RecoveryAction struct {
	Kind RecoveryActionKind

	PreserveState bool   // Retry, Transfer
	ToType        *ResourceType // Transfer
	Tier          int    // Escalate
	Reason        string // Abort
}

// RecoveryOutcomeKind tags the RecoveryOutcome variant.
type RecoveryOutcomeKind string

const (
	OutcomeRecovered   RecoveryOutcomeKind = "recovered"
	OutcomeTransferred RecoveryOutcomeKind = "transferred"
	OutcomeEscalated   RecoveryOutcomeKind = "escalated"
	OutcomeFailed      RecoveryOutcomeKind = "failed"
)

// RecoveryOutcome is the Recovery Engine's result.
type RecoveryOutcome struct {
	Kind   RecoveryOutcomeKind
	ID     string // Recovered
	From   ResourceType
	To     ResourceType
	Tier   int
	Reason string
}

// UserInterventionRequest is emitted when tier 3 is reached.
type UserInterventionRequest struct {
	ID             string
	ResourceID     string
	AttemptedTiers []int
	Options        []string
	Unresolved     bool
	CreatedAt      time.Time
	ResolvedAt     *time.Time
	SelectedOption string
}

// AuditEntry is the append-only security audit record.
type AuditEntry struct {
	Timestamp time.Time
	ToolName  string
	Args      string
	RiskLevel string
	Decision  string
	Result    string
}
