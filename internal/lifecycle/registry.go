// Package lifecycle implements the Lifecycle Supervisor of SPEC_FULL.md
// §4.7: a state registry, health monitor, recovery engine, plugin
// registry, and escalation manager composed into a single supervisor,
// grounded on the teacher's edge.Manager (haasonsaas/nexus
// internal/edge/manager.go) for its mutex-guarded registry map, slog
// logging, and heartbeat bookkeeping idiom.
package lifecycle

import (
	"fmt"
	"sync"
	"time"

	"github.com/agentfabric/agentd/pkg/fabric"
)

// Mirror optionally persists registry state to a durable store
// (SPEC_FULL.md §4.7 durability).
type Mirror interface {
	PutInstance(inst fabric.ResourceInstance) error
	DeleteInstance(id string) error
	LoadNonTerminal() ([]fabric.ResourceInstance, error)
	AppendTransition(t fabric.ResourceTransition) error
	PutIntervention(req fabric.UserInterventionRequest) error
	PurgeTerminal(keep int) error
}

// retentionCount is the max number of completed/failed rows kept before purge.
const retentionCount = 100

// Registry owns the resource-instance map and per-resource transition
// history, guarded by one reader-writer lock (SPEC_FULL.md §5).
type Registry struct {
	mu          sync.RWMutex
	instances   map[string]fabric.ResourceInstance
	history     map[string][]fabric.ResourceTransition
	mirror      Mirror
	now         func() time.Time
	terminalSeq []string // insertion order of completed/terminal-failed ids, for retention purge
}

// NewRegistry constructs an empty Registry. mirror may be nil.
func NewRegistry(mirror Mirror) *Registry {
	return &Registry{
		instances: make(map[string]fabric.ResourceInstance),
		history:   make(map[string][]fabric.ResourceTransition),
		mirror:    mirror,
		now:       time.Now,
	}
}

// LoadFromMirror resumes every non-terminal row from the durable mirror.
func (r *Registry) LoadFromMirror() error {
	if r.mirror == nil {
		return nil
	}
	instances, err := r.mirror.LoadNonTerminal()
	if err != nil {
		return fmt.Errorf("lifecycle: load non-terminal rows: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inst := range instances {
		r.instances[inst.ID] = inst
	}
	return nil
}

// Register adds a new resource instance to the registry.
func (r *Registry) Register(inst fabric.ResourceInstance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[inst.ID] = inst
	if r.mirror != nil {
		_ = r.mirror.PutInstance(inst)
	}
}

// UpdateState transitions a resource to newState, appending a transition
// record. Invalid transitions (per ResourceState.CanTransitionTo) are
// rejected with an error and leave the registry unchanged.
func (r *Registry) UpdateState(id string, newState fabric.ResourceState, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.instances[id]
	if !ok {
		return fmt.Errorf("lifecycle: unknown resource %q", id)
	}
	if !inst.State.CanTransitionTo(newState.Kind) {
		return fmt.Errorf("lifecycle: resource %q cannot transition %s -> %s", id, inst.State.Kind, newState.Kind)
	}

	transition := fabric.ResourceTransition{
		ResourceID: id,
		From:       inst.State.Kind,
		To:         newState.Kind,
		Reason:     reason,
		At:         r.now(),
	}
	inst.State = newState
	r.instances[id] = inst
	r.history[id] = append(r.history[id], transition)

	if r.mirror != nil {
		_ = r.mirror.PutInstance(inst)
		_ = r.mirror.AppendTransition(transition)
	}

	if newState.Kind == fabric.StateCompleted || (newState.Kind == fabric.StateFailed && newState.Terminal) {
		r.terminalSeq = append(r.terminalSeq, id)
		r.purgeOldTerminalLocked()
	}
	return nil
}

// IncrementRecoveryAttempt bumps a resource's recovery-attempt counter and
// records the escalation tier the attempt ran at, keeping recovery_attempts
// monotonically non-decreasing per spec.md §3.
func (r *Registry) IncrementRecoveryAttempt(id string, tier int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[id]
	if !ok {
		return fmt.Errorf("lifecycle: unknown resource %q", id)
	}
	inst.RecoveryAttempts++
	inst.CurrentEscalationTier = tier
	r.instances[id] = inst
	if r.mirror != nil {
		_ = r.mirror.PutInstance(inst)
	}
	return nil
}

// purgeOldTerminalLocked drops completed/failed rows beyond retentionCount,
// oldest first. Callers must hold r.mu.
func (r *Registry) purgeOldTerminalLocked() {
	if len(r.terminalSeq) <= retentionCount {
		return
	}
	overflow := len(r.terminalSeq) - retentionCount
	toPurge := r.terminalSeq[:overflow]
	r.terminalSeq = r.terminalSeq[overflow:]
	for _, id := range toPurge {
		delete(r.instances, id)
		delete(r.history, id)
		if r.mirror != nil {
			_ = r.mirror.DeleteInstance(id)
		}
	}
}

// Get returns a resource instance by id.
func (r *Registry) Get(id string) (fabric.ResourceInstance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[id]
	return inst, ok
}

// GetByType returns every instance of the given resource type.
func (r *Registry) GetByType(t fabric.ResourceType) []fabric.ResourceInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []fabric.ResourceInstance
	for _, inst := range r.instances {
		if inst.ResourceType == t {
			out = append(out, inst)
		}
	}
	return out
}

// GetAll returns a snapshot of every registered instance.
func (r *Registry) GetAll() []fabric.ResourceInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]fabric.ResourceInstance, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, inst)
	}
	return out
}

// GetStuck returns every instance currently in the Stuck state.
func (r *Registry) GetStuck() []fabric.ResourceInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []fabric.ResourceInstance
	for _, inst := range r.instances {
		if inst.State.Kind == fabric.StateStuck {
			out = append(out, inst)
		}
	}
	return out
}

// GetHistory returns the transition history for one resource, oldest first.
func (r *Registry) GetHistory(id string) []fabric.ResourceTransition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]fabric.ResourceTransition, len(r.history[id]))
	copy(out, r.history[id])
	return out
}

// Remove deletes an instance from the registry entirely.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, id)
	delete(r.history, id)
	if r.mirror != nil {
		_ = r.mirror.DeleteInstance(id)
	}
}
