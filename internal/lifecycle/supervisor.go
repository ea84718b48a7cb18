package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentfabric/agentd/internal/eventbus"
	"github.com/agentfabric/agentd/pkg/fabric"
)

// Supervisor is the central controller of SPEC_FULL.md §4.7, composing a
// Registry, HealthMonitor, RecoveryEngine, PluginRegistry, and
// EscalationManager.
type Supervisor struct {
	Registry   *Registry
	Health     *HealthMonitor
	Recovery   *RecoveryEngine
	Plugins    *PluginRegistry
	Escalation *EscalationManager

	bus *eventbus.Bus
	now func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool

	interventionsMu sync.Mutex
	interventions   map[string]fabric.UserInterventionRequest
}

// NewSupervisor wires the five collaborators together.
func NewSupervisor(bus *eventbus.Bus, mirror Mirror) *Supervisor {
	plugins := NewPluginRegistry()
	return &Supervisor{
		Registry:      NewRegistry(mirror),
		Health:        NewHealthMonitor(),
		Recovery:      NewRecoveryEngine(plugins),
		Plugins:       plugins,
		Escalation:    NewEscalationManager(DefaultTiers()),
		bus:           bus,
		now:           time.Now,
		interventions: make(map[string]fabric.UserInterventionRequest),
	}
}

func (s *Supervisor) publish(eventType string, data any) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventType, Data: data})
	}
}

// SpawnResource allocates a new instance id, registers it Idle, begins
// heartbeat tracking, flips to Running, and publishes ResourceStarted.
func (s *Supervisor) SpawnResource(rt fabric.ResourceType, config map[string]any) (fabric.ResourceInstance, error) {
	id := fmt.Sprintf("%d:%s", s.now().UnixMilli(), uuid.NewString())
	cfg, ok := fabric.DefaultHeartbeatConfigs()[rt.String()]
	if !ok {
		cfg = fabric.HeartbeatConfig{IntervalSecs: 30, StuckThreshold: 2, MaxRetries: 2, CooldownSecs: 10}
	}

	inst := fabric.ResourceInstance{
		ID:              id,
		ResourceType:    rt,
		State:           fabric.Idle(),
		Config:          config,
		CreatedAt:       s.now(),
		HeartbeatConfig: cfg,
	}
	s.Registry.Register(inst)
	s.Health.Track(id, cfg)

	running := fabric.Running("initialized", s.now(), nil)
	if err := s.Registry.UpdateState(id, running, "spawned"); err != nil {
		return fabric.ResourceInstance{}, err
	}
	inst, _ = s.Registry.Get(id)
	s.publish("ResourceStarted", map[string]any{"resource_id": id, "type": rt.String()})
	return inst, nil
}

// StopResource stops heartbeat tracking, flips to Completed, and
// publishes ResourceCompleted.
func (s *Supervisor) StopResource(id string) error {
	s.Health.Untrack(id)
	if err := s.Registry.UpdateState(id, fabric.Completed(s.now(), ""), "stopped"); err != nil {
		return err
	}
	s.publish("ResourceCompleted", map[string]any{"resource_id": id})
	return nil
}

// KillResource stops heartbeat tracking, flips to Failed{terminal:true},
// and publishes ResourceFailed{terminal:true}.
func (s *Supervisor) KillResource(id, reason string) error {
	s.Health.Untrack(id)
	if err := s.Registry.UpdateState(id, fabric.Failed(s.now(), reason, true, 0), "killed"); err != nil {
		return err
	}
	s.publish("ResourceFailed", map[string]any{"resource_id": id, "terminal": true, "reason": reason})
	return nil
}

// RecoverResource looks up the instance, asks the Escalation Manager for
// an action, records the attempt, flips to Recovering, publishes
// ResourceRecovering, calls the Recovery Engine, and reacts to the
// outcome per SPEC_FULL.md §4.7.
func (s *Supervisor) RecoverResource(ctx context.Context, id string) (fabric.RecoveryOutcome, error) {
	inst, ok := s.Registry.Get(id)
	if !ok {
		return fabric.RecoveryOutcome{}, fmt.Errorf("lifecycle: unknown resource %q", id)
	}

	var toType *fabric.ResourceType
	if fallbacks, err := s.Plugins.HandlerFor(inst.ResourceType); err == nil {
		if list, err := fallbacks.ListFallbacks(ctx, inst); err == nil && len(list) > 0 {
			toType = &list[0]
		}
	}

	action := s.Escalation.DetermineAction(id, toType)
	s.Escalation.RecordAttempt(id)
	tier := s.Escalation.CurrentTier(id)
	if err := s.Registry.IncrementRecoveryAttempt(id, tier); err != nil {
		return fabric.RecoveryOutcome{}, err
	}

	if err := s.Registry.UpdateState(id, fabric.Recovering(string(action.Kind), s.now()), "recovery attempt"); err != nil {
		return fabric.RecoveryOutcome{}, err
	}
	s.publish("ResourceRecovering", map[string]any{"resource_id": id, "action": string(action.Kind)})

	outcome := s.Recovery.Execute(ctx, inst, action)
	switch outcome.Kind {
	case fabric.OutcomeRecovered:
		s.publish("ResourceRecovered", map[string]any{"resource_id": id, "tier": tier})
		s.Escalation.Reset(id)
		s.Health.Beat(id)
		_ = s.Registry.UpdateState(id, fabric.Running("recovered", s.now(), nil), "recovered")
	case fabric.OutcomeTransferred:
		s.publish("ResourceTransferring", map[string]any{"resource_id": id, "from": outcome.From.String(), "to": outcome.To.String()})
		s.Escalation.Reset(id)
		s.Health.Beat(id)
		_ = s.Registry.UpdateState(id, fabric.Running("transferred", s.now(), nil), "transferred")
	case fabric.OutcomeEscalated:
		s.Escalation.Escalate(id)
		_ = s.Registry.UpdateState(id, fabric.Running(string(action.Kind), s.now(), nil), "escalation tier exhausted")
	case fabric.OutcomeFailed:
		s.publish("ResourceFailed", map[string]any{"resource_id": id, "terminal": false, "reason": outcome.Reason})
		_ = s.Registry.UpdateState(id, fabric.Running(string(action.Kind), s.now(), nil), "recovery attempt failed")
	}
	return outcome, nil
}

// StartMonitoring launches the health-check sweep loop at
// healthCheckInterval.
func (s *Supervisor) StartMonitoring(ctx context.Context, healthCheckInterval time.Duration) {
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
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(healthCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweepOnce(ctx)
			}
		}
	}()
}

// StopMonitoring halts the sweep loop and waits for it to exit.
func (s *Supervisor) StopMonitoring() {
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

// sweepOnce runs one health-check sweep: flips newly-stuck resources to
// Stuck, publishes ResourceStuck, and either auto-recovers or parks a
// UserInterventionRequest, then publishes HealthCheckCompleted.
func (s *Supervisor) sweepOnce(ctx context.Context) {
	statuses := s.Health.Sweep()
	stuckFound := 0
	for _, st := range statuses {
		if !st.Stuck {
			continue
		}
		inst, ok := s.Registry.Get(st.ID)
		if !ok || inst.State.Kind == fabric.StateStuck {
			continue
		}
		stuckFound++
		if err := s.Registry.UpdateState(st.ID, fabric.Stuck(st.Since, 0, nil), "health check: stuck threshold reached"); err != nil {
			continue
		}
		s.publish("ResourceStuck", map[string]any{"resource_id": st.ID})

		if s.Escalation.CanAutoEscalate(st.ID) && s.Escalation.CooldownClear(st.ID) {
			_, _ = s.RecoverResource(ctx, st.ID)
		} else {
			s.createIntervention(st.ID)
		}
	}
	s.publish("HealthCheckCompleted", map[string]any{"total_checked": len(statuses), "stuck_found": stuckFound})
}

func (s *Supervisor) createIntervention(resourceID string) {
	req := fabric.UserInterventionRequest{
		ID:             uuid.NewString(),
		ResourceID:     resourceID,
		AttemptedTiers: s.Escalation.AttemptedTiers(resourceID),
		Unresolved:     true,
		CreatedAt:      s.now(),
	}
	s.interventionsMu.Lock()
	s.interventions[req.ID] = req
	s.interventionsMu.Unlock()

	if s.Registry.mirror != nil {
		_ = s.Registry.mirror.PutIntervention(req)
	}
	s.publish("UserInterventionNeeded", map[string]any{"intervention_id": req.ID, "resource_id": resourceID})
}

// Interventions returns every currently-unresolved intervention request.
func (s *Supervisor) Interventions() []fabric.UserInterventionRequest {
	s.interventionsMu.Lock()
	defer s.interventionsMu.Unlock()
	var out []fabric.UserInterventionRequest
	for _, req := range s.interventions {
		if req.Unresolved {
			out = append(out, req)
		}
	}
	return out
}

// ResolveIntervention marks an intervention resolved with the chosen option.
func (s *Supervisor) ResolveIntervention(id, selectedOption string) error {
	s.interventionsMu.Lock()
	defer s.interventionsMu.Unlock()
	req, ok := s.interventions[id]
	if !ok {
		return fmt.Errorf("lifecycle: unknown intervention %q", id)
	}
	now := s.now()
	req.Unresolved = false
	req.ResolvedAt = &now
	req.SelectedOption = selectedOption
	s.interventions[id] = req
	return nil
}
