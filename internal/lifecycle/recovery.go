package lifecycle

import (
	"context"
	"fmt"

	"github.com/agentfabric/agentd/pkg/fabric"
)

// RecoveryEngine executes a chosen RecoveryAction against a resource by
// delegating to the resource type's handler (SPEC_FULL.md §4.7).
type RecoveryEngine struct {
	plugins *PluginRegistry
}

// NewRecoveryEngine constructs a RecoveryEngine over a PluginRegistry.
func NewRecoveryEngine(plugins *PluginRegistry) *RecoveryEngine {
	return &RecoveryEngine{plugins: plugins}
}

// Execute runs action against inst, returning the resulting outcome.
func (e *RecoveryEngine) Execute(ctx context.Context, inst fabric.ResourceInstance, action fabric.RecoveryAction) fabric.RecoveryOutcome {
	handler, err := e.plugins.HandlerFor(inst.ResourceType)
	if err != nil {
		return fabric.RecoveryOutcome{Kind: fabric.OutcomeFailed, Reason: err.Error()}
	}

	switch action.Kind {
	case fabric.ActionRetry:
		return e.retry(ctx, inst, handler, action.PreserveState)
	case fabric.ActionTransfer:
		return e.transfer(ctx, inst, handler, action)
	case fabric.ActionEscalate:
		return fabric.RecoveryOutcome{Kind: fabric.OutcomeEscalated, Tier: action.Tier}
	case fabric.ActionAbort:
		if err := handler.Kill(ctx, inst); err != nil {
			return fabric.RecoveryOutcome{Kind: fabric.OutcomeFailed, Reason: fmt.Sprintf("abort kill failed: %v", err)}
		}
		return fabric.RecoveryOutcome{Kind: fabric.OutcomeFailed, Reason: action.Reason}
	default:
		return fabric.RecoveryOutcome{Kind: fabric.OutcomeFailed, Reason: fmt.Sprintf("unknown recovery action %q", action.Kind)}
	}
}

func (e *RecoveryEngine) retry(ctx context.Context, inst fabric.ResourceInstance, handler ResourceHandler, preserve bool) fabric.RecoveryOutcome {
	var state fabric.PreservedState
	var haveState bool
	if preserve {
		extracted, err := handler.ExtractState(ctx, inst)
		if err == nil {
			state = extracted
			haveState = true
		}
	}

	if err := handler.Stop(ctx, inst); err != nil {
		return fabric.RecoveryOutcome{Kind: fabric.OutcomeFailed, Reason: fmt.Sprintf("retry stop failed: %v", err)}
	}
	if err := handler.Start(ctx, inst); err != nil {
		return fabric.RecoveryOutcome{Kind: fabric.OutcomeFailed, Reason: fmt.Sprintf("retry start failed: %v", err)}
	}
	if haveState {
		if err := handler.ApplyState(ctx, inst, state); err != nil {
			return fabric.RecoveryOutcome{Kind: fabric.OutcomeFailed, Reason: fmt.Sprintf("retry apply_state failed: %v", err)}
		}
	}
	if err := handler.ProbeHealth(ctx, inst); err != nil {
		return fabric.RecoveryOutcome{Kind: fabric.OutcomeFailed, Reason: fmt.Sprintf("still unhealthy after retry: %v", err)}
	}
	return fabric.RecoveryOutcome{Kind: fabric.OutcomeRecovered, ID: inst.ID}
}

func (e *RecoveryEngine) transfer(ctx context.Context, inst fabric.ResourceInstance, handler ResourceHandler, action fabric.RecoveryAction) fabric.RecoveryOutcome {
	fallbacks, err := handler.ListFallbacks(ctx, inst)
	if err != nil {
		return fabric.RecoveryOutcome{Kind: fabric.OutcomeFailed, Reason: fmt.Sprintf("list_fallbacks failed: %v", err)}
	}

	target := inst.ResourceType
	if action.ToType != nil {
		target = *action.ToType
	} else if len(fallbacks) > 0 {
		target = fallbacks[0]
	} else {
		return fabric.RecoveryOutcome{Kind: fabric.OutcomeFailed, Reason: "no fallback resource type available"}
	}

	var state fabric.PreservedState
	var haveState bool
	if action.PreserveState {
		extracted, err := handler.ExtractState(ctx, inst)
		if err == nil {
			state = extracted
			haveState = true
		}
	}

	if err := handler.Stop(ctx, inst); err != nil {
		return fabric.RecoveryOutcome{Kind: fabric.OutcomeFailed, Reason: fmt.Sprintf("transfer stop failed: %v", err)}
	}

	targetInst := inst
	targetInst.ResourceType = target
	targetHandler, err := e.plugins.HandlerFor(target)
	if err != nil {
		return fabric.RecoveryOutcome{Kind: fabric.OutcomeFailed, Reason: err.Error()}
	}
	if err := targetHandler.Start(ctx, targetInst); err != nil {
		return fabric.RecoveryOutcome{Kind: fabric.OutcomeFailed, Reason: fmt.Sprintf("transfer start failed: %v", err)}
	}
	if haveState {
		if err := targetHandler.ApplyState(ctx, targetInst, state); err != nil {
			return fabric.RecoveryOutcome{Kind: fabric.OutcomeFailed, Reason: fmt.Sprintf("transfer apply_state failed: %v", err)}
		}
	}
	if err := targetHandler.ProbeHealth(ctx, targetInst); err != nil {
		return fabric.RecoveryOutcome{Kind: fabric.OutcomeFailed, Reason: fmt.Sprintf("still unhealthy after transfer to %s: %v", target.String(), err)}
	}

	return fabric.RecoveryOutcome{Kind: fabric.OutcomeTransferred, From: inst.ResourceType, To: target}
}
