package agentloop

import (
	"context"
	"fmt"
	"time"

	"github.com/agentfabric/agentd/internal/eventbus"
	"github.com/agentfabric/agentd/internal/security"
	"github.com/agentfabric/agentd/pkg/fabric"
)

// Config parameterizes one turn of the loop (SPEC_FULL.md §4.2).
type Config struct {
	MaxIterations   int
	MaxHistory      int
	Model           string
	Temperature     float64
	MaxTokens       int
	ApprovalTimeout time.Duration // required; see SPEC_FULL.md §9 Open Question resolution
}

// Loop is the reasoning cycle for one turn. It is otherwise stateless:
// all mutable state lives in the history slice the caller passes in.
type Loop struct {
	provider CompletionProvider
	registry *ToolRegistry
	policy   *security.Policy
	bus      *eventbus.Bus
	gate     *ApprovalGate
	cfg      Config
}

// New constructs a Loop. gate may be nil if the policy never returns
// NeedsApproval (e.g. ReadOnly/Full-only deployments).
func New(provider CompletionProvider, registry *ToolRegistry, policy *security.Policy, bus *eventbus.Bus, gate *ApprovalGate, cfg Config) *Loop {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 10
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 50
	}
	return &Loop{provider: provider, registry: registry, policy: policy, bus: bus, gate: gate, cfg: cfg}
}

func (l *Loop) publish(eventType string, data any) {
	if l.bus != nil {
		l.bus.Publish(eventbus.Event{Type: eventType, Data: data})
	}
}

// Run executes the full reasoning cycle of SPEC_FULL.md §4.2 against
// history (mutated in place) and returns the final answer text.
func (l *Loop) Run(ctx context.Context, history *[]fabric.SessionMessage) (string, error) {
	iteration := 0
	var lastContent string

	for {
		trimmed := trimHistory(*history, l.cfg.MaxHistory)
		rendered := render(trimmed, l.provider.SupportsTools())

		resp, err := l.provider.Complete(ctx, CompletionRequest{
			Model:       l.cfg.Model,
			Messages:    rendered,
			Temperature: &l.cfg.Temperature,
			MaxTokens:   &l.cfg.MaxTokens,
		})
		if err != nil {
			return "", fmt.Errorf("agentloop: completion request failed: %w", err)
		}
		lastContent = resp.Content

		calls := ParseToolCalls(resp.Content)
		if len(calls) == 0 {
			*history = append(*history, fabric.NewAssistantMessage(resp.Content, nil))
			return resp.Content, nil
		}

		*history = append(*history, fabric.NewAssistantMessage(resp.Content, calls))

		for _, call := range calls {
			result := l.executeCall(ctx, call)
			*history = append(*history, result)
		}

		iteration++
		if iteration >= l.cfg.MaxIterations {
			return fmt.Sprintf("[Warning: reached maximum iterations (%d)]", l.cfg.MaxIterations), nil
		}
		if ctx.Err() != nil {
			return lastContent, nil
		}
	}
}

// executeCall runs the tool-call execution subprotocol of SPEC_FULL.md §4.2.
func (l *Loop) executeCall(ctx context.Context, call fabric.ParsedToolCall) fabric.SessionMessage {
	decision := l.policy.ValidateCommand(call.Name)
	switch decision.Kind {
	case security.DecisionDenied:
		reason := fmt.Sprintf("Denied by security policy: %s", decision.Reason)
		l.publish("AgentToolResult", toolResultEvent(call.Name, reason, false))
		return fabric.NewToolResultMessage(call.Name, call.CallID, reason, false)
	case security.DecisionNeedsApproval:
		if l.gate == nil {
			reason := "Denied by security policy: approval required but no approval gate is configured"
			l.publish("AgentToolResult", toolResultEvent(call.Name, reason, false))
			return fabric.NewToolResultMessage(call.Name, call.CallID, reason, false)
		}
		approved, timedOut := l.gate.Request(ctx, call.Name, call.Arguments, l.cfg.ApprovalTimeout)
		if timedOut {
			reason := "Denied by security policy: approval timeout"
			l.publish("AgentToolResult", toolResultEvent(call.Name, reason, false))
			return fabric.NewToolResultMessage(call.Name, call.CallID, reason, false)
		}
		if !approved {
			reason := "Denied by security policy: user denied"
			l.publish("AgentToolResult", toolResultEvent(call.Name, reason, false))
			return fabric.NewToolResultMessage(call.Name, call.CallID, reason, false)
		}
		// fallthrough to execution below
	case security.DecisionAllowed:
		// proceed
	}

	tool, ok := l.registry.Lookup(call.Name)
	if !ok {
		reason := fmt.Sprintf("Tool '%s' is not registered", call.Name)
		l.publish("AgentToolResult", toolResultEvent(call.Name, reason, false))
		return fabric.NewToolResultMessage(call.Name, call.CallID, reason, false)
	}

	if err := l.registry.ValidateArguments(call.Name, call.Arguments); err != nil {
		reason := fmt.Sprintf("Invalid arguments for tool '%s': %v", call.Name, err)
		l.publish("AgentToolResult", toolResultEvent(call.Name, reason, false))
		return fabric.NewToolResultMessage(call.Name, call.CallID, reason, false)
	}

	l.publish("AgentToolStart", map[string]string{"tool_name": call.Name, "args": call.Arguments})

	result, err := tool.Execute(ctx, call.Arguments)
	if err != nil {
		l.publish("AgentToolResult", toolResultEvent(call.Name, err.Error(), false))
		return fabric.NewToolResultMessage(call.Name, call.CallID, err.Error(), false)
	}

	l.publish("AgentToolResult", toolResultEvent(call.Name, result.Output, result.Success))
	return fabric.NewToolResultMessage(call.Name, call.CallID, result.Output, result.Success)
}

func toolResultEvent(toolName, result string, success bool) map[string]any {
	return map[string]any{"tool_name": toolName, "result": result, "success": success}
}

// trimHistory preserves the first two messages and the most recent suffix
// so the total stays within max (SPEC_FULL.md §4.2 step 1).
func trimHistory(history []fabric.SessionMessage, max int) []fabric.SessionMessage {
	if len(history) <= max || max < 2 {
		return history
	}
	head := history[:2]
	tailLen := max - 2
	tail := history[len(history)-tailLen:]
	out := make([]fabric.SessionMessage, 0, max)
	out = append(out, head...)
	out = append(out, tail...)
	return out
}

// render converts session messages to the provider wire format. When the
// provider lacks a native tool role, ToolResult messages become User
// messages prefixed per SPEC_FULL.md §4.2 step 2.
func render(history []fabric.SessionMessage, supportsTools bool) []CompletionMessage {
	out := make([]CompletionMessage, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case fabric.RoleSystem:
			out = append(out, CompletionMessage{Role: "system", Content: m.Content})
		case fabric.RoleUser:
			out = append(out, CompletionMessage{Role: "user", Content: m.Content})
		case fabric.RoleAssistant:
			out = append(out, CompletionMessage{Role: "assistant", Content: m.Content})
		case fabric.RoleToolResult:
			mark := "✓"
			if !m.Success {
				mark = "✗"
			}
			content := fmt.Sprintf("[Tool: %s] %s\n%s", m.ToolName, mark, m.Content)
			if supportsTools {
				out = append(out, CompletionMessage{Role: "tool", Content: content})
			} else {
				out = append(out, CompletionMessage{Role: "user", Content: content})
			}
		}
	}
	return out
}
