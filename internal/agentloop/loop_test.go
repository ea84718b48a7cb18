package agentloop

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/agentfabric/agentd/internal/security"
	"github.com/agentfabric/agentd/pkg/fabric"
)

// fakeProvider returns a scripted sequence of responses, one per call.
type fakeProvider struct {
	responses []string
	calls     int
}

func (f *fakeProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	return CompletionResponse{Content: f.responses[idx]}, nil
}
func (f *fakeProvider) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	return nil, nil
}
func (f *fakeProvider) ContextLimit() int    { return 8192 }
func (f *fakeProvider) SupportsTools() bool  { return false }
func (f *fakeProvider) ProviderName() string { return "fake" }

// loopingProvider always returns the same tool-call response.
type loopingProvider struct{ response string }

func (p *loopingProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	return CompletionResponse{Content: p.response}, nil
}
func (p *loopingProvider) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	return nil, nil
}
func (p *loopingProvider) ContextLimit() int    { return 8192 }
func (p *loopingProvider) SupportsTools() bool  { return false }
func (p *loopingProvider) ProviderName() string { return "looping" }

type echoTool struct{}

func (echoTool) Name() string               { return "echo" }
func (echoTool) Description() string        { return "echoes its message field" }
func (echoTool) ParametersSchema() []byte    { return []byte(`{}`) }
func (echoTool) Execute(ctx context.Context, argsJSON string) (ToolResult, error) {
	var args struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal([]byte(argsJSON), &args)
	return ToolResult{Output: args.Message, Success: true}, nil
}

func defaultPolicy() *security.Policy {
	return security.NewPolicy(security.AutonomySupervised, security.PathValidation{}, security.RateLimiterConfig{WindowSecs: 60, MaxActions: 1000})
}

// TestScenarioAOneShotReasoning is spec.md §8 Scenario A.
func TestScenarioAOneShotReasoning(t *testing.T) {
	provider := &fakeProvider{responses: []string{"Hello, I can help with that."}}
	registry := NewToolRegistry()
	loop := New(provider, registry, defaultPolicy(), nil, nil, Config{MaxIterations: 10, ApprovalTimeout: time.Second})

	history := []fabric.SessionMessage{
		fabric.NewSystemMessage("You are helpful."),
		fabric.NewUserMessage("What is 2+2?"),
	}
	result, err := loop.Run(context.Background(), &history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "Hello, I can help with that." {
		t.Fatalf("got %q", result)
	}
	if len(history) != 3 {
		t.Fatalf("expected history to grow by one message, got %d entries", len(history))
	}
	last := history[2]
	if last.Role != fabric.RoleAssistant || len(last.ToolCalls) != 0 {
		t.Fatalf("expected trailing assistant message with no tool calls, got %+v", last)
	}
}

// TestScenarioBSingleToolCallThenFinal is spec.md §8 Scenario B.
func TestScenarioBSingleToolCallThenFinal(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		`<tool_call>{"name":"echo","arguments":{"message":"ping"}}</tool_call>`,
		"The echo said: ping. That's the result.",
	}}
	registry := NewToolRegistry()
	registry.Register(echoTool{})
	loop := New(provider, registry, defaultPolicy(), nil, nil, Config{MaxIterations: 10, ApprovalTimeout: time.Second})

	history := []fabric.SessionMessage{
		fabric.NewSystemMessage("sys"),
		fabric.NewUserMessage("say ping"),
	}
	result, err := loop.Run(context.Background(), &history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "The echo said: ping. That's the result." {
		t.Fatalf("got %q", result)
	}
	if len(history) != 5 {
		t.Fatalf("expected 5 history entries, got %d: %+v", len(history), history)
	}
	if history[2].Role != fabric.RoleAssistant || len(history[2].ToolCalls) != 1 {
		t.Fatalf("entry 2 should be assistant with one tool call: %+v", history[2])
	}
	if history[3].Role != fabric.RoleToolResult || history[3].Content != "ping" {
		t.Fatalf("entry 3 should be the tool result: %+v", history[3])
	}
	if history[4].Role != fabric.RoleAssistant {
		t.Fatalf("entry 4 should be the final assistant message: %+v", history[4])
	}
}

// TestScenarioCIterationCap is spec.md §8 Scenario C.
func TestScenarioCIterationCap(t *testing.T) {
	provider := &loopingProvider{response: `<tool_call>{"name":"echo","arguments":{"message":"x"}}</tool_call>`}
	registry := NewToolRegistry()
	registry.Register(echoTool{})
	loop := New(provider, registry, defaultPolicy(), nil, nil, Config{MaxIterations: 3, ApprovalTimeout: time.Second})

	history := []fabric.SessionMessage{
		fabric.NewSystemMessage("sys"),
		fabric.NewUserMessage("go"),
	}
	result, err := loop.Run(context.Background(), &history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result, "[Warning: reached maximum iterations (3)]") {
		t.Fatalf("got %q", result)
	}
}

func TestToolNotRegistered(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		`<tool_call>{"name":"missing","arguments":{}}</tool_call>`,
		"done",
	}}
	registry := NewToolRegistry()
	loop := New(provider, registry, defaultPolicy(), nil, nil, Config{MaxIterations: 5, ApprovalTimeout: time.Second})
	history := []fabric.SessionMessage{fabric.NewSystemMessage("s"), fabric.NewUserMessage("u")}
	_, err := loop.Run(context.Background(), &history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, m := range history {
		if m.Role == fabric.RoleToolResult && strings.Contains(m.Content, "is not registered") {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a failing tool result for the unregistered tool")
	}
}

func TestDeniedInReadOnlyModeNeverAborts(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		`<tool_call>{"name":"deploy","arguments":{"message":"x"}}</tool_call>`,
		"final",
	}}
	registry := NewToolRegistry()
	registry.Register(echoTool{}) // registered but never reached: "deploy" is high-risk and denied first
	policy := security.NewPolicy(security.AutonomyReadOnly, security.PathValidation{}, security.RateLimiterConfig{WindowSecs: 60, MaxActions: 1000})
	loop := New(provider, registry, policy, nil, nil, Config{MaxIterations: 5, ApprovalTimeout: time.Second})
	history := []fabric.SessionMessage{fabric.NewSystemMessage("s"), fabric.NewUserMessage("u")}
	result, err := loop.Run(context.Background(), &history)
	if err != nil {
		t.Fatalf("tool errors must never abort the turn: %v", err)
	}
	if result != "final" {
		t.Fatalf("got %q", result)
	}
}
