// Package agentloop implements the Agent Loop of SPEC_FULL.md §4.2: a
// single-turn reasoning cycle over a mutable conversation history. Grounded
// on the teacher's internal/agent package (haasonsaas/nexus), specifically
// its AgenticLoop/LoopState phase model and EventEmitter event vocabulary,
// generalized to the spec's deterministic tool-call grammar and security
// approval subprotocol instead of the teacher's native-function-calling,
// plugin-hook design.
package agentloop

import "context"

// CompletionMessage is the provider-facing rendering of a SessionMessage.
type CompletionMessage struct {
	Role    string // "system" | "user" | "assistant" | "tool" ("tool" only when the provider SupportsTools)
	Content string
}

// CompletionRequest is the external completion contract of SPEC_FULL.md §6.
type CompletionRequest struct {
	Model       string
	Messages    []CompletionMessage
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
	Stream      bool
}

// CompletionResponse is the provider's reply.
type CompletionResponse struct {
	Content      string
	Model        string
	Usage        *Usage
	FinishReason string
}

// Usage reports token accounting, when the provider supplies it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// StreamChunk is one increment of a streamed completion. The final chunk in
// a stream carries Delta == "" and a non-empty FinishReason.
type StreamChunk struct {
	Delta        string
	IsFinal      bool
	FinishReason string
}

// CompletionProvider is the external LLM HTTP adaptor contract the Agent
// Loop depends on (SPEC_FULL.md §6). Concrete wire formats are adaptor
// concerns, out of scope for this module's core.
type CompletionProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)
	ContextLimit() int
	SupportsTools() bool
	ProviderName() string
}
